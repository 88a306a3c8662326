package yawn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

// feed updates every 100ms over [fromMs, toMs] and returns the trigger times.
func feed(d *Detector, fromMs, toMs int, raw float64) []int {
	var fired []int
	for ms := fromMs; ms <= toMs; ms += 100 {
		if d.Update(raw, at(ms)).Triggered {
			fired = append(fired, ms)
		}
	}
	return fired
}

func TestFirstSampleSeedsEMA(t *testing.T) {
	d := New(DefaultConfig())

	res := d.Update(0.4, at(0))
	assert.Equal(t, 0.4, res.EMA)

	res = d.Update(0.0, at(100))
	assert.InDelta(t, 0.3, res.EMA, 1e-12)
}

func TestBaselineGate(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"low reading learns", 0.05, 0.1*0.98 + 0.05*0.02},
		{"wide opening is ignored", 0.8, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(DefaultConfig())
			res := d.Update(tt.raw, at(0))
			assert.InDelta(t, tt.want, res.Baseline, 1e-12)
			assert.InDelta(t, tt.want*1.8, res.Threshold, 1e-12)
		})
	}
}

func TestQuietSignalNeverTriggers(t *testing.T) {
	d := New(DefaultConfig())
	assert.Empty(t, feed(d, 0, 10000, 0.05))
}

func TestTriggerAfterHold(t *testing.T) {
	d := New(DefaultConfig())

	fired := feed(d, 0, 1500, 0.8)

	assert.Equal(t, []int{900}, fired)
	assert.True(t, d.Latched())
}

func TestShortSpikeDoesNotTrigger(t *testing.T) {
	d := New(DefaultConfig())

	fired := feed(d, 0, 100, 0.8)
	fired = append(fired, feed(d, 200, 3000, 0)...)

	assert.Empty(t, fired)
}

func TestLatchHoldsUntilRelease(t *testing.T) {
	d := New(DefaultConfig())

	// Held open well past the cooldown fires once.
	fired := feed(d, 0, 4000, 0.8)
	require.Equal(t, []int{900}, fired)

	// Closing drops the EMA below the release level.
	assert.Empty(t, feed(d, 4100, 5000, 0))
	assert.False(t, d.Latched())

	// A second opening fires again after its own hold.
	fired = feed(d, 5100, 7000, 0.8)
	require.Len(t, fired, 1)
	assert.GreaterOrEqual(t, fired[0], 6000)
}

func TestCooldownBlocksRetrigger(t *testing.T) {
	d := New(DefaultConfig())

	require.Equal(t, []int{900}, feed(d, 0, 900, 0.8))

	// Released quickly but still inside the cooldown.
	feed(d, 1000, 1800, 0)
	require.False(t, d.Latched(), "release runs during cooldown")

	fired := feed(d, 1900, 3300, 0.8)
	assert.Empty(t, fired)

	fired = feed(d, 3400, 5000, 0.8)
	assert.Len(t, fired, 1)
}

func TestReset(t *testing.T) {
	d := New(DefaultConfig())
	feed(d, 0, 30000, 0.02)
	feed(d, 30100, 31000, 0.8)

	d.Reset()
	assert.False(t, d.Latched())

	res := d.Update(0.05, at(40000))
	assert.Equal(t, 0.05, res.EMA)
	assert.InDelta(t, 0.1*0.98+0.05*0.02, res.Baseline, 1e-12)
}

func TestPartialConfigUsesDefaults(t *testing.T) {
	d := New(Config{Hold: 500 * time.Millisecond})

	cfg := d.Config()
	assert.Equal(t, DefaultConfig().Alpha, cfg.Alpha)
	assert.Equal(t, DefaultConfig().OverBaseline, cfg.OverBaseline)
	assert.Equal(t, 500*time.Millisecond, cfg.Hold)

	// The EMA still follows the signal.
	d.Update(0.1, at(0))
	res := d.Update(0.5, at(100))
	assert.InDelta(t, 0.2, res.EMA, 1e-12)

	fired := feed(d, 200, 2000, 0.8)
	require.NotEmpty(t, fired)
}

func TestOutOfRangeAlphaReplaced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alpha = 1.5
	cfg.Cooldown = 0

	got := New(cfg).Config()
	assert.Equal(t, DefaultConfig().Alpha, got.Alpha)
	assert.Zero(t, got.Cooldown)
}
