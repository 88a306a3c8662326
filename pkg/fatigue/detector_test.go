package fatigue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/drowsy/internal/log"
	"github.com/teslashibe/drowsy/pkg/landmark"
)

const (
	openEAR   = 0.30
	closedEAR = 0.05
	restMAR   = 0.30
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func newTestDetector(cfg Config) *Detector {
	return NewDetector(cfg, WithLogger(log.Discard()), WithStore(NewMemoryStore(), "test"))
}

// step feeds one synthetic frame and returns the result.
func step(d *Detector, ms int, ear, mar float64) Result {
	return d.Process(landmark.Synthetic(at(ms), ear, mar), at(ms))
}

// run feeds frames every stepMs over [fromMs, toMs] and collects all events.
func run(d *Detector, fromMs, toMs, stepMs int, ear, mar float64) []Event {
	var events []Event
	for ms := fromMs; ms <= toMs; ms += stepMs {
		events = append(events, step(d, ms, ear, mar).Events...)
	}
	return events
}

func TestEyeClosure_SlidingWindowRepeats(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	// Held closure for 2500ms emits at 1200ms and 2400ms, not once.
	events := run(d, 0, 2500, 100, closedEAR, restMAR)

	require.Len(t, events, 2)
	for i, want := range []time.Time{at(1200), at(2400)} {
		ec, ok := events[i].(EyeClosure)
		require.True(t, ok, "event %d is %T", i, events[i])
		assert.Equal(t, 1200*time.Millisecond, ec.Duration)
		assert.Equal(t, want, ec.At())
	}
}

func TestEyeClosure_FinalEventOnReopen(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	step(d, 0, closedEAR, restMAR)
	step(d, 1100, closedEAR, restMAR)
	res := step(d, 1300, openEAR, restMAR)

	require.Len(t, res.Events, 1)
	assert.Equal(t, EyeClosure{Duration: 1300 * time.Millisecond, Time: at(1300)}, res.Events[0])
	assert.False(t, res.Blinked)
	assert.Equal(t, LevelWarning, res.Level)
	assert.Equal(t, 0, d.BlinkCount())
}

func TestBlink(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	step(d, 0, openEAR, restMAR)
	step(d, 100, closedEAR, restMAR)
	step(d, 200, closedEAR, restMAR)
	res := step(d, 250, openEAR, restMAR)

	assert.Empty(t, res.Events)
	assert.True(t, res.Blinked)
	assert.Equal(t, 1, d.BlinkCount())
	assert.Equal(t, 1, d.RecentBlinkCount(at(250), time.Minute))

	// A second dip 100ms after the first blink is debounced.
	step(d, 300, closedEAR, restMAR)
	res = step(d, 350, openEAR, restMAR)
	assert.False(t, res.Blinked)
	assert.Equal(t, 1, d.BlinkCount())

	// Far enough apart it counts again.
	step(d, 600, closedEAR, restMAR)
	res = step(d, 700, openEAR, restMAR)
	assert.True(t, res.Blinked)
	assert.Equal(t, 2, d.BlinkCount())
}

func TestYawn_ClosedAfterLongOpening(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	// Peak above strong early, hold above open, close at exactly 2100ms.
	events := run(d, 0, 900, 100, openEAR, 1.2)
	events = append(events, run(d, 1000, 2000, 100, openEAR, 0.8)...)
	events = append(events, step(d, 2100, openEAR, restMAR).Events...)

	require.Len(t, events, 1)
	assert.Equal(t, Yawn{Duration: 2100 * time.Millisecond, Time: at(2100)}, events[0])
	assert.Equal(t, 1, d.YawnCount())
}

func TestYawn_StrongOpeningFiresWhileOpen(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	events := run(d, 0, 2000, 100, openEAR, 1.2)

	require.Len(t, events, 1)
	assert.Equal(t, 2000*time.Millisecond, events[0].(Yawn).Duration)

	// The window was closed, so staying open starts a fresh one.
	events = run(d, 2100, 3000, 100, openEAR, 1.2)
	assert.Empty(t, events)
	assert.Equal(t, 1, d.YawnCount())
}

func TestYawn_ShortOpening(t *testing.T) {
	tests := []struct {
		name     string
		peak     float64
		closeMs  int
		wantYawn bool
	}{
		{"peak above mid", 1.0, 1500, true},
		{"peak below mid", 0.85, 1500, false},
		{"too short", 1.0, 900, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(DefaultConfig())
			events := run(d, 0, tt.closeMs-100, 100, openEAR, tt.peak)
			events = append(events, step(d, tt.closeMs, openEAR, restMAR).Events...)

			if tt.wantYawn {
				require.Len(t, events, 1)
				assert.Equal(t, KindYawn, events[0].Kind())
			} else {
				assert.Empty(t, events)
			}
		})
	}
}

func TestHighBlinkFrequency(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	step(d, 0, openEAR, restMAR)
	for i := 1; i <= 26; i++ {
		step(d, i*1000, closedEAR, restMAR)
		step(d, i*1000+100, openEAR, restMAR)
	}
	require.Equal(t, 26, d.BlinkCount())

	res := step(d, 60000, openEAR, restMAR)

	require.Len(t, res.Events, 1)
	assert.Equal(t, HighBlinkFrequency{Count: 26, Time: at(60000)}, res.Events[0])
	assert.Equal(t, 1, d.BlinkWarningCount())
	assert.Equal(t, 0, d.BlinkCount())
	assert.Equal(t, LevelNotice, res.Level)
}

func TestBlinkWindowResetsBelowThreshold(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	step(d, 0, openEAR, restMAR)
	for i := 1; i <= 5; i++ {
		step(d, i*1000, closedEAR, restMAR)
		step(d, i*1000+100, openEAR, restMAR)
	}
	res := step(d, 60000, openEAR, restMAR)

	assert.Empty(t, res.Events)
	assert.Equal(t, 0, d.BlinkCount(), "window counter resets even without an event")
	assert.Equal(t, 0, d.BlinkWarningCount())
}

func TestEventCountLadder(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	yawn := func(startMs int) Result {
		run(d, startMs, startMs+2000, 100, openEAR, 0.8)
		return step(d, startMs+2100, openEAR, restMAR)
	}

	res := yawn(0)
	assert.Equal(t, LevelNotice, res.Level)
	assert.Equal(t, 1, d.EventCount())

	// The ladder holds between events.
	res = step(d, 2500, openEAR, restMAR)
	assert.Equal(t, LevelNotice, res.Level)

	res = yawn(3000)
	assert.Equal(t, LevelWarning, res.Level)
	assert.Equal(t, 2, d.EventCount())
	assert.True(t, res.FatigueDetected)
}

func TestRequireCalibrationFreezesLadder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireCalibration = true
	d := newTestDetector(cfg)

	run(d, 0, 2000, 100, openEAR, 0.8)
	res := step(d, 2100, openEAR, restMAR)

	require.Len(t, res.Events, 1)
	assert.Equal(t, LevelNormal, res.Level)
	assert.Equal(t, 0, d.EventCount())
}

func TestNoFaceFrame(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	res := d.Process(landmark.NoFace(at(0)), at(0))
	assert.False(t, res.FaceDetected)
	assert.False(t, res.FatigueDetected)
	assert.Equal(t, LevelNormal, res.Level)
	assert.Empty(t, res.Events)
}

func TestFaceTolerance(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	step(d, 0, openEAR, restMAR)
	d.Process(landmark.NoFace(at(2000)), at(2000))
	assert.True(t, d.FaceDetected(), "short gap keeps the face flag")

	d.Process(landmark.NoFace(at(3500)), at(3500))
	assert.False(t, d.FaceDetected())

	step(d, 3600, openEAR, restMAR)
	assert.True(t, d.FaceDetected())
}

func TestShortMeshIsDegradedNotFatal(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	f := &landmark.Frame{Points: make([]landmark.Point, 10)}
	res := d.Process(f, at(0))

	assert.True(t, res.FaceDetected)
	assert.Zero(t, res.EAR)
	assert.Empty(t, res.Events)
}

func TestSetParameters(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	d.SetParameters(0.2, 0.5, 3)
	p := d.Parameters()
	assert.Equal(t, 0.2, p.EARThreshold)
	assert.Equal(t, 0.5, p.MARThreshold)
	assert.Equal(t, 3, p.EventThreshold)

	d.SetParameters(0, -1, 0)
	assert.Equal(t, 0.2, d.EARThreshold(), "non-positive values keep the current setting")
}

func TestResetEvents(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	run(d, 0, 2000, 100, openEAR, 0.8)
	step(d, 2100, openEAR, restMAR)
	require.Equal(t, 1, d.YawnCount())

	d.ResetEvents()
	assert.Equal(t, 0, d.YawnCount())
	assert.Equal(t, 0, d.EventCount())
	assert.Equal(t, 0, d.BlinkCount())
}

func TestReport(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	run(d, 0, 2500, 100, closedEAR, restMAR)
	r := d.Report(at(2600))

	assert.Equal(t, 26, r.EAR.Count)
	assert.InDelta(t, closedEAR, r.EAR.Avg, 1e-9)
	assert.Equal(t, 2, r.EventCounts[KindEyeClosure])
	assert.InDelta(t, closedEAR*0.8, r.SuggestedEAR, 1e-9)
	assert.Contains(t, r.String(), "eye_closure: 2")
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.15, cfg.EARThreshold)
	assert.Equal(t, 0.6, cfg.MARThreshold)
	assert.Equal(t, 2, cfg.EventThreshold)
	assert.Equal(t, 1200*time.Millisecond, cfg.EyeClosureDuration)
	assert.Equal(t, 15*time.Second, cfg.CalibrationDuration)
	assert.Less(t, SensitiveConfig().EyeClosureDuration, cfg.EyeClosureDuration)
	assert.Greater(t, RelaxedConfig().EyeClosureDuration, cfg.EyeClosureDuration)
}
