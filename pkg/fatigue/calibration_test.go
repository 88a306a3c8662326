package fatigue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/drowsy/internal/log"
	"github.com/teslashibe/drowsy/pkg/landmark"
)

func TestCalibration_UniformSamples(t *testing.T) {
	store := NewMemoryStore()
	d := NewDetector(DefaultConfig(), WithLogger(log.Discard()), WithStore(store, "cal"))

	d.StartCalibration(at(0))
	require.True(t, d.IsCalibrating())

	var last *CalibrationProgress
	for ms := 0; ms < 15000; ms += 100 {
		res := step(d, ms, openEAR, restMAR)
		require.NotNil(t, res.Progress)
		assert.Nil(t, res.Calibrated)
		last = res.Progress
	}
	assert.Equal(t, 99, last.Percent)
	assert.InDelta(t, openEAR, last.EAR, 1e-9)

	res := step(d, 15000, openEAR, restMAR)
	require.NotNil(t, res.Calibrated)

	cal := res.Calibrated
	assert.InDelta(t, 0.21, cal.Threshold, 1e-9)
	assert.InDelta(t, 0.30, cal.Avg, 1e-9)
	assert.InDelta(t, 0.30, cal.Min, 1e-9)
	assert.InDelta(t, 0.30, cal.Max, 1e-9)
	assert.Equal(t, 150, cal.Samples)

	assert.False(t, d.IsCalibrating())
	assert.InDelta(t, 0.21, d.EARThreshold(), 1e-9)
	assert.True(t, store.HasCalibrated("cal"))
	assert.True(t, d.HasCalibrated())
}

func TestCalibration_NoEventsWhileSampling(t *testing.T) {
	d := newTestDetector(DefaultConfig())
	d.StartCalibration(at(0))

	events := run(d, 0, 5000, 100, closedEAR, 1.5)

	assert.Empty(t, events)
	assert.Equal(t, 0, d.EventCount())
	assert.Equal(t, 0, d.YawnCount())
}

func TestCalibration_SurvivesFaceLoss(t *testing.T) {
	d := newTestDetector(DefaultConfig())
	d.StartCalibration(at(0))

	run(d, 0, 1000, 100, openEAR, restMAR)
	for ms := 1100; ms <= 6000; ms += 100 {
		d.Process(landmark.NoFace(at(ms)), at(ms))
	}

	assert.True(t, d.IsCalibrating())
	assert.False(t, d.FaceDetected())
	assert.Equal(t, 40, d.CalibrationProgress(at(6000)))
}

func TestCalibration_StopUsesCollectedSamples(t *testing.T) {
	d := newTestDetector(DefaultConfig())
	d.StartCalibration(at(0))

	step(d, 0, 0.20, restMAR)
	step(d, 100, 0.40, restMAR)

	cal, ok := d.StopCalibration(at(200))
	require.True(t, ok)
	assert.InDelta(t, 0.30, cal.Avg, 1e-9)
	assert.InDelta(t, 0.20, cal.Min, 1e-9)
	assert.InDelta(t, 0.40, cal.Max, 1e-9)
	assert.InDelta(t, 0.21, d.EARThreshold(), 1e-9)
}

func TestCalibration_StopWithoutSamples(t *testing.T) {
	d := newTestDetector(DefaultConfig())
	d.StartCalibration(at(0))

	cal, ok := d.StopCalibration(at(100))
	assert.False(t, ok)
	assert.Nil(t, cal)
	assert.False(t, d.IsCalibrating())
	assert.Equal(t, 0.15, d.EARThreshold())
	assert.False(t, d.HasCalibrated())

	_, ok = d.StopCalibration(at(200))
	assert.False(t, ok, "stopping twice is a no-op")
}

func TestCalibration_ResetsCounters(t *testing.T) {
	d := newTestDetector(DefaultConfig())

	run(d, 0, 2000, 100, openEAR, 0.8)
	step(d, 2100, openEAR, restMAR)
	require.Equal(t, 1, d.YawnCount())

	d.StartCalibration(at(3000))
	step(d, 3000, openEAR, restMAR)
	_, ok := d.StopCalibration(at(3100))
	require.True(t, ok)

	assert.Equal(t, 0, d.YawnCount())
	assert.Equal(t, 0, d.EventCount())
}

func TestCalibration_AbortOnReset(t *testing.T) {
	d := newTestDetector(DefaultConfig())
	d.StartCalibration(at(0))
	step(d, 0, openEAR, restMAR)

	d.Reset()

	assert.False(t, d.IsCalibrating())
	assert.False(t, d.HasCalibrated())
	assert.Equal(t, 0, d.CalibrationProgress(at(100)))
}
