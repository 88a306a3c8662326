package fatigue

import (
	"time"

	"github.com/teslashibe/drowsy/pkg/landmark"
)

type calibrationSession struct {
	start   time.Time
	samples []float64
}

// StartCalibration begins sampling EAR. Any session in progress is discarded.
func (d *Detector) StartCalibration(now time.Time) {
	d.calibration = &calibrationSession{start: now}
	d.log.Info("calibration started", "session", d.session)
}

// StopCalibration ends sampling early. When samples were collected it
// completes calibration with them and returns the result.
func (d *Detector) StopCalibration(now time.Time) (*CalibrationResult, bool) {
	if d.calibration == nil {
		return nil, false
	}
	return d.finishCalibration(now)
}

// AbortCalibration discards the session without touching the threshold.
func (d *Detector) AbortCalibration() {
	d.calibration = nil
}

// ShiftCalibration moves the start of an active session by d.
func (d *Detector) ShiftCalibration(delta time.Duration) {
	if d.calibration != nil {
		d.calibration.start = d.calibration.start.Add(delta)
	}
}

// IsCalibrating reports whether a calibration session is active.
func (d *Detector) IsCalibrating() bool {
	return d.calibration != nil
}

// CalibrationProgress returns elapsed percentage, clamped to 0..100.
func (d *Detector) CalibrationProgress(now time.Time) int {
	if d.calibration == nil {
		return 0
	}
	return clampPercent(d.progress(now))
}

func (d *Detector) progress(now time.Time) int {
	elapsed := now.Sub(d.calibration.start)
	return int(elapsed * 100 / d.cfg.CalibrationDuration)
}

func (d *Detector) handleCalibration(f *landmark.Frame, now time.Time) Result {
	res := Result{FaceDetected: true, Level: LevelNormal}

	if now.Sub(d.calibration.start) >= d.cfg.CalibrationDuration {
		if cal, ok := d.finishCalibration(now); ok {
			res.Calibrated = cal
		}
		return res
	}

	ear := landmark.EyeAspectRatio(f)
	d.calibration.samples = append(d.calibration.samples, ear)
	res.EAR = ear
	res.Progress = &CalibrationProgress{Percent: clampPercent(d.progress(now)), EAR: ear}
	return res
}

func (d *Detector) finishCalibration(now time.Time) (*CalibrationResult, bool) {
	samples := d.calibration.samples
	d.calibration = nil
	if len(samples) == 0 {
		d.log.Warn("calibration ended without samples", "session", d.session)
		return nil, false
	}

	minEAR, maxEAR, sum := samples[0], samples[0], 0.0
	for _, v := range samples {
		if v < minEAR {
			minEAR = v
		}
		if v > maxEAR {
			maxEAR = v
		}
		sum += v
	}
	avg := sum / float64(len(samples))

	cal := &CalibrationResult{
		Threshold: avg * d.cfg.CalibrationFactor,
		Min:       minEAR,
		Max:       maxEAR,
		Avg:       avg,
		Samples:   len(samples),
	}
	d.cfg.EARThreshold = cal.Threshold

	if err := d.store.MarkCalibrationCompleted(d.session); err != nil {
		d.log.Error("failed to persist calibration flag", "session", d.session, "error", err)
	}

	d.ResetEvents()
	d.windowStart = now

	d.log.Info("calibration completed",
		"session", d.session,
		"threshold", cal.Threshold,
		"min", cal.Min,
		"max", cal.Max,
		"avg", cal.Avg,
		"samples", cal.Samples)

	return cal, true
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
