// Package fatigue turns a stream of face landmark frames into discrete
// fatigue events (eye closure, yawn, high blink frequency) and a coarse
// fatigue level. It also owns EAR calibration.
package fatigue

import (
	"fmt"
	"time"
)

// Level is the coarse fatigue classification.
type Level int

const (
	LevelNormal Level = iota
	LevelNotice
	LevelWarning
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelNotice:
		return "notice"
	case LevelWarning:
		return "warning"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// MarshalText lets levels travel as their names in JSON.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *Level) UnmarshalText(text []byte) error {
	for _, lv := range []Level{LevelNormal, LevelNotice, LevelWarning} {
		if lv.String() == string(text) {
			*l = lv
			return nil
		}
	}
	return fmt.Errorf("unknown fatigue level %q", text)
}

// Kind names an event variant.
type Kind string

const (
	KindEyeClosure         Kind = "eye_closure"
	KindYawn               Kind = "yawn"
	KindHighBlinkFrequency Kind = "high_blink_frequency"
)

// Event is a completed fatigue observation. The set of implementations is
// closed: EyeClosure, Yawn and HighBlinkFrequency.
type Event interface {
	Kind() Kind
	At() time.Time
	isEvent()
}

// EyeClosure reports eyes held below the EAR threshold for Duration.
type EyeClosure struct {
	Duration time.Duration
	Time     time.Time
}

// Yawn reports the mouth held open for Duration.
type Yawn struct {
	Duration time.Duration
	Time     time.Time
}

// HighBlinkFrequency reports Count blinks inside one blink window.
type HighBlinkFrequency struct {
	Count int
	Time  time.Time
}

func (e EyeClosure) Kind() Kind         { return KindEyeClosure }
func (e Yawn) Kind() Kind               { return KindYawn }
func (e HighBlinkFrequency) Kind() Kind { return KindHighBlinkFrequency }

func (e EyeClosure) At() time.Time         { return e.Time }
func (e Yawn) At() time.Time               { return e.Time }
func (e HighBlinkFrequency) At() time.Time { return e.Time }

func (EyeClosure) isEvent()         {}
func (Yawn) isEvent()               {}
func (HighBlinkFrequency) isEvent() {}

// HasKind reports whether any event in events is of kind k.
func HasKind(events []Event, k Kind) bool {
	for _, e := range events {
		if e.Kind() == k {
			return true
		}
	}
	return false
}

// CalibrationProgress is reported on every sampled calibration frame.
type CalibrationProgress struct {
	Percent int     `json:"percent"`
	EAR     float64 `json:"current_ear"`
}

// CalibrationResult summarizes a completed calibration session.
type CalibrationResult struct {
	Threshold float64 `json:"threshold"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Avg       float64 `json:"avg"`
	Samples   int     `json:"samples"`
}

// Result is the outcome of one processed frame.
type Result struct {
	FatigueDetected bool
	Level           Level
	Events          []Event
	FaceDetected    bool

	// EAR and MAR measured on this frame (zero without a face).
	EAR float64
	MAR float64

	// Blinked is set when this frame completed a counted blink.
	Blinked bool

	// Progress is set while calibrating; Calibrated when calibration finished on this frame.
	Progress   *CalibrationProgress
	Calibrated *CalibrationResult

	// Skipped is set by the orchestrator when the frame was dropped unevaluated.
	Skipped bool
}

// noFace is the degraded result for frames without landmarks.
func noFace() Result {
	return Result{Level: LevelNormal}
}
