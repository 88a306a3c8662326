package detection

import (
	"time"

	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/landmark"
)

// Status is a consistent snapshot of a machine's observable state.
type Status struct {
	Session             string        `json:"session,omitempty"`
	State               State         `json:"state"`
	LastKnownState      State         `json:"last_known_state"`
	Score               int           `json:"score"`
	ScoreLevel          fatigue.Level `json:"score_level"`
	EventCount          int           `json:"fatigue_event_count"`
	BlinkCount          int           `json:"blink_count"`
	YawnCount           int           `json:"yawn_count"`
	RecentBlinkCount    int           `json:"recent_blink_count"`
	RecentYawnCount     int           `json:"recent_yawn_count"`
	EyeClosureMs        int64         `json:"eye_closure_ms"`
	FaceDetected        bool          `json:"face_detected"`
	Calibrating         bool          `json:"calibrating"`
	CalibrationProgress int           `json:"calibration_progress"`
	HasCalibrated       bool          `json:"has_calibrated"`
	DialogActive        bool          `json:"warning_dialog_active"`
	InCooldown          bool          `json:"in_cooldown"`
	FPS                 int           `json:"fps"`
	Schema              string        `json:"schema"`
	LastError           string        `json:"last_error,omitempty"`
	Stats               Stats         `json:"stats"`
}

// Status returns a snapshot taken under the machine lock.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	st := Status{
		Session:             m.session,
		State:               m.snap.Current,
		LastKnownState:      m.snap.LastKnown,
		Score:               m.score.Score(),
		ScoreLevel:          m.score.Level(),
		EventCount:          m.detector.EventCount(),
		BlinkCount:          m.detector.BlinkCount(),
		YawnCount:           m.detector.YawnCount() + m.auxYawns,
		RecentBlinkCount:    m.detector.RecentBlinkCount(now, m.cfg.Score.BlinkWindow),
		RecentYawnCount:     m.recentYawns(now, m.cfg.RecentYawnWindow),
		EyeClosureMs:        m.detector.EyeClosureDuration(now).Milliseconds(),
		FaceDetected:        m.detector.FaceDetected(),
		Calibrating:         m.detector.IsCalibrating(),
		CalibrationProgress: m.detector.CalibrationProgress(now),
		HasCalibrated:       m.detector.HasCalibrated(),
		DialogActive:        m.dialogActive,
		InCooldown:          m.inCooldown(now),
		FPS:                 m.cfg.FPS,
		Schema:              m.schema.String(),
		Stats:               m.stats,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// State returns the current detection state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Current
}

// Snapshot returns the current and remembered states.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Score returns the fatigue score and its level.
func (m *Machine) Score() (int, fatigue.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.score.Score(), m.score.Level()
}

// LastError returns the fault that moved the machine to ERROR, if any.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// EventCount returns the detector's event-count ladder value.
func (m *Machine) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.EventCount()
}

// BlinkCount returns blinks in the current blink window.
func (m *Machine) BlinkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.BlinkCount()
}

// RecentBlinkCount returns blinks within window.
func (m *Machine) RecentBlinkCount(window time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.RecentBlinkCount(m.now(), window)
}

// YawnCount returns MAR-based yawns plus auxiliary triggers.
func (m *Machine) YawnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.YawnCount() + m.auxYawns
}

// RecentYawnCount returns the MAR-based yawn total plus auxiliary triggers
// within window. A non-positive window uses the configured default; triggers
// older than that default are not retained.
func (m *Machine) RecentYawnCount(window time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if window <= 0 {
		window = m.cfg.RecentYawnWindow
	}
	return m.recentYawns(m.now(), window)
}

func (m *Machine) recentYawns(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	n := 0
	for _, ts := range m.auxYawnTimes {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return m.detector.YawnCount() + n
}

// EyeClosureDuration returns the length of the current closure window.
func (m *Machine) EyeClosureDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.EyeClosureDuration(m.now())
}

// IsCalibrating reports whether EAR sampling is active.
func (m *Machine) IsCalibrating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.IsCalibrating()
}

// CalibrationProgress returns calibration progress in percent.
func (m *Machine) CalibrationProgress() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.CalibrationProgress(m.now())
}

// FaceDetected returns the detector's tolerance-smoothed face flag.
func (m *Machine) FaceDetected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.FaceDetected()
}

// DetectionParameters returns thresholds, durations and counters.
func (m *Machine) DetectionParameters() fatigue.Parameters {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.detector.Parameters()
	p.YawnCount += m.auxYawns
	return p
}

// Report builds the sensitivity analysis report.
func (m *Machine) Report() fatigue.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.Report(m.now())
}

// Schema returns the negotiated frame schema.
func (m *Machine) Schema() landmark.Schema {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schema
}

// Stats returns frame counters.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Session returns the session key.
func (m *Machine) Session() string {
	return m.session
}
