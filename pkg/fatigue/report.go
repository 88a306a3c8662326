package fatigue

import (
	"fmt"
	"strings"
	"time"
)

// Stats summarizes a series of ratio samples.
type Stats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	s := Stats{Count: len(values), Min: values[0], Max: values[0]}
	sum := 0.0
	for _, v := range values {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Avg = sum / float64(len(values))
	return s
}

// Report is the sensitivity analysis built from recent history.
type Report struct {
	GeneratedAt   time.Time          `json:"generated_at"`
	EAR           Stats              `json:"ear"`
	MAR           Stats              `json:"mar"`
	EventCounts   map[Kind]int       `json:"event_counts"`
	Thresholds    map[string]float64 `json:"thresholds"`
	SuggestedEAR  float64            `json:"suggested_ear_threshold,omitempty"`
	HasCalibrated bool               `json:"has_calibrated"`
}

// Report builds an analysis report over the retained EAR/MAR samples and events.
func (d *Detector) Report(now time.Time) Report {
	r := Report{
		GeneratedAt: now,
		EAR:         summarize(d.earHistory),
		MAR:         summarize(d.marHistory),
		EventCounts: make(map[Kind]int),
		Thresholds: map[string]float64{
			"ear":           d.cfg.EARThreshold,
			"mar":           d.cfg.MARThreshold,
			"fatigue_event": float64(d.cfg.EventThreshold),
		},
		HasCalibrated: d.HasCalibrated(),
	}
	for _, ev := range d.eventLog {
		r.EventCounts[ev.Kind()]++
	}
	if r.EAR.Count > 0 {
		r.SuggestedEAR = r.EAR.Avg * 0.8
	}
	return r
}

// String renders the report as plain text.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Fatigue analysis (%s) ===\n", r.GeneratedAt.Format("15:04:05.000"))
	writeStats(&b, "EAR", r.EAR)
	writeStats(&b, "MAR", r.MAR)

	b.WriteString("\n-- Events --\n")
	if len(r.EventCounts) == 0 {
		b.WriteString("none\n")
	}
	for _, k := range []Kind{KindEyeClosure, KindYawn, KindHighBlinkFrequency} {
		if n, ok := r.EventCounts[k]; ok {
			fmt.Fprintf(&b, "%s: %d\n", k, n)
		}
	}

	b.WriteString("\n-- Thresholds --\n")
	for _, k := range []string{"ear", "mar", "fatigue_event"} {
		fmt.Fprintf(&b, "%s: %.4f\n", k, r.Thresholds[k])
	}
	fmt.Fprintf(&b, "calibrated: %v\n", r.HasCalibrated)

	if r.SuggestedEAR > 0 {
		fmt.Fprintf(&b, "\nSuggested EAR threshold: %.4f (from average %.4f)\n", r.SuggestedEAR, r.EAR.Avg)
	}
	return b.String()
}

func writeStats(b *strings.Builder, name string, s Stats) {
	fmt.Fprintf(b, "\n-- %s --\n", name)
	if s.Count == 0 {
		fmt.Fprintf(b, "no %s samples\n", name)
		return
	}
	fmt.Fprintf(b, "samples: %d\navg: %.4f\nmin: %.4f\nmax: %.4f\n", s.Count, s.Avg, s.Min, s.Max)
}

// Parameters is a snapshot of thresholds and counters.
type Parameters struct {
	EARThreshold            float64 `json:"ear_threshold"`
	MARThreshold            float64 `json:"mar_threshold"`
	EventThreshold          int     `json:"fatigue_event_threshold"`
	EyeClosureDurationMs    int64   `json:"ear_closure_duration_ms"`
	YawnDurationMs          int64   `json:"yawn_duration_ms"`
	YawnMinDurationMs       int64   `json:"yawn_min_duration_ms"`
	BlinkFrequencyThreshold int     `json:"blink_frequency_threshold"`
	CalibrationDurationMs   int64   `json:"calibration_duration_ms"`
	HasCalibrated           bool    `json:"has_calibrated"`
	IsCalibrating           bool    `json:"is_calibrating"`
	EventCount              int     `json:"fatigue_event_count"`
	BlinkCount              int     `json:"blink_count"`
	YawnCount               int     `json:"yawn_count"`
	BlinkWarningCount       int     `json:"blink_frequency_warning_count"`
}

// Parameters returns the current thresholds and counters.
func (d *Detector) Parameters() Parameters {
	return Parameters{
		EARThreshold:            d.cfg.EARThreshold,
		MARThreshold:            d.cfg.MARThreshold,
		EventThreshold:          d.cfg.EventThreshold,
		EyeClosureDurationMs:    d.cfg.EyeClosureDuration.Milliseconds(),
		YawnDurationMs:          d.cfg.YawnDuration.Milliseconds(),
		YawnMinDurationMs:       d.cfg.YawnMinDuration.Milliseconds(),
		BlinkFrequencyThreshold: d.cfg.BlinkFrequencyThreshold,
		CalibrationDurationMs:   d.cfg.CalibrationDuration.Milliseconds(),
		HasCalibrated:           d.HasCalibrated(),
		IsCalibrating:           d.IsCalibrating(),
		EventCount:              d.eventCount,
		BlinkCount:              d.blinkCount,
		YawnCount:               d.yawnCount,
		BlinkWarningCount:       d.blinkWarningCount,
	}
}
