package fatigue

import "time"

// Config holds the tunable thresholds of the event detector.
type Config struct {
	// Thresholds
	EARThreshold   float64 // Eyes count as closed below this EAR
	MARThreshold   float64 // Base MAR; yawn thresholds are multiples of it
	EventThreshold int     // Event count at which the level becomes WARNING

	// Yawn threshold multipliers applied to MARThreshold
	YawnOpenFactor   float64 // Mouth counts as open above this
	YawnMidFactor    float64 // Peak needed for a short yawn
	YawnStrongFactor float64 // Level that ends a long yawn early

	// Durations
	EyeClosureDuration time.Duration // Closure long enough to be an event
	YawnDuration       time.Duration // Opening long enough to be a yawn
	YawnMinDuration    time.Duration // Shortest opening that can still be a yawn
	BlinkDebounce      time.Duration // Minimum spacing between counted blinks

	// Blink frequency
	BlinkWindow             time.Duration // Window for blink counting
	BlinkFrequencyThreshold int           // Blinks per window above which an event fires

	// Calibration
	CalibrationDuration time.Duration // Sampling length
	CalibrationFactor   float64       // New EAR threshold = avg * factor

	// Face presence
	FaceTolerance time.Duration // Face gap tolerated before clearing the face flag

	// History kept for the analysis report
	HistorySize int

	// RequireCalibration freezes the event-count ladder until calibration
	// completed in this session.
	RequireCalibration bool
}

// DefaultConfig returns the standard detector configuration.
func DefaultConfig() Config {
	return Config{
		EARThreshold:   0.15,
		MARThreshold:   0.6,
		EventThreshold: 2,

		YawnOpenFactor:   1.2,
		YawnMidFactor:    1.5,
		YawnStrongFactor: 1.8,

		EyeClosureDuration: 1200 * time.Millisecond,
		YawnDuration:       2000 * time.Millisecond,
		YawnMinDuration:    1000 * time.Millisecond,
		BlinkDebounce:      200 * time.Millisecond,

		BlinkWindow:             60 * time.Second,
		BlinkFrequencyThreshold: 25,

		CalibrationDuration: 15 * time.Second,
		CalibrationFactor:   0.7,

		FaceTolerance: 3 * time.Second,

		HistorySize: 500,
	}
}

// SensitiveConfig flags closures and yawns earlier.
func SensitiveConfig() Config {
	cfg := DefaultConfig()
	cfg.EARThreshold = 0.18
	cfg.EyeClosureDuration = 900 * time.Millisecond
	cfg.YawnDuration = 1500 * time.Millisecond
	cfg.BlinkFrequencyThreshold = 20
	return cfg
}

// RelaxedConfig tolerates longer closures before reacting.
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.EARThreshold = 0.12
	cfg.EyeClosureDuration = 1600 * time.Millisecond
	cfg.BlinkFrequencyThreshold = 30
	return cfg
}

// sanitize replaces unusable values with defaults.
func (c Config) sanitize() Config {
	d := DefaultConfig()
	if c.EARThreshold <= 0 {
		c.EARThreshold = d.EARThreshold
	}
	if c.MARThreshold <= 0 {
		c.MARThreshold = d.MARThreshold
	}
	if c.EventThreshold <= 0 {
		c.EventThreshold = d.EventThreshold
	}
	if c.YawnOpenFactor <= 0 {
		c.YawnOpenFactor = d.YawnOpenFactor
	}
	if c.YawnMidFactor <= 0 {
		c.YawnMidFactor = d.YawnMidFactor
	}
	if c.YawnStrongFactor <= 0 {
		c.YawnStrongFactor = d.YawnStrongFactor
	}
	if c.EyeClosureDuration <= 0 {
		c.EyeClosureDuration = d.EyeClosureDuration
	}
	if c.YawnDuration <= 0 {
		c.YawnDuration = d.YawnDuration
	}
	if c.YawnMinDuration <= 0 {
		c.YawnMinDuration = d.YawnMinDuration
	}
	if c.BlinkDebounce < 0 {
		c.BlinkDebounce = d.BlinkDebounce
	}
	if c.BlinkWindow <= 0 {
		c.BlinkWindow = d.BlinkWindow
	}
	if c.BlinkFrequencyThreshold <= 0 {
		c.BlinkFrequencyThreshold = d.BlinkFrequencyThreshold
	}
	if c.CalibrationDuration <= 0 {
		c.CalibrationDuration = d.CalibrationDuration
	}
	if c.CalibrationFactor <= 0 {
		c.CalibrationFactor = d.CalibrationFactor
	}
	if c.FaceTolerance < 0 {
		c.FaceTolerance = d.FaceTolerance
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	return c
}
