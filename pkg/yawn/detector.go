// Package yawn detects yawns from a single mouth-open intensity score using
// an EMA low-pass filter over an adaptive baseline.
package yawn

import "time"

// Config holds the filter and trigger parameters.
type Config struct {
	Alpha           float64       // EMA coefficient (lower = smoother)
	BaselineAlpha   float64       // Baseline learning rate
	BaselineGate    float64       // Baseline only learns while ema < baseline*BaselineGate
	InitialBaseline float64       // Baseline after construction or reset
	OverBaseline    float64       // Threshold = baseline * OverBaseline
	ReleaseRatio    float64       // Latch releases below threshold * ReleaseRatio
	Hold            time.Duration // EMA must stay above threshold this long
	Cooldown        time.Duration // No new trigger within this long of the last
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		Alpha:           0.25,
		BaselineAlpha:   0.02,
		BaselineGate:    1.2,
		InitialBaseline: 0.1,
		OverBaseline:    1.8,
		ReleaseRatio:    0.7,
		Hold:            900 * time.Millisecond,
		Cooldown:        2500 * time.Millisecond,
	}
}

// sanitize fills unset or out-of-range fields from DefaultConfig. Alpha and
// BaselineAlpha must lie in (0,1]; a zero Cooldown is allowed.
func (c Config) sanitize() Config {
	d := DefaultConfig()
	if c.Alpha <= 0 || c.Alpha > 1 {
		c.Alpha = d.Alpha
	}
	if c.BaselineAlpha <= 0 || c.BaselineAlpha > 1 {
		c.BaselineAlpha = d.BaselineAlpha
	}
	if c.BaselineGate <= 0 {
		c.BaselineGate = d.BaselineGate
	}
	if c.InitialBaseline <= 0 {
		c.InitialBaseline = d.InitialBaseline
	}
	if c.OverBaseline <= 0 {
		c.OverBaseline = d.OverBaseline
	}
	if c.ReleaseRatio <= 0 || c.ReleaseRatio > 1 {
		c.ReleaseRatio = d.ReleaseRatio
	}
	if c.Hold <= 0 {
		c.Hold = d.Hold
	}
	if c.Cooldown < 0 {
		c.Cooldown = d.Cooldown
	}
	return c
}

// Config returns the parameters in use.
func (d *Detector) Config() Config { return d.cfg }

// Result reports the filter state after one update.
type Result struct {
	Triggered bool    `json:"triggered"`
	EMA       float64 `json:"ema"`
	Baseline  float64 `json:"baseline"`
	Threshold float64 `json:"threshold"`
}

// Detector is the auxiliary yawn channel. Not safe for concurrent use.
type Detector struct {
	cfg Config

	ema      float64
	baseline float64

	aboveSince time.Time
	lastFire   time.Time
	latched    bool
}

// New creates a detector. Unset fields take their defaults.
func New(cfg Config) *Detector {
	d := &Detector{cfg: cfg.sanitize()}
	d.Reset()
	return d
}

// Update folds one raw score taken at now into the filter.
func (d *Detector) Update(raw float64, now time.Time) Result {
	if d.ema == 0 {
		d.ema = raw
	} else {
		d.ema = d.cfg.Alpha*raw + (1-d.cfg.Alpha)*d.ema
	}

	// Only low readings pull the baseline, so one wide opening cannot drag it up.
	if d.ema < d.baseline*d.cfg.BaselineGate {
		d.baseline = d.baseline*(1-d.cfg.BaselineAlpha) + d.ema*d.cfg.BaselineAlpha
	}

	threshold := d.baseline * d.cfg.OverBaseline
	res := Result{EMA: d.ema, Baseline: d.baseline, Threshold: threshold}

	if !d.lastFire.IsZero() && now.Sub(d.lastFire) < d.cfg.Cooldown {
		d.release(threshold)
		return res
	}

	if d.ema >= threshold && !d.latched {
		if d.aboveSince.IsZero() {
			d.aboveSince = now
		}
		if now.Sub(d.aboveSince) >= d.cfg.Hold {
			d.lastFire = now
			d.latched = true
			d.aboveSince = time.Time{}
			res.Triggered = true
		}
		return res
	}

	d.release(threshold)
	if d.ema < threshold {
		d.aboveSince = time.Time{}
	}
	return res
}

func (d *Detector) release(threshold float64) {
	if d.latched && d.ema < threshold*d.cfg.ReleaseRatio {
		d.latched = false
		d.aboveSince = time.Time{}
	}
}

// Latched reports whether a trigger is waiting for the hysteresis release.
func (d *Detector) Latched() bool { return d.latched }

// Reset clears all filter and trigger state.
func (d *Detector) Reset() {
	d.ema = 0
	d.baseline = d.cfg.InitialBaseline
	d.aboveSince = time.Time{}
	d.lastFire = time.Time{}
	d.latched = false
}
