package fatigue

import (
	"log/slog"
	"time"

	"github.com/teslashibe/drowsy/internal/log"
	"github.com/teslashibe/drowsy/pkg/landmark"
)

// Detector runs duration-based hysteresis over the EAR/MAR stream.
// It is not safe for concurrent use; the owning state machine serializes access.
type Detector struct {
	cfg     Config
	store   CalibrationStore
	session string
	log     *slog.Logger

	// Eye closure
	eyeClosed    bool
	closureStart time.Time

	// Mouth
	mouthOpen bool
	openStart time.Time
	peakMAR   float64

	// Blinks
	lastBlink       time.Time
	blinkTimestamps []time.Time
	blinkCount      int // blinks in the current window
	windowStart     time.Time

	// Counters
	yawnCount         int
	blinkWarningCount int
	eventCount        int

	// Calibration; nil unless calibrating
	calibration *calibrationSession

	// Face presence with tolerance
	faceDetected bool
	lastFaceSeen time.Time

	// Analysis history
	earHistory []float64
	marHistory []float64
	eventLog   []Event
}

// Option configures a Detector.
type Option func(*Detector)

// WithStore sets the calibration store and the session key used with it.
func WithStore(store CalibrationStore, session string) Option {
	return func(d *Detector) {
		d.store = store
		d.session = session
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		d.log = l
	}
}

// NewDetector creates a detector. Without WithStore it uses a private MemoryStore.
func NewDetector(cfg Config, opts ...Option) *Detector {
	d := &Detector{cfg: cfg.sanitize()}
	for _, opt := range opts {
		opt(d)
	}
	if d.store == nil {
		d.store = NewMemoryStore()
	}
	d.log = log.Or(d.log, "fatigue")
	return d
}

// Process evaluates one frame at time now.
func (d *Detector) Process(f *landmark.Frame, now time.Time) Result {
	hasFace := f.HasFace()
	d.updateFaceState(hasFace, now)
	if !hasFace {
		return noFace()
	}

	if d.calibration != nil {
		return d.handleCalibration(f, now)
	}

	ear := landmark.EyeAspectRatio(f)
	mar := landmark.MouthAspectRatio(f)
	res := Result{FaceDetected: true, EAR: ear, MAR: mar}

	if ev, blinked := d.detectEyeClosure(ear, now); ev != nil {
		res.Events = append(res.Events, ev)
	} else if blinked {
		res.Blinked = true
	}
	if ev := d.detectYawn(mar, now); ev != nil {
		res.Events = append(res.Events, ev)
	}
	if ev := d.detectBlinkFrequency(now); ev != nil {
		res.Events = append(res.Events, ev)
	}

	for _, ev := range res.Events {
		d.logEvent(ev)
	}

	d.updateEventCount(res.Events)
	res.Level = d.level()
	res.FatigueDetected = res.Level != LevelNormal

	d.earHistory = appendBounded(d.earHistory, ear, d.cfg.HistorySize)
	d.marHistory = appendBounded(d.marHistory, mar, d.cfg.HistorySize)

	return res
}

func (d *Detector) updateFaceState(hasFace bool, now time.Time) {
	if hasFace {
		d.faceDetected = true
		d.lastFaceSeen = now
		return
	}
	// Short gaps keep the flag; calibration is never aborted here.
	if d.faceDetected && now.Sub(d.lastFaceSeen) > d.cfg.FaceTolerance {
		d.faceDetected = false
	}
}

// detectEyeClosure returns an EyeClosure event, or reports whether the frame
// completed a counted blink.
func (d *Detector) detectEyeClosure(ear float64, now time.Time) (Event, bool) {
	closed := ear < d.cfg.EARThreshold

	switch {
	case closed && !d.eyeClosed:
		d.eyeClosed = true
		d.closureStart = now
	case closed && d.eyeClosed:
		dur := now.Sub(d.closureStart)
		if dur >= d.cfg.EyeClosureDuration {
			// Slide the window so a held closure repeats every EyeClosureDuration.
			d.closureStart = now
			return EyeClosure{Duration: dur, Time: now}, false
		}
	case !closed && d.eyeClosed:
		dur := now.Sub(d.closureStart)
		d.eyeClosed = false
		if dur >= d.cfg.EyeClosureDuration {
			return EyeClosure{Duration: dur, Time: now}, false
		}
		return nil, d.recordBlink(now)
	}
	return nil, false
}

func (d *Detector) recordBlink(now time.Time) bool {
	if !d.lastBlink.IsZero() && now.Sub(d.lastBlink) < d.cfg.BlinkDebounce {
		return false
	}
	d.blinkCount++
	d.lastBlink = now
	d.blinkTimestamps = append(d.blinkTimestamps, now)
	return true
}

func (d *Detector) detectYawn(mar float64, now time.Time) Event {
	openTh := d.cfg.MARThreshold * d.cfg.YawnOpenFactor
	midTh := d.cfg.MARThreshold * d.cfg.YawnMidFactor
	strongTh := d.cfg.MARThreshold * d.cfg.YawnStrongFactor
	open := mar > openTh

	switch {
	case open && !d.mouthOpen:
		d.mouthOpen = true
		d.openStart = now
		d.peakMAR = mar
	case open && d.mouthOpen:
		if mar > d.peakMAR {
			d.peakMAR = mar
		}
		dur := now.Sub(d.openStart)
		if dur >= d.cfg.YawnDuration && mar > strongTh {
			d.mouthOpen = false
			d.yawnCount++
			return Yawn{Duration: dur, Time: now}
		}
	case !open && d.mouthOpen:
		d.mouthOpen = false
		dur := now.Sub(d.openStart)
		switch {
		case dur >= d.cfg.YawnDuration:
			d.yawnCount++
			return Yawn{Duration: dur, Time: now}
		case dur >= d.cfg.YawnMinDuration && d.peakMAR > midTh:
			d.yawnCount++
			return Yawn{Duration: dur, Time: now}
		}
	}
	return nil
}

func (d *Detector) detectBlinkFrequency(now time.Time) Event {
	if d.windowStart.IsZero() {
		d.windowStart = now
		return nil
	}
	if now.Sub(d.windowStart) < d.cfg.BlinkWindow {
		return nil
	}

	var ev Event
	if d.blinkCount > d.cfg.BlinkFrequencyThreshold {
		d.blinkWarningCount++
		ev = HighBlinkFrequency{Count: d.blinkCount, Time: now}
	}
	d.blinkCount = 0
	d.windowStart = now
	return ev
}

// updateEventCount applies the priority ladder: eye closure dominates, then
// yawns, then blink-frequency warnings.
func (d *Detector) updateEventCount(events []Event) {
	if d.cfg.RequireCalibration && !d.HasCalibrated() {
		return
	}

	th := d.cfg.EventThreshold
	switch {
	case HasKind(events, KindEyeClosure):
		d.eventCount = th
	case d.yawnCount >= 2:
		d.eventCount = th
	case d.yawnCount >= 1:
		d.eventCount = 1
	case d.blinkWarningCount >= 2:
		d.eventCount = th
	case d.blinkWarningCount >= 1:
		d.eventCount = 1
	default:
		d.eventCount = 0
	}
}

func (d *Detector) level() Level {
	switch {
	case d.eventCount >= d.cfg.EventThreshold:
		return LevelWarning
	case d.eventCount > 0:
		return LevelNotice
	default:
		return LevelNormal
	}
}

func (d *Detector) logEvent(ev Event) {
	d.eventLog = append(d.eventLog, ev)
	if len(d.eventLog) > d.cfg.HistorySize {
		d.eventLog = d.eventLog[1:]
	}

	switch e := ev.(type) {
	case EyeClosure:
		d.log.Info("eye closure", "session", d.session, "duration_ms", e.Duration.Milliseconds())
	case Yawn:
		d.log.Info("yawn", "session", d.session, "duration_ms", e.Duration.Milliseconds(), "yawns", d.yawnCount)
	case HighBlinkFrequency:
		d.log.Info("high blink frequency", "session", d.session, "count", e.Count)
	}
}

// ResetEvents clears all event, blink and yawn state but keeps thresholds,
// calibration and history.
func (d *Detector) ResetEvents() {
	d.eventCount = 0
	d.blinkCount = 0
	d.yawnCount = 0
	d.blinkWarningCount = 0
	d.eyeClosed = false
	d.mouthOpen = false
	d.closureStart = time.Time{}
	d.openStart = time.Time{}
	d.peakMAR = 0
	d.lastBlink = time.Time{}
	d.windowStart = time.Time{}
	d.blinkTimestamps = nil
}

// Reset returns the detector to its post-construction state, aborting any
// calibration in progress. Thresholds set via SetParameters are kept.
func (d *Detector) Reset() {
	d.ResetEvents()
	d.calibration = nil
	d.faceDetected = false
	d.lastFaceSeen = time.Time{}
}

// SetParameters replaces the EAR/MAR thresholds and the warning event count.
// Non-positive values keep the current setting.
func (d *Detector) SetParameters(earThreshold, marThreshold float64, eventThreshold int) {
	if earThreshold > 0 {
		d.cfg.EARThreshold = earThreshold
	}
	if marThreshold > 0 {
		d.cfg.MARThreshold = marThreshold
	}
	if eventThreshold > 0 {
		d.cfg.EventThreshold = eventThreshold
	}
}

// EventCount returns the current ladder value.
func (d *Detector) EventCount() int { return d.eventCount }

// BlinkCount returns blinks counted in the current blink window.
func (d *Detector) BlinkCount() int { return d.blinkCount }

// YawnCount returns MAR-based yawns since the last reset.
func (d *Detector) YawnCount() int { return d.yawnCount }

// BlinkWarningCount returns how many windows exceeded the blink threshold.
func (d *Detector) BlinkWarningCount() int { return d.blinkWarningCount }

// FaceDetected returns the tolerance-smoothed face flag.
func (d *Detector) FaceDetected() bool { return d.faceDetected }

// EARThreshold returns the active EAR threshold.
func (d *Detector) EARThreshold() float64 { return d.cfg.EARThreshold }

// Config returns the active configuration.
func (d *Detector) Config() Config { return d.cfg }

// RecentBlinkCount counts blinks within window before now, pruning older ones.
func (d *Detector) RecentBlinkCount(now time.Time, window time.Duration) int {
	keep := d.blinkTimestamps[:0]
	for _, ts := range d.blinkTimestamps {
		if now.Sub(ts) <= window {
			keep = append(keep, ts)
		}
	}
	d.blinkTimestamps = keep
	return len(keep)
}

// EyeClosureDuration is how long the current closure window has been open.
// The window restarts each time an EyeClosure event fires.
func (d *Detector) EyeClosureDuration(now time.Time) time.Duration {
	if !d.eyeClosed || d.closureStart.IsZero() {
		return 0
	}
	return now.Sub(d.closureStart)
}

// HasCalibrated reports whether calibration completed in this session.
func (d *Detector) HasCalibrated() bool {
	return d.store.HasCalibrated(d.session)
}

func appendBounded(s []float64, v float64, max int) []float64 {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
