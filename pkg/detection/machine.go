package detection

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/drowsy/internal/log"
	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/landmark"
	"github.com/teslashibe/drowsy/pkg/score"
	"github.com/teslashibe/drowsy/pkg/yawn"
)

// Stats counts frames by outcome.
type Stats struct {
	Processed uint64 `json:"processed"`
	Skipped   uint64 `json:"skipped"` // throttled by the frame interval
	Dropped   uint64 `json:"dropped"` // arrived while inactive
	Faults    uint64 `json:"faults"`
}

// Machine is the detection state machine for one session. It exclusively
// owns its event detector, auxiliary yawn detector and score engine. All
// methods are safe for concurrent use; frames are processed one at a time.
type Machine struct {
	mu sync.Mutex

	cfg      Config
	session  string
	store    fatigue.CalibrationStore
	notifier Notifier
	log      *slog.Logger
	clock    func() time.Time

	// skew maps the clock onto the extractor's frame timestamps. Commands
	// and queries read now(), so every timer runs on the frame time base.
	skew   time.Duration
	synced bool

	detector *fatigue.Detector
	aux      *yawn.Detector
	score    *score.Engine

	snap          Snapshot
	schema        landmark.Schema
	schemaLocked  bool
	noFaceFrames  int
	minInterval   time.Duration
	lastProcessed time.Time
	cooldownUntil time.Time
	dialogActive  bool
	lastErr       error

	auxYawns     int
	auxYawnTimes []time.Time

	stats Stats
}

// Option configures a Machine.
type Option func(*Machine)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(m *Machine) {
		m.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

// WithClock overrides time.Now. Once timestamped frames arrive the clock is
// offset to follow them; frames without a timestamp and all commands read the
// offset clock.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.clock = now
	}
}

// WithStore sets the calibration store and session key.
func WithStore(store fatigue.CalibrationStore, session string) Option {
	return func(m *Machine) {
		m.store = store
		m.session = session
	}
}

// NewMachine creates a machine in INITIALIZING. Call Start before feeding frames.
func NewMachine(cfg Config, opts ...Option) *Machine {
	cfg = cfg.sanitize()
	m := &Machine{
		cfg:      cfg,
		notifier: NopNotifier{},
		clock:    time.Now,
		snap:     InitialSnapshot(),
		schema:   landmark.SchemaMeshBlendshapes,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = log.Or(m.log, "detection")
	if m.session != "" {
		m.log = m.log.With("session", m.session)
	}

	m.detector = fatigue.NewDetector(cfg.Fatigue,
		fatigue.WithStore(m.store, m.session),
		fatigue.WithLogger(m.log))
	m.aux = yawn.New(cfg.Yawn)
	m.score = score.New(cfg.Score)
	m.minInterval = frameInterval(cfg.FPS)
	return m
}

// ProcessFrame runs one frame through the pipeline. Frames are dropped in
// INITIALIZING, REST_MODE, ERROR and SHUTDOWN, and skipped when they arrive
// sooner than the frame interval; both return a result with Skipped set.
// Processing faults are recorded and move the machine to ERROR.
func (m *Machine) ProcessFrame(f *landmark.Frame) fatigue.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processFrame(f)
}

// Outcome is a processed frame with the state and score it left behind.
type Outcome struct {
	Result     fatigue.Result
	State      State
	Score      int
	ScoreLevel fatigue.Level
}

// Step is ProcessFrame that also reports the resulting state and score,
// read under the same lock as the frame.
func (m *Machine) Step(f *landmark.Frame) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.processFrame(f)
	return Outcome{
		Result:     res,
		State:      m.snap.Current,
		Score:      m.score.Score(),
		ScoreLevel: m.score.Level(),
	}
}

func (m *Machine) processFrame(f *landmark.Frame) fatigue.Result {
	now := m.now()
	if f != nil && !f.Timestamp.IsZero() {
		now = m.sync(f.Timestamp)
	}

	switch cur := m.snap.Current; {
	case cur.Terminal(), cur == StateInitializing, cur == StateRestMode:
		m.stats.Dropped++
		return fatigue.Result{Skipped: true}
	}

	if !m.lastProcessed.IsZero() {
		// A clock that went backwards does not block processing.
		if elapsed := now.Sub(m.lastProcessed); elapsed >= 0 && elapsed < m.minInterval {
			m.stats.Skipped++
			return fatigue.Result{Skipped: true}
		}
	}
	m.lastProcessed = now
	m.schemaLocked = true

	res, err := m.safeProcess(f, now)
	if err != nil {
		m.fault(err)
		return fatigue.Result{}
	}
	m.stats.Processed++
	return res
}

// now is the current time on the frame time base.
func (m *Machine) now() time.Time {
	return m.clock().Add(m.skew)
}

// sync records the offset between ts and the clock. Deadlines armed before
// the first timestamped frame were set on the bare clock and are moved onto
// the frame time base.
func (m *Machine) sync(ts time.Time) time.Time {
	skew := ts.Sub(m.clock())
	if !m.synced {
		if d := skew - m.skew; d != 0 {
			if !m.cooldownUntil.IsZero() {
				m.cooldownUntil = m.cooldownUntil.Add(d)
			}
			m.detector.ShiftCalibration(d)
		}
		m.synced = true
	}
	m.skew = skew
	return ts
}

func (m *Machine) safeProcess(f *landmark.Frame, now time.Time) (res fatigue.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return m.process(f, now)
}

func (m *Machine) process(f *landmark.Frame, now time.Time) (fatigue.Result, error) {
	if err := f.Validate(); err != nil {
		return fatigue.Result{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}

	res := m.detector.Process(f, now)

	if m.snap.Current == StateCalibrating {
		m.reportCalibration(res)
		return res, nil
	}

	auxYawn := m.updateAux(f, now)

	if !res.FaceDetected {
		m.noFaceFrames++
		if m.noFaceFrames >= m.cfg.NoFaceFrames && m.snap.Current != StateNoFace {
			m.apply(On(TriggerFaceLost))
			m.noFaceFrames = 0
		}
		return res, nil
	}

	m.noFaceFrames = 0
	if m.snap.Current == StateNoFace {
		m.apply(On(TriggerFaceFound))
	}
	if res.Blinked {
		m.notifier.OnBlink()
	}
	m.evaluate(res, auxYawn, now)
	return res, nil
}

func (m *Machine) reportCalibration(res fatigue.Result) {
	if res.Progress != nil {
		m.notifier.OnCalibrationProgress(*res.Progress)
	}
	if res.Calibrated != nil {
		m.apply(On(TriggerCalibrationDone))
		m.notifier.OnCalibrationCompleted(*res.Calibrated)
	}
}

// updateAux feeds the mouth-open score to the auxiliary channel and reports
// whether it fired.
func (m *Machine) updateAux(f *landmark.Frame, now time.Time) bool {
	if !m.schema.HasExpressions() {
		return false
	}
	open, ok := f.MouthOpenScore()
	if !ok {
		return false
	}
	r := m.aux.Update(open, now)
	if !r.Triggered {
		return false
	}
	m.auxYawns++
	m.auxYawnTimes = append(pruneBefore(m.auxYawnTimes, now.Add(-m.cfg.RecentYawnWindow)), now)
	m.log.Debug("auxiliary yawn", "ema", r.EMA, "baseline", r.Baseline, "threshold", r.Threshold)
	return true
}

// pruneBefore drops times before cutoff, reusing the slice.
func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	keep := times[:0]
	for _, ts := range times {
		if !ts.Before(cutoff) {
			keep = append(keep, ts)
		}
	}
	return keep
}

// evaluate folds the frame into the score and derives the state from the
// detector's level.
func (m *Machine) evaluate(res fatigue.Result, auxYawn bool, now time.Time) {
	cooling := m.inCooldown(now)

	m.score.Evaluate(score.Input{
		EyeClosure:   m.detector.EyeClosureDuration(now),
		Yawn:         auxYawn || fatigue.HasKind(res.Events, fatigue.KindYawn),
		RecentBlinks: m.detector.RecentBlinkCount(now, m.cfg.Score.BlinkWindow),
		Fast:         cooling,
	}, now)
	m.notifier.OnScoreUpdated(m.score.Score(), m.score.Level())

	if cooling {
		m.apply(OnLevel(fatigue.LevelNormal))
		return
	}
	m.apply(OnLevel(res.Level))
}

func (m *Machine) inCooldown(now time.Time) bool {
	return now.Before(m.cooldownUntil)
}

// apply runs Transition and performs its effects.
func (m *Machine) apply(t Trigger) {
	prev := m.snap.Current
	next, effects := Transition(m.snap, t)
	m.snap = next
	if next.Current == prev {
		return
	}

	m.log.Debug("state transition", "from", prev, "to", next.Current, "trigger", t.Kind)
	for _, e := range effects {
		m.perform(e)
	}
	m.notifier.OnStateChanged(prev, next.Current)
}

func (m *Machine) perform(e Effect) {
	switch e {
	case EffectNotifyNormal:
		m.notifier.OnNormal()
	case EffectNotifyNotice:
		m.notifier.OnNotice()
	case EffectNotifyWarning:
		m.notifier.OnWarning()
	case EffectNotifyNoFace:
		m.notifier.OnNoFace()
	case EffectNotifyCalibrationStarted:
		m.notifier.OnCalibrationStarted()
	case EffectSilenceAlerts:
		m.notifier.SilenceAlerts()
	case EffectDialogActive:
		m.setDialog(true)
	case EffectDialogInactive:
		m.setDialog(false)
	}
}

func (m *Machine) setDialog(active bool) {
	m.dialogActive = active
	m.notifier.SetWarningDialogActive(active)
}

func (m *Machine) fault(err error) {
	m.lastErr = err
	m.stats.Faults++
	m.log.Error("frame processing failed", "state", m.snap.Current, "error", err)

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("notifier panicked while reporting a fault", "panic", r)
		}
	}()
	m.apply(On(TriggerFault))
	m.notifier.OnError(err)
}

// reinit restores every owned component to its initial state. Thresholds
// set through SetDetectionParameters and the processing rate are kept.
func (m *Machine) reinit() {
	m.detector.Reset()
	m.aux.Reset()
	m.score.Reset()
	m.noFaceFrames = 0
	m.lastProcessed = time.Time{}
	m.cooldownUntil = time.Time{}
	m.lastErr = nil
	m.schemaLocked = false
	m.auxYawns = 0
	m.auxYawnTimes = nil
}

// Start begins a detection session, reinitializing all state.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reinit()
	m.apply(On(TriggerStart))
	m.log.Info("detection started")
}

// Stop ends the session. Frames are dropped until Start or Reset.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detector.Reset()
	m.apply(On(TriggerStop))
	m.log.Info("detection stopped")
}

// Reset reinitializes all state and returns to DETECTING. It is the only way
// out of ERROR besides Start.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reinit()
	m.apply(On(TriggerReset))
}

// FullReset is Reset that also silences alerts and clears the warning dialog.
func (m *Machine) FullReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reinit()
	m.notifier.SilenceAlerts()
	m.setDialog(false)
	m.apply(On(TriggerReset))
}

// StartCalibration begins EAR sampling and enters CALIBRATING. A session
// already sampling starts over.
func (m *Machine) StartCalibration() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.Current.Terminal() {
		return ErrInactive
	}
	m.detector.StartCalibration(m.now())
	m.apply(On(TriggerCalibrationStart))
	return nil
}

// StopCalibration ends sampling early and returns to DETECTING. When samples
// were collected the threshold is updated and the result returned.
func (m *Machine) StopCalibration() (*fatigue.CalibrationResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.Current != StateCalibrating {
		return nil, false
	}
	cal, ok := m.detector.StopCalibration(m.now())
	m.apply(On(TriggerCalibrationDone))
	if ok {
		m.notifier.OnCalibrationCompleted(*cal)
	}
	return cal, ok
}

// Acknowledge records that the user dismissed an alert: for AckCooldown the
// state is held at DETECTING and the score recovers at the fast rate. It
// applies in DETECTING, NOTICE, WARNING and REST_MODE; elsewhere it returns
// ErrNotApplicable and changes nothing.
func (m *Machine) Acknowledge() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.Current.Terminal() {
		return ErrInactive
	}
	if !Applies(m.snap, On(TriggerAcknowledge)) {
		return fmt.Errorf("%w: acknowledge in %s", ErrNotApplicable, m.snap.Current)
	}
	m.cooldownUntil = m.now().Add(m.cfg.AckCooldown)
	m.apply(On(TriggerAcknowledge))
	m.notifier.OnUserAcknowledged()
	return nil
}

// RequestRest enters REST_MODE, aborting any calibration. Frames are dropped
// until Start, Reset or Acknowledge.
func (m *Machine) RequestRest() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.Current.Terminal() {
		return ErrInactive
	}
	m.detector.AbortCalibration()
	m.notifier.OnUserRequestedRest()
	m.apply(On(TriggerRest))
	return nil
}

// SetDetectionParameters replaces the EAR/MAR thresholds and the warning
// event count. Non-positive values keep the current setting.
func (m *Machine) SetDetectionParameters(earThreshold, marThreshold float64, eventThreshold int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detector.SetParameters(earThreshold, marThreshold, eventThreshold)
}

// SetProcessingRate sets the target frame rate, clamped to [MinFPS, MaxFPS],
// and returns the rate applied.
func (m *Machine) SetProcessingRate(fps int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.FPS = ClampFPS(fps)
	m.minInterval = frameInterval(m.cfg.FPS)
	return m.cfg.FPS
}

// Negotiate picks the frame schema for this session from the versions the
// extractor offers. It must happen before the first frame; repeating it
// later is accepted only if it yields the same schema.
func (m *Machine) Negotiate(offered []landmark.Schema) (landmark.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := landmark.Negotiate(offered)
	if err != nil {
		return 0, err
	}
	if m.schemaLocked && s != m.schema {
		return m.schema, ErrSchemaLocked
	}
	m.schema = s
	m.log.Info("schema negotiated", "schema", s.String())
	return s, nil
}
