// Package detection orchestrates the fatigue pipeline for one session: it
// runs the event detector, the auxiliary yawn channel and the score engine
// on each frame, and reconciles them into a single detection state.
package detection

import (
	"fmt"

	"github.com/teslashibe/drowsy/pkg/fatigue"
)

// State is the session's detection state.
type State int

const (
	StateInitializing State = iota
	StateCalibrating
	StateDetecting
	StateNotice
	StateWarning
	StateNoFace
	StateRestMode
	StateError
	StateShutdown
)

var stateNames = [...]string{
	StateInitializing: "INITIALIZING",
	StateCalibrating:  "CALIBRATING",
	StateDetecting:    "DETECTING",
	StateNotice:       "NOTICE",
	StateWarning:      "WARNING",
	StateNoFace:       "NO_FACE",
	StateRestMode:     "REST_MODE",
	StateError:        "ERROR",
	StateShutdown:     "SHUTDOWN",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	st, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseState returns the state with the given name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown detection state %q", name)
}

// Terminal reports whether frames are dropped in this state until an explicit
// start or reset.
func (s State) Terminal() bool {
	return s == StateError || s == StateShutdown
}

// evaluating reports whether per-frame level evaluation may move the state.
func (s State) evaluating() bool {
	return s == StateDetecting || s == StateNotice || s == StateWarning
}

// TriggerKind identifies what happened.
type TriggerKind int

const (
	TriggerStart TriggerKind = iota
	TriggerStop
	TriggerReset
	TriggerCalibrationStart
	TriggerCalibrationDone
	TriggerFaceLost
	TriggerFaceFound
	TriggerLevel
	TriggerAcknowledge
	TriggerRest
	TriggerFault
)

var triggerNames = [...]string{
	TriggerStart:            "start",
	TriggerStop:             "stop",
	TriggerReset:            "reset",
	TriggerCalibrationStart: "calibration_start",
	TriggerCalibrationDone:  "calibration_done",
	TriggerFaceLost:         "face_lost",
	TriggerFaceFound:        "face_found",
	TriggerLevel:            "level",
	TriggerAcknowledge:      "acknowledge",
	TriggerRest:             "rest",
	TriggerFault:            "fault",
}

func (k TriggerKind) String() string {
	if k >= 0 && int(k) < len(triggerNames) {
		return triggerNames[k]
	}
	return fmt.Sprintf("Trigger(%d)", int(k))
}

// Trigger is an input to Transition. Level is only read for TriggerLevel.
type Trigger struct {
	Kind  TriggerKind
	Level fatigue.Level
}

// On returns a trigger of kind k.
func On(k TriggerKind) Trigger { return Trigger{Kind: k} }

// OnLevel returns a level evaluation trigger.
func OnLevel(l fatigue.Level) Trigger { return Trigger{Kind: TriggerLevel, Level: l} }

// Effect is a side effect produced by a state change, applied by the caller.
type Effect int

const (
	EffectNotifyNormal Effect = iota
	EffectNotifyNotice
	EffectNotifyWarning
	EffectNotifyNoFace
	EffectNotifyCalibrationStarted
	EffectSilenceAlerts
	EffectDialogActive
	EffectDialogInactive
)

var effectNames = [...]string{
	EffectNotifyNormal:             "notify_normal",
	EffectNotifyNotice:             "notify_notice",
	EffectNotifyWarning:            "notify_warning",
	EffectNotifyNoFace:             "notify_no_face",
	EffectNotifyCalibrationStarted: "notify_calibration_started",
	EffectSilenceAlerts:            "silence_alerts",
	EffectDialogActive:             "dialog_active",
	EffectDialogInactive:           "dialog_inactive",
}

func (e Effect) String() string {
	if e >= 0 && int(e) < len(effectNames) {
		return effectNames[e]
	}
	return fmt.Sprintf("Effect(%d)", int(e))
}

// Snapshot is the part of the machine state that Transition reads and writes.
// LastKnown is the state NO_FACE interrupted.
type Snapshot struct {
	Current   State
	LastKnown State
}

// InitialSnapshot is the state of a freshly constructed machine.
func InitialSnapshot() Snapshot {
	return Snapshot{Current: StateInitializing, LastKnown: StateDetecting}
}

// Transition computes the next snapshot for trigger t. It is pure: effects
// are returned in the order exit-then-enter and are empty when the state does
// not change.
func Transition(s Snapshot, t Trigger) (Snapshot, []Effect) {
	target, ok := next(s, t)
	if !ok {
		return s, nil
	}

	out := s
	switch {
	case t.Kind == TriggerStart || t.Kind == TriggerReset:
		out.LastKnown = StateDetecting
	case target == StateNoFace && s.Current != StateNoFace:
		out.LastKnown = s.Current
	}
	if target == s.Current {
		return out, nil
	}
	out.Current = target

	effects := exitEffects(s.Current)
	for _, e := range enterEffects(target) {
		if !containsEffect(effects, e) {
			effects = append(effects, e)
		}
	}
	return out, effects
}

// next returns the target state, or false when t does not apply in s.
func next(s Snapshot, t Trigger) (State, bool) {
	cur := s.Current

	switch t.Kind {
	case TriggerStart, TriggerReset:
		return StateDetecting, true
	case TriggerStop:
		return StateShutdown, true
	case TriggerFault:
		return StateError, true
	}

	if cur.Terminal() {
		return cur, false
	}

	switch t.Kind {
	case TriggerCalibrationStart:
		return StateCalibrating, true
	case TriggerCalibrationDone:
		return StateDetecting, cur == StateCalibrating
	case TriggerFaceLost:
		return StateNoFace, cur.evaluating()
	case TriggerFaceFound:
		if cur != StateNoFace {
			return cur, false
		}
		return s.LastKnown, true
	case TriggerLevel:
		if !cur.evaluating() {
			return cur, false
		}
		switch t.Level {
		case fatigue.LevelWarning:
			return StateWarning, true
		case fatigue.LevelNotice:
			return StateNotice, true
		default:
			return StateDetecting, true
		}
	case TriggerAcknowledge:
		return StateDetecting, cur.evaluating() || cur == StateRestMode
	case TriggerRest:
		return StateRestMode, cur != StateInitializing
	}
	return cur, false
}

// Applies reports whether t is accepted in s.
func Applies(s Snapshot, t Trigger) bool {
	_, ok := next(s, t)
	return ok
}

func exitEffects(s State) []Effect {
	if s == StateWarning {
		return []Effect{EffectDialogInactive}
	}
	return nil
}

func enterEffects(s State) []Effect {
	switch s {
	case StateNoFace:
		return []Effect{EffectNotifyNoFace, EffectSilenceAlerts}
	case StateWarning:
		return []Effect{EffectNotifyWarning, EffectDialogActive}
	case StateNotice:
		return []Effect{EffectNotifyNotice}
	case StateCalibrating:
		return []Effect{EffectNotifyCalibrationStarted, EffectSilenceAlerts}
	case StateDetecting:
		return []Effect{EffectNotifyNormal}
	case StateError, StateRestMode, StateShutdown:
		return []Effect{EffectSilenceAlerts, EffectDialogInactive}
	}
	return nil
}

func containsEffect(effects []Effect, e Effect) bool {
	for _, x := range effects {
		if x == e {
			return true
		}
	}
	return false
}
