package detection

import "github.com/teslashibe/drowsy/pkg/fatigue"

// Notifier receives fire-and-forget notifications from a Machine. Methods
// are called with the machine's lock held and must not call back into it.
type Notifier interface {
	// State entry notifications
	OnNormal()
	OnNotice()
	OnWarning()
	OnNoFace()
	OnCalibrationStarted()

	// OnStateChanged fires once per state change, after the enter notification.
	OnStateChanged(from, to State)

	OnCalibrationProgress(p fatigue.CalibrationProgress)
	OnCalibrationCompleted(r fatigue.CalibrationResult)
	OnScoreUpdated(score int, level fatigue.Level)
	OnBlink()

	// Alert surface
	SetWarningDialogActive(active bool)
	SilenceAlerts()

	OnUserAcknowledged()
	OnUserRequestedRest()
	OnError(err error)
}

// NopNotifier implements Notifier with no-ops. Embed it to implement a subset.
type NopNotifier struct{}

func (NopNotifier) OnNormal()                                           {}
func (NopNotifier) OnNotice()                                           {}
func (NopNotifier) OnWarning()                                          {}
func (NopNotifier) OnNoFace()                                           {}
func (NopNotifier) OnCalibrationStarted()                               {}
func (NopNotifier) OnStateChanged(from, to State)                       {}
func (NopNotifier) OnCalibrationProgress(p fatigue.CalibrationProgress) {}
func (NopNotifier) OnCalibrationCompleted(r fatigue.CalibrationResult)  {}
func (NopNotifier) OnScoreUpdated(score int, level fatigue.Level)       {}
func (NopNotifier) OnBlink()                                            {}
func (NopNotifier) SetWarningDialogActive(active bool)                  {}
func (NopNotifier) SilenceAlerts()                                      {}
func (NopNotifier) OnUserAcknowledged()                                 {}
func (NopNotifier) OnUserRequestedRest()                                {}
func (NopNotifier) OnError(err error)                                   {}

var _ Notifier = NopNotifier{}
