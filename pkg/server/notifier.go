package server

import (
	"log/slog"

	"github.com/teslashibe/drowsy/pkg/detection"
	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/hub"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

// notifier turns machine notifications into protocol messages for the
// session's extractor and every observer following the session.
// The machine calls it with its lock held, one call at a time.
type notifier struct {
	session *Session
	events  *hub.Hub
	log     *slog.Logger

	lastScore int
	lastLevel fatigue.Level
}

func newNotifier(sess *Session, events *hub.Hub, log *slog.Logger) *notifier {
	return &notifier{session: sess, events: events, log: log, lastScore: -1}
}

var _ detection.Notifier = (*notifier)(nil)

func (n *notifier) emit(t protocol.MessageType, data interface{}) {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		n.log.Error("encode notification", "type", t, "error", err)
		return
	}
	raw, err := msg.Bytes()
	if err != nil {
		n.log.Error("encode notification", "type", t, "error", err)
		return
	}
	if err := n.session.sendRaw(raw); err != nil {
		n.log.Debug("notification not delivered", "type", t, "error", err)
	}
	if n.events != nil {
		n.events.Broadcast(hub.NewJSONMessage(n.session.ID, raw))
	}
}

func (n *notifier) alert(kind string) {
	n.emit(protocol.TypeAlert, protocol.AlertData{Session: n.session.ID, Kind: kind})
}

func (n *notifier) OnNormal()             { n.alert(protocol.AlertNormal) }
func (n *notifier) OnNotice()             { n.alert(protocol.AlertNotice) }
func (n *notifier) OnWarning()            { n.alert(protocol.AlertWarning) }
func (n *notifier) OnNoFace()             { n.alert(protocol.AlertNoFace) }
func (n *notifier) OnCalibrationStarted() { n.alert(protocol.AlertCalibrationStarted) }
func (n *notifier) SilenceAlerts()        { n.alert(protocol.AlertSilence) }

func (n *notifier) OnStateChanged(from, to detection.State) {
	n.emit(protocol.TypeState, protocol.StateData{
		Session: n.session.ID,
		From:    from.String(),
		To:      to.String(),
	})
}

func (n *notifier) OnCalibrationProgress(p fatigue.CalibrationProgress) {
	n.emit(protocol.TypeCalibrationProgress, protocol.CalibrationProgressData{
		Session:             n.session.ID,
		CalibrationProgress: p,
	})
}

func (n *notifier) OnCalibrationCompleted(r fatigue.CalibrationResult) {
	n.emit(protocol.TypeCalibrationCompleted, protocol.CalibrationCompletedData{
		Session:           n.session.ID,
		CalibrationResult: r,
	})
}

// OnScoreUpdated fires on every evaluated frame; only changes go out.
func (n *notifier) OnScoreUpdated(score int, level fatigue.Level) {
	if score == n.lastScore && level == n.lastLevel {
		return
	}
	n.lastScore, n.lastLevel = score, level
	n.emit(protocol.TypeScore, protocol.ScoreData{Session: n.session.ID, Score: score, Level: level})
}

func (n *notifier) OnBlink() {
	n.emit(protocol.TypeBlink, protocol.BlinkData{Session: n.session.ID})
}

func (n *notifier) SetWarningDialogActive(active bool) {
	n.emit(protocol.TypeDialog, protocol.DialogData{Session: n.session.ID, Active: active})
}

func (n *notifier) OnUserAcknowledged() {
	n.emit(protocol.TypeUserAction, protocol.UserActionData{Session: n.session.ID, Action: protocol.ActionAcknowledged})
}

func (n *notifier) OnUserRequestedRest() {
	n.emit(protocol.TypeUserAction, protocol.UserActionData{Session: n.session.ID, Action: protocol.ActionRest})
}

func (n *notifier) OnError(err error) {
	n.log.Error("detection fault", "error", err)
	n.emit(protocol.TypeError, protocol.ErrorData{Session: n.session.ID, Error: err.Error()})
}
