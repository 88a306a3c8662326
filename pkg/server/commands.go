package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/drowsy/pkg/detection"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

// ErrUnknownCommand is returned for command names the server does not know.
var ErrUnknownCommand = errors.New("unknown command")

// execute runs a command against the session's machine. REST and WebSocket
// commands both land here.
func (s *Server) execute(sess *Session, cmd protocol.CommandData) (protocol.CommandResultData, error) {
	m := sess.Machine
	res := protocol.CommandResultData{Name: cmd.Name}

	var err error
	switch cmd.Name {
	case protocol.CommandStart:
		m.Start()
	case protocol.CommandStop:
		m.Stop()
	case protocol.CommandReset:
		m.Reset()
	case protocol.CommandFullReset:
		m.FullReset()
	case protocol.CommandCalibrationStart:
		err = m.StartCalibration()
	case protocol.CommandCalibrationStop:
		if cal, ok := m.StopCalibration(); ok {
			res.Calibration = cal
		}
	case protocol.CommandAcknowledge:
		err = m.Acknowledge()
	case protocol.CommandRest:
		err = m.RequestRest()
	case protocol.CommandParameters:
		m.SetDetectionParameters(cmd.EARThreshold, cmd.MARThreshold, cmd.EventThreshold)
	case protocol.CommandRate:
		res.FPS = m.SetProcessingRate(cmd.FPS)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}

	res.OK = err == nil
	if err != nil {
		res.Error = err.Error()
		s.log.Warn("command failed", "session", sess.ID, "command", cmd.Name, "error", err)
	} else {
		s.log.Debug("command executed", "session", sess.ID, "command", cmd.Name)
	}
	res.State = m.State().String()
	return res, err
}

// processFrame feeds one wire frame to the session's machine.
func (s *Server) processFrame(sess *Session, fd *protocol.FrameData) protocol.ResultData {
	s.framesReceived.Add(1)
	sess.frames.Add(1)
	sess.touch()

	m := sess.Machine
	out := m.Step(fd.Frame(m.Schema()))

	data := protocol.NewResultData(sess.ID, out.Result)
	data.State = out.State.String()
	data.Score = out.Score
	return data
}

// statusCode maps command errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrSessionExists), errors.Is(err, detection.ErrInactive), errors.Is(err, detection.ErrNotApplicable), errors.Is(err, detection.ErrSchemaLocked), errors.Is(err, ErrAlreadyConnected):
		return fiber.StatusConflict
	case errors.Is(err, ErrUnknownCommand):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
