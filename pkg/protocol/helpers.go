package protocol

import (
	"time"

	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/landmark"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewHelloMessage creates a hello message offering schemas.
func NewHelloMessage(schemas ...landmark.Schema) (*Message, error) {
	offered := make([]int, len(schemas))
	for i, s := range schemas {
		offered[i] = int(s)
	}
	return NewMessage(TypeHello, HelloData{Schemas: offered})
}

// NewWelcomeMessage creates the handshake answer.
func NewWelcomeMessage(session string, schema landmark.Schema, fps int) (*Message, error) {
	return NewMessage(TypeWelcome, WelcomeData{
		Session:    session,
		Schema:     int(schema),
		SchemaName: schema.String(),
		FPS:        fps,
	})
}

// NewFrameMessage creates a frame message from a landmark frame.
func NewFrameMessage(f *landmark.Frame) (*Message, error) {
	data := FrameData{Points: f.Points, Expressions: f.Expressions}
	if !f.Timestamp.IsZero() {
		data.Timestamp = f.Timestamp.UnixMilli()
	}
	if data.Points == nil {
		data.Points = []landmark.Point{}
	}
	return NewMessage(TypeFrame, data)
}

// NewCommandMessage creates a command message.
func NewCommandMessage(cmd CommandData) (*Message, error) {
	return NewMessage(TypeCommand, cmd)
}

// NewResultMessage creates a result message from a processed frame.
func NewResultMessage(data ResultData) (*Message, error) {
	return NewMessage(TypeResult, data)
}

// NewErrorMessage creates an error message.
func NewErrorMessage(session string, err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Session: session, Error: err.Error()})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// NewResultData converts a processed frame into its wire form.
func NewResultData(session string, res fatigue.Result) ResultData {
	data := ResultData{
		Session:         session,
		Skipped:         res.Skipped,
		FaceDetected:    res.FaceDetected,
		FatigueDetected: res.FatigueDetected,
		Level:           res.Level,
		EAR:             res.EAR,
		MAR:             res.MAR,
		Blinked:         res.Blinked,
		Progress:        res.Progress,
		Calibrated:      res.Calibrated,
	}
	for _, ev := range res.Events {
		data.Events = append(data.Events, NewEventData(ev))
	}
	return data
}

// NewEventData converts a fatigue event into its wire form.
func NewEventData(ev fatigue.Event) EventData {
	out := EventData{Kind: ev.Kind(), Timestamp: ev.At().UnixMilli()}
	switch e := ev.(type) {
	case fatigue.EyeClosure:
		out.DurationMs = e.Duration.Milliseconds()
	case fatigue.Yawn:
		out.DurationMs = e.Duration.Milliseconds()
	case fatigue.HighBlinkFrequency:
		out.Count = e.Count
	}
	return out
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHelloData extracts hello data from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Offered returns the offered schemas.
func (h *HelloData) Offered() []landmark.Schema {
	out := make([]landmark.Schema, len(h.Schemas))
	for i, s := range h.Schemas {
		out[i] = landmark.Schema(s)
	}
	return out
}

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Frame converts the wire frame into a landmark frame. Expressions are
// dropped when the negotiated schema does not carry them.
func (f *FrameData) Frame(schema landmark.Schema) *landmark.Frame {
	frame := &landmark.Frame{Points: f.Points}
	if f.Timestamp > 0 {
		frame.Timestamp = time.UnixMilli(f.Timestamp)
	}
	if schema.HasExpressions() {
		frame.Expressions = f.Expressions
	}
	return frame
}

// GetCommandData extracts command data from a message
func (m *Message) GetCommandData() (*CommandData, error) {
	var data CommandData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetResultData extracts result data from a message
func (m *Message) GetResultData() (*ResultData, error) {
	var data ResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetWelcomeData extracts welcome data from a message
func (m *Message) GetWelcomeData() (*WelcomeData, error) {
	var data WelcomeData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
