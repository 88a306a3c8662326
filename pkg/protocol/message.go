// Package protocol defines the WebSocket message types exchanged between the
// landmark extractor, UI observers and the drowsiness service.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/landmark"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Extractor → Service messages
	TypeHello   MessageType = "hello"   // Schema offer, once per session
	TypeFrame   MessageType = "frame"   // One frame of landmarks
	TypeCommand MessageType = "command" // User or UI command

	// Service → Extractor/UI messages
	TypeWelcome              MessageType = "welcome"               // Negotiated schema
	TypeResult               MessageType = "result"                // Per-frame outcome
	TypeCommandResult        MessageType = "command_result"        // Command outcome
	TypeState                MessageType = "state"                 // Detection state change
	TypeAlert                MessageType = "alert"                 // Alert channel output
	TypeScore                MessageType = "score"                 // Fatigue score update
	TypeBlink                MessageType = "blink"                 // Counted blink
	TypeCalibrationProgress  MessageType = "calibration_progress"  // Calibration sampling
	TypeCalibrationCompleted MessageType = "calibration_completed" // New EAR threshold
	TypeDialog               MessageType = "dialog"                // Warning dialog flag
	TypeUserAction           MessageType = "user_action"           // Acknowledge or rest
	TypeError                MessageType = "error"                 // Processing fault

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Extractor → Service Message Types
// =============================================================================

// HelloData offers the frame schemas the extractor can emit.
type HelloData struct {
	Schemas []int `json:"schemas"`
}

// FrameData carries one frame of landmarks. An empty Points list means no face.
type FrameData struct {
	Timestamp   int64              `json:"ts,omitempty"` // Unix milliseconds, 0 = receive time
	Points      []landmark.Point   `json:"points"`
	Expressions map[string]float64 `json:"expressions,omitempty"`
}

// Command names accepted in CommandData.Name.
const (
	CommandStart            = "start"
	CommandStop             = "stop"
	CommandReset            = "reset"
	CommandFullReset        = "full_reset"
	CommandCalibrationStart = "calibration_start"
	CommandCalibrationStop  = "calibration_stop"
	CommandAcknowledge      = "acknowledge"
	CommandRest             = "rest"
	CommandParameters       = "parameters"
	CommandRate             = "rate"
)

// CommandData asks the session to do something.
type CommandData struct {
	Name string `json:"name"`

	// Parameters
	EARThreshold   float64 `json:"ear_threshold,omitempty"`
	MARThreshold   float64 `json:"mar_threshold,omitempty"`
	EventThreshold int     `json:"event_threshold,omitempty"`

	// Rate
	FPS int `json:"fps,omitempty"`
}

// =============================================================================
// Service → Extractor/UI Message Types
// =============================================================================

// WelcomeData answers hello with the negotiated schema.
type WelcomeData struct {
	Session    string `json:"session"`
	Schema     int    `json:"schema"`
	SchemaName string `json:"schema_name"`
	FPS        int    `json:"fps"`
}

// EventData is a wire form of a fatigue event.
type EventData struct {
	Kind       fatigue.Kind `json:"kind"`
	DurationMs int64        `json:"duration_ms,omitempty"`
	Count      int          `json:"count,omitempty"`
	Timestamp  int64        `json:"ts"`
}

// ResultData is the outcome of one frame.
type ResultData struct {
	Session         string        `json:"session,omitempty"`
	Skipped         bool          `json:"skipped,omitempty"`
	FaceDetected    bool          `json:"face_detected"`
	FatigueDetected bool          `json:"fatigue_detected"`
	Level           fatigue.Level `json:"level"`
	EAR             float64       `json:"ear"`
	MAR             float64       `json:"mar"`
	Blinked         bool          `json:"blinked,omitempty"`
	Events          []EventData   `json:"events,omitempty"`
	State           string        `json:"state"`
	Score           int           `json:"score"`

	Progress   *fatigue.CalibrationProgress `json:"calibration_progress,omitempty"`
	Calibrated *fatigue.CalibrationResult   `json:"calibrated,omitempty"`
}

// CommandResultData reports the outcome of a command.
type CommandResultData struct {
	Name        string                     `json:"name"`
	OK          bool                       `json:"ok"`
	Error       string                     `json:"error,omitempty"`
	State       string                     `json:"state"`
	FPS         int                        `json:"fps,omitempty"`
	Calibration *fatigue.CalibrationResult `json:"calibration,omitempty"`
}

// StateData reports a detection state transition.
type StateData struct {
	Session string `json:"session"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// Alert kinds carried by AlertData.
const (
	AlertNormal             = "normal"
	AlertNotice             = "notice"
	AlertWarning            = "warning"
	AlertNoFace             = "no_face"
	AlertCalibrationStarted = "calibration_started"
	AlertSilence            = "silence"
)

// AlertData is one alert channel output.
type AlertData struct {
	Session string `json:"session"`
	Kind    string `json:"kind"`
}

// ScoreData reports the fatigue score.
type ScoreData struct {
	Session string        `json:"session"`
	Score   int           `json:"score"`
	Level   fatigue.Level `json:"level"`
}

// BlinkData reports a counted blink.
type BlinkData struct {
	Session string `json:"session"`
}

// CalibrationProgressData reports calibration sampling progress.
type CalibrationProgressData struct {
	Session string `json:"session"`
	fatigue.CalibrationProgress
}

// CalibrationCompletedData reports a finished calibration.
type CalibrationCompletedData struct {
	Session string `json:"session"`
	fatigue.CalibrationResult
}

// DialogData reports whether the warning dialog should be shown.
type DialogData struct {
	Session string `json:"session"`
	Active  bool   `json:"active"`
}

// User actions carried by UserActionData.
const (
	ActionAcknowledged = "acknowledged"
	ActionRest         = "rest"
)

// UserActionData echoes a user decision to observers.
type UserActionData struct {
	Session string `json:"session"`
	Action  string `json:"action"`
}

// ErrorData reports a fault.
type ErrorData struct {
	Session string `json:"session,omitempty"`
	Error   string `json:"error"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
