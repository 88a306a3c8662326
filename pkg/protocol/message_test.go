package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/landmark"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "frame message",
			msgType: TypeFrame,
			data:    FrameData{Points: []landmark.Point{{X: 0.5, Y: 0.5}}},
		},
		{
			name:    "command message",
			msgType: TypeCommand,
			data:    CommandData{Name: CommandRate, FPS: 15},
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeResult,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	src := landmark.Synthetic(ts, 0.3, 0.2).WithExpression(landmark.JawOpen, 0.4)

	msg, err := NewFrameMessage(src)
	if err != nil {
		t.Fatalf("NewFrameMessage() error = %v", err)
	}
	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeFrame {
		t.Fatalf("type = %v, want %v", parsed.Type, TypeFrame)
	}
	data, err := parsed.GetFrameData()
	if err != nil {
		t.Fatalf("GetFrameData() error = %v", err)
	}

	f := data.Frame(landmark.SchemaMeshBlendshapes)
	if !f.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", f.Timestamp, ts)
	}
	if len(f.Points) != len(src.Points) {
		t.Errorf("points = %d, want %d", len(f.Points), len(src.Points))
	}
	if f.Expressions[landmark.JawOpen] != 0.4 {
		t.Errorf("jawOpen = %v, want 0.4", f.Expressions[landmark.JawOpen])
	}

	mesh := data.Frame(landmark.SchemaMesh)
	if mesh.Expressions != nil {
		t.Error("mesh schema should drop expressions")
	}
}

func TestNoFaceFrame(t *testing.T) {
	msg, err := NewFrameMessage(&landmark.Frame{})
	if err != nil {
		t.Fatalf("NewFrameMessage() error = %v", err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		t.Fatalf("invalid data: %v", err)
	}
	if string(wire["points"]) != "[]" {
		t.Errorf("points = %s, want []", wire["points"])
	}
	if _, ok := wire["ts"]; ok {
		t.Error("zero timestamp should be omitted")
	}

	data, _ := msg.GetFrameData()
	f := data.Frame(landmark.SchemaMeshBlendshapes)
	if f.HasFace() {
		t.Error("empty points should mean no face")
	}
	if !f.Timestamp.IsZero() {
		t.Error("missing ts should leave timestamp zero")
	}
}

func TestHelloOffered(t *testing.T) {
	msg, err := NewHelloMessage(landmark.SchemaMesh, landmark.SchemaMeshBlendshapes)
	if err != nil {
		t.Fatalf("NewHelloMessage() error = %v", err)
	}
	hello, err := msg.GetHelloData()
	if err != nil {
		t.Fatalf("GetHelloData() error = %v", err)
	}

	offered := hello.Offered()
	if len(offered) != 2 || offered[0] != landmark.SchemaMesh || offered[1] != landmark.SchemaMeshBlendshapes {
		t.Errorf("offered = %v", offered)
	}
}

func TestWelcomeMessage(t *testing.T) {
	msg, _ := NewWelcomeMessage("abc", landmark.SchemaMesh, 20)
	w, err := msg.GetWelcomeData()
	if err != nil {
		t.Fatalf("GetWelcomeData() error = %v", err)
	}
	if w.Session != "abc" || w.Schema != 1 || w.SchemaName != "mesh/v1" || w.FPS != 20 {
		t.Errorf("unexpected welcome %+v", w)
	}
}

func TestNewResultData(t *testing.T) {
	at := time.UnixMilli(5000)
	res := fatigue.Result{
		FatigueDetected: true,
		Level:           fatigue.LevelWarning,
		FaceDetected:    true,
		EAR:             0.1,
		MAR:             0.9,
		Events: []fatigue.Event{
			fatigue.EyeClosure{Duration: 1500 * time.Millisecond, Time: at},
			fatigue.HighBlinkFrequency{Count: 26, Time: at},
		},
	}

	data := NewResultData("s1", res)
	if data.Session != "s1" || !data.FatigueDetected || data.Level != fatigue.LevelWarning {
		t.Errorf("unexpected result %+v", data)
	}
	if len(data.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(data.Events))
	}
	if data.Events[0].Kind != fatigue.KindEyeClosure || data.Events[0].DurationMs != 1500 {
		t.Errorf("event[0] = %+v", data.Events[0])
	}
	if data.Events[1].Count != 26 || data.Events[1].Timestamp != 5000 {
		t.Errorf("event[1] = %+v", data.Events[1])
	}

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}
	var wire map[string]interface{}
	json.Unmarshal(raw, &wire)
	if wire["level"] != "warning" {
		t.Errorf("level = %v, want warning", wire["level"])
	}
}

func TestCalibrationDataFlattens(t *testing.T) {
	msg, err := NewMessage(TypeCalibrationCompleted, CalibrationCompletedData{
		Session:           "s",
		CalibrationResult: fatigue.CalibrationResult{Threshold: 0.21, Samples: 30},
	})
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	var wire map[string]interface{}
	json.Unmarshal(msg.Data, &wire)
	if wire["threshold"] != 0.21 {
		t.Errorf("threshold = %v, want 0.21", wire["threshold"])
	}
	if wire["samples"] != float64(30) {
		t.Errorf("samples = %v, want 30", wire["samples"])
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", "{not json"},
		{"missing type", `{"ts": 1}`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMessage([]byte(tt.input)); err == nil {
				t.Error("ParseMessage() expected error")
			}
		})
	}
}

func TestPingPong(t *testing.T) {
	ping, _ := NewPingMessage("p1")
	data, err := ping.GetPingData()
	if err != nil {
		t.Fatalf("GetPingData() error = %v", err)
	}
	if data.ID != "p1" || data.Timestamp == 0 {
		t.Errorf("unexpected ping %+v", data)
	}

	pong, _ := NewPongMessage("p1", 100, 130)
	var pd PongData
	if err := pong.ParseData(&pd); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if pd.LatencyMs != 30 {
		t.Errorf("latency = %d, want 30", pd.LatencyMs)
	}
}
