package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/drowsy/pkg/detection"
	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

func TestParseScenario(t *testing.T) {
	phases, err := parseScenario("open:3s, closed:1.5, yawn:500ms")
	require.NoError(t, err)
	require.Len(t, phases, 3)
	assert.Equal(t, phase{"open", 3 * time.Second}, phases[0])
	assert.Equal(t, phase{"closed", 1500 * time.Millisecond}, phases[1])
	assert.Equal(t, phase{"yawn", 500 * time.Millisecond}, phases[2])

	for _, bad := range []string{"", "open", "blink:1s", "open:-1s", "open:soon"} {
		_, err := parseScenario(bad)
		assert.Error(t, err, bad)
	}
}

func TestSynthesize(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	frames := synthesize([]phase{{"open", time.Second}, {"noface", 500 * time.Millisecond}}, 10, start)

	require.Len(t, frames, 15)
	assert.Equal(t, start.UnixMilli(), frames[0].Timestamp)
	assert.Equal(t, start.Add(1400*time.Millisecond).UnixMilli(), frames[14].Timestamp)
	assert.NotEmpty(t, frames[9].Points)
	assert.Empty(t, frames[10].Points)
}

func TestReadFrames(t *testing.T) {
	input := `# recorded drive
{"ts": 1000, "points": [{"x": 0.5, "y": 0.5, "z": 0}]}

{"ts": 1100, "points": []}
`
	frames, err := readFrames(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, int64(1100), frames[1].Timestamp)

	_, err = readFrames(strings.NewReader("{not json}\n"))
	assert.ErrorContains(t, err, "line 1")
}

func TestGap(t *testing.T) {
	a := protocol.FrameData{Timestamp: 1000}
	assert.Equal(t, 100*time.Millisecond, gap(a, protocol.FrameData{Timestamp: 1100}, time.Second))
	assert.Equal(t, time.Second, gap(a, protocol.FrameData{Timestamp: 9000}, time.Second))
	assert.Zero(t, gap(a, protocol.FrameData{Timestamp: 900}, time.Second))
}

func TestReplayLocalDetectsEyeClosure(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	frames := synthesize([]phase{{"open", time.Second}, {"closed", 1500 * time.Millisecond}}, 10, start)

	report, err := replayLocal(context.Background(), detection.DefaultConfig(), frames, replayOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.EventCounts[fatigue.Kind("eye_closure")])
	assert.Equal(t, 25, report.EAR.Count)
}

func TestWSURL(t *testing.T) {
	u, err := wsURL("http://localhost:8080/", "car 1")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/session/car%201", u)

	_, err = wsURL("ftp://x", "a")
	assert.Error(t, err)

	assert.Equal(t, "https://h:1", httpBase("wss://h:1/"))
}
