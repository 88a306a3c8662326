package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/drowsy/pkg/landmark"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

// maxLine bounds one JSONL record.
const maxLine = 1 << 20

// readFrames decodes one protocol.FrameData per line. Blank lines and lines
// starting with # are skipped.
func readFrames(r io.Reader) ([]protocol.FrameData, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var frames []protocol.FrameData
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var fd protocol.FrameData
		if err := json.Unmarshal([]byte(text), &fd); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, fd)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// phase is one stretch of a synthetic scenario.
type phase struct {
	kind string
	dur  time.Duration
}

// Synthetic eye and mouth ratios per phase kind.
var phaseRatios = map[string][2]float64{
	"open":   {0.30, 0.20},
	"closed": {0.10, 0.20},
	"yawn":   {0.30, 0.90},
	"noface": {0, 0},
}

// parseScenario parses "open:3s,closed:1.5s,yawn:4s". A bare number is seconds.
func parseScenario(s string) ([]phase, error) {
	var phases []phase
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kind, rawDur, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("phase %q: want kind:duration", part)
		}
		kind = strings.ToLower(strings.TrimSpace(kind))
		if _, known := phaseRatios[kind]; !known {
			return nil, fmt.Errorf("phase %q: unknown kind %q", part, kind)
		}
		dur, err := parseDuration(strings.TrimSpace(rawDur))
		if err != nil {
			return nil, fmt.Errorf("phase %q: %w", part, err)
		}
		phases = append(phases, phase{kind: kind, dur: dur})
	}
	if len(phases) == 0 {
		return nil, fmt.Errorf("empty scenario")
	}
	return phases, nil
}

func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}

// synthesize renders phases as frames at fps starting at start.
func synthesize(phases []phase, fps int, start time.Time) []protocol.FrameData {
	if fps <= 0 {
		fps = 10
	}
	step := time.Second / time.Duration(fps)

	var frames []protocol.FrameData
	ts := start
	for _, p := range phases {
		ratios := phaseRatios[p.kind]
		for end := ts.Add(p.dur); ts.Before(end); ts = ts.Add(step) {
			var f *landmark.Frame
			if p.kind == "noface" {
				f = landmark.NoFace(ts)
			} else {
				f = landmark.Synthetic(ts, ratios[0], ratios[1])
			}
			frames = append(frames, protocol.FrameData{
				Timestamp:   ts.UnixMilli(),
				Points:      f.Points,
				Expressions: f.Expressions,
			})
		}
	}
	return frames
}

// gap returns the wait between two recorded frames, capped at max.
func gap(prev, next protocol.FrameData, max time.Duration) time.Duration {
	if prev.Timestamp == 0 || next.Timestamp <= prev.Timestamp {
		return 0
	}
	d := time.Duration(next.Timestamp-prev.Timestamp) * time.Millisecond
	if d > max {
		return max
	}
	return d
}
