package server

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teslashibe/drowsy/pkg/detection"
)

// Stats contains server statistics
type Stats struct {
	Sessions         int             `json:"sessions"`
	Connected        int             `json:"connected"`
	Observers        int             `json:"observers"`
	MessagesReceived uint64          `json:"messages_received"`
	MessagesSent     uint64          `json:"messages_sent"`
	FramesReceived   uint64          `json:"frames_received"`
	Frames           detection.Stats `json:"frames"`
	States           map[string]int  `json:"states"`
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	st := Stats{
		Observers:        s.events.ClientCount(),
		MessagesReceived: s.messagesReceived.Load(),
		FramesReceived:   s.framesReceived.Load(),
		MessagesSent:     s.events.Sent(),
		States:           make(map[string]int),
	}
	for _, sess := range s.Sessions() {
		st.Sessions++
		if sess.Connected() {
			st.Connected++
		}
		st.MessagesSent += sess.sent.Load()

		status := sess.Machine.Status()
		st.States[status.State.String()]++
		st.Frames.Processed += status.Stats.Processed
		st.Frames.Skipped += status.Stats.Skipped
		st.Frames.Dropped += status.Stats.Dropped
		st.Frames.Faults += status.Stats.Faults
	}
	return st
}

// exposition renders stats in the Prometheus text format.
func (st Stats) exposition() string {
	var b strings.Builder
	metric := func(name, kind, help string, v interface{}) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, v)
	}

	metric("drowsy_sessions", "gauge", "Detection session count", st.Sessions)
	metric("drowsy_sessions_connected", "gauge", "Sessions with an extractor attached", st.Connected)
	metric("drowsy_observers", "gauge", "Connected event observers", st.Observers)
	metric("drowsy_messages_received", "counter", "Total messages received", st.MessagesReceived)
	metric("drowsy_messages_sent", "counter", "Total messages sent", st.MessagesSent)
	metric("drowsy_frames_received", "counter", "Total landmark frames received", st.FramesReceived)
	metric("drowsy_frames_processed", "counter", "Frames evaluated by a detection machine", st.Frames.Processed)
	metric("drowsy_frames_skipped", "counter", "Frames skipped by the rate limit", st.Frames.Skipped)
	metric("drowsy_frames_dropped", "counter", "Frames dropped by inactive sessions", st.Frames.Dropped)
	metric("drowsy_faults", "counter", "Processing faults", st.Frames.Faults)

	states := make([]string, 0, len(st.States))
	for name := range st.States {
		states = append(states, name)
	}
	sort.Strings(states)
	b.WriteString("# HELP drowsy_sessions_by_state Sessions per detection state\n# TYPE drowsy_sessions_by_state gauge\n")
	for _, name := range states {
		fmt.Fprintf(&b, "drowsy_sessions_by_state{state=%q} %d\n", name, st.States[name])
	}
	return b.String()
}
