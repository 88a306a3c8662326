// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

// Message represents a message to be broadcast to clients
type Message struct {
	// Session scopes the message. Empty reaches every client.
	Session string

	// Data is a pre-encoded JSON document.
	Data []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(session string, data []byte) Message {
	return Message{Session: session, Data: data}
}

// matches reports whether a client following session should receive m.
func (m Message) matches(session string) bool {
	return session == "" || m.Session == "" || m.Session == session
}
