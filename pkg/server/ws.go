package server

import (
	"fmt"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/drowsy/pkg/detection"
	"github.com/teslashibe/drowsy/pkg/hub"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

// maxFrameSize bounds one inbound message; a full mesh with blendshapes is
// well under 64KB.
const maxFrameSize = 256 * 1024

// RegisterRoutes registers WebSocket routes on a Fiber app
func (s *Server) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Extractor endpoint
	app.Get("/ws/session", websocket.New(s.handleSession))
	app.Get("/ws/session/:id", websocket.New(s.handleSession))

	// Observer endpoint
	app.Get("/ws/events", hub.Handler(s.events))
}

// handleSession handles one extractor connection.
func (s *Server) handleSession(c *websocket.Conn) {
	sess := s.sessionFor(c.Params("id"))
	l := s.log.With("session", sess.ID)

	if err := sess.attach(c); err != nil {
		l.Warn("rejected extractor", "error", err)
		if msg, merr := protocol.NewErrorMessage(sess.ID, err); merr == nil {
			if data, berr := msg.Bytes(); berr == nil {
				c.WriteMessage(websocket.TextMessage, data)
			}
		}
		return
	}
	l.Info("extractor connected")

	defer func() {
		sess.detach(c)
		l.Info("extractor disconnected")
	}()

	c.SetReadLimit(maxFrameSize)
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			l.Debug("read error", "error", err)
			return
		}
		s.messagesReceived.Add(1)
		s.handleMessage(sess, data)
	}
}

// handleMessage processes an incoming message from an extractor
func (s *Server) handleMessage(sess *Session, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.replyError(sess, err)
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		hello, err := msg.GetHelloData()
		if err != nil {
			s.replyError(sess, err)
			return
		}
		s.hello(sess, hello)

	case protocol.TypeFrame:
		frame, err := msg.GetFrameData()
		if err != nil {
			s.replyError(sess, err)
			return
		}
		s.reply(sess, protocol.TypeResult, s.processFrame(sess, frame))

	case protocol.TypeCommand:
		cmd, err := msg.GetCommandData()
		if err != nil {
			s.replyError(sess, err)
			return
		}
		res, _ := s.execute(sess, *cmd)
		s.reply(sess, protocol.TypeCommandResult, res)

	case protocol.TypePing:
		var id string
		if ping, err := msg.GetPingData(); err == nil {
			id = ping.ID
		}
		pong, err := protocol.NewPongMessage(id, msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			sess.Send(pong)
		}

	default:
		s.replyError(sess, fmt.Errorf("unsupported message type %q", msg.Type))
	}
}

// hello negotiates the frame schema and answers with welcome.
func (s *Server) hello(sess *Session, hello *protocol.HelloData) {
	m := sess.Machine
	schema, err := m.Negotiate(hello.Offered())
	if err != nil {
		s.replyError(sess, err)
		return
	}
	if s.opts.AutoStart && m.State() == detection.StateInitializing {
		m.Start()
	}

	msg, err := protocol.NewWelcomeMessage(sess.ID, schema, m.Status().FPS)
	if err != nil {
		s.replyError(sess, err)
		return
	}
	sess.Send(msg)
}

func (s *Server) reply(sess *Session, t protocol.MessageType, data interface{}) {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		s.log.Error("encode reply", "session", sess.ID, "type", t, "error", err)
		return
	}
	if err := sess.Send(msg); err != nil {
		s.log.Debug("reply not delivered", "session", sess.ID, "type", t, "error", err)
	}
}

func (s *Server) replyError(sess *Session, err error) {
	msg, merr := protocol.NewErrorMessage(sess.ID, err)
	if merr != nil {
		return
	}
	sess.Send(msg)
}
