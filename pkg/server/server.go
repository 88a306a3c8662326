// Package server hosts one detection machine per session behind an HTTP
// and WebSocket surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/teslashibe/drowsy/internal/log"
	"github.com/teslashibe/drowsy/pkg/detection"
	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/hub"
)

var (
	// ErrSessionExists is returned when creating a session whose ID is taken.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
)

// Options configures a Server.
type Options struct {
	// Detection is the machine configuration for new sessions.
	Detection detection.Config

	// Store persists calibration completion. Nil keeps it in memory.
	Store fatigue.CalibrationStore

	// AutoStart starts a session's machine when its extractor says hello.
	AutoStart bool

	Logger *slog.Logger
	Debug  bool
}

// Server manages detection sessions and the observer hub.
type Server struct {
	opts   Options
	log    *slog.Logger
	events *hub.Hub

	mu       sync.RWMutex
	sessions map[string]*Session

	// Stats
	messagesReceived atomic.Uint64
	framesReceived   atomic.Uint64
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Store == nil {
		opts.Store = fatigue.NewMemoryStore()
	}
	return &Server{
		opts:     opts,
		log:      log.Or(opts.Logger, "server"),
		events:   hub.New("events"),
		sessions: make(map[string]*Session),
	}
}

// Run drives the observer hub until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.events.Run(ctx)
}

// Hub returns the observer hub.
func (s *Server) Hub() *hub.Hub {
	return s.events
}

// NewApp builds a fiber app with middleware, health, metrics, WebSocket
// and API routes.
func (s *Server) NewApp(name, version string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if s.opts.Debug {
		app.Use(logger.New())
	}

	// Health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"version":  version,
			"sessions": s.SessionCount(),
		})
	})

	// Metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
		return c.SendString(s.GetStats().exposition())
	})

	s.RegisterRoutes(app)
	s.RegisterAPIRoutes(app.Group("/api"))
	return app
}

// CreateSession registers a new session. An empty id gets a generated one.
func (s *Server) CreateSession(id string) (*Session, error) {
	if id == "" {
		id = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	sess := s.newSession(id)
	s.sessions[id] = sess
	s.log.Info("session created", "session", id, "sessions", len(s.sessions))
	return sess, nil
}

// sessionFor returns the session with id, creating it when missing.
func (s *Server) sessionFor(id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := s.newSession(id)
	s.sessions[id] = sess
	s.log.Info("session created", "session", id, "sessions", len(s.sessions))
	return sess
}

func (s *Server) newSession(id string) *Session {
	sess := &Session{ID: id, Created: time.Now()}
	l := s.log.With("session", id)
	sess.Machine = detection.NewMachine(s.opts.Detection,
		detection.WithNotifier(newNotifier(sess, s.events, l)),
		detection.WithStore(s.opts.Store, id),
		detection.WithLogger(l))
	return sess
}

// Session returns a session by ID
func (s *Server) Session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Sessions returns all sessions, oldest first.
func (s *Server) Sessions() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// SessionCount returns the number of sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CloseSession stops a session's machine and forgets it.
func (s *Server) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Machine.Stop()
	s.log.Info("session closed", "session", id, "sessions", count)
	return nil
}

// Shutdown stops every session's machine.
func (s *Server) Shutdown() {
	for _, sess := range s.Sessions() {
		sess.Machine.Stop()
	}
}
