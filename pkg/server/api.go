package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/drowsy/pkg/detection"
	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

// SessionDetail is the full view of one session.
type SessionDetail struct {
	SessionInfo
	Status     detection.Status   `json:"status"`
	Parameters fatigue.Parameters `json:"parameters"`
}

// RegisterAPIRoutes registers API routes for session management
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	sessions := api.Group("/sessions")

	// List sessions
	sessions.Get("/", func(c *fiber.Ctx) error {
		list := s.Sessions()
		infos := make([]SessionInfo, 0, len(list))
		for _, sess := range list {
			infos = append(infos, sess.Info())
		}
		return c.JSON(fiber.Map{
			"sessions": infos,
			"count":    len(infos),
		})
	})

	// Get server stats
	sessions.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.GetStats())
	})

	// Create a session
	sessions.Post("/", func(c *fiber.Ctx) error {
		var req struct {
			ID    string `json:"id"`
			Start bool   `json:"start"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return jsonError(c, fiber.StatusBadRequest, err)
			}
		}
		sess, err := s.CreateSession(req.ID)
		if err != nil {
			return jsonError(c, statusCode(err), err)
		}
		if req.Start {
			sess.Machine.Start()
		}
		return c.Status(fiber.StatusCreated).JSON(sess.Info())
	})

	sessions.Get("/:id", s.withSession(func(c *fiber.Ctx, sess *Session) error {
		return c.JSON(SessionDetail{
			SessionInfo: sess.Info(),
			Status:      sess.Machine.Status(),
			Parameters:  sess.Machine.DetectionParameters(),
		})
	}))

	sessions.Delete("/:id", func(c *fiber.Ctx) error {
		if err := s.CloseSession(c.Params("id")); err != nil {
			return jsonError(c, statusCode(err), err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Sensitivity analysis report
	sessions.Get("/:id/report", s.withSession(func(c *fiber.Ctx, sess *Session) error {
		report := sess.Machine.Report()
		if c.Query("format") == "text" {
			return c.SendString(report.String())
		}
		return c.JSON(report)
	}))

	// Feed one frame without a websocket
	sessions.Post("/:id/frames", s.withSession(func(c *fiber.Ctx, sess *Session) error {
		var frame protocol.FrameData
		if err := c.BodyParser(&frame); err != nil {
			return jsonError(c, fiber.StatusBadRequest, err)
		}
		return c.JSON(s.processFrame(sess, &frame))
	}))

	// Commands
	command := func(name string) fiber.Handler {
		return s.withSession(func(c *fiber.Ctx, sess *Session) error {
			return s.runCommand(c, sess, protocol.CommandData{Name: name})
		})
	}
	sessions.Post("/:id/start", command(protocol.CommandStart))
	sessions.Post("/:id/stop", command(protocol.CommandStop))
	sessions.Post("/:id/reset", command(protocol.CommandReset))
	sessions.Post("/:id/full-reset", command(protocol.CommandFullReset))
	sessions.Post("/:id/calibration/start", command(protocol.CommandCalibrationStart))
	sessions.Post("/:id/calibration/stop", command(protocol.CommandCalibrationStop))
	sessions.Post("/:id/acknowledge", command(protocol.CommandAcknowledge))
	sessions.Post("/:id/rest", command(protocol.CommandRest))

	sessions.Put("/:id/parameters", s.withSession(func(c *fiber.Ctx, sess *Session) error {
		cmd := protocol.CommandData{Name: protocol.CommandParameters}
		if err := c.BodyParser(&cmd); err != nil {
			return jsonError(c, fiber.StatusBadRequest, err)
		}
		cmd.Name = protocol.CommandParameters
		return s.runCommand(c, sess, cmd)
	}))

	sessions.Put("/:id/rate", s.withSession(func(c *fiber.Ctx, sess *Session) error {
		cmd := protocol.CommandData{Name: protocol.CommandRate}
		if err := c.BodyParser(&cmd); err != nil {
			return jsonError(c, fiber.StatusBadRequest, err)
		}
		cmd.Name = protocol.CommandRate
		return s.runCommand(c, sess, cmd)
	}))
}

func (s *Server) runCommand(c *fiber.Ctx, sess *Session, cmd protocol.CommandData) error {
	res, err := s.execute(sess, cmd)
	if err != nil {
		return c.Status(statusCode(err)).JSON(res)
	}
	return c.JSON(res)
}

// withSession resolves the :id parameter before calling fn.
func (s *Server) withSession(fn func(c *fiber.Ctx, sess *Session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := s.Session(c.Params("id"))
		if err != nil {
			return jsonError(c, statusCode(err), err)
		}
		return fn(c, sess)
	}
}

func jsonError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
