package handler

import (
	"github.com/arturoeanton/go-english-tutor/internal/middleware"
	"github.com/arturoeanton/go-english-tutor/internal/service"
	"github.com/gofiber/fiber/v3"
)

// SessionHandler manages tutoring sessions.
type SessionHandler struct {
	sessions *service.SessionManager
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Register sets up session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	sessions := router.Group("/sessions")
	sessions.Post("/", h.Open)
	sessions.Get("/", h.List)
	sessions.Delete("/:id", h.Close)
	sessions.Get("/:id/history", h.History)
}

// Open starts a session for the calling learner.
func (h *SessionHandler) Open(c fiber.Ctx) error {
	session, err := h.sessions.Open(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// List returns the live sessions.
func (h *SessionHandler) List(c fiber.Ctx) error {
	sessions := h.sessions.List()
	return c.JSON(fiber.Map{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Close ends a session.
func (h *SessionHandler) Close(c fiber.Ctx) error {
	if err := h.sessions.Close(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// History returns the in-memory turns of a session.
func (h *SessionHandler) History(c fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	turns := session.History()
	return c.JSON(fiber.Map{
		"session_id": session.ID,
		"turns":      turns,
		"count":      len(turns),
	})
}
