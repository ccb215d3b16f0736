package handler

import (
	"log/slog"

	"github.com/arturoeanton/go-english-tutor/internal/sanitize"
	"github.com/arturoeanton/go-english-tutor/internal/service"
	"github.com/gofiber/fiber/v3"
)

// ChatHandler answers learner messages.
type ChatHandler struct {
	tutor *service.TutorService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(tutor *service.TutorService) *ChatHandler {
	return &ChatHandler{tutor: tutor}
}

// Register sets up chat routes.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Post("/sessions/:id/chat", h.Chat)
	router.Post("/route", h.Route)
}

type chatRequest struct {
	Message string `json:"message"`
	Reflect *bool  `json:"reflect,omitempty"`
}

// Chat runs one turn of the tutoring pipeline.
func (h *ChatHandler) Chat(c fiber.Ctx) error {
	var body chatRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request")
	}

	sessionID := c.Params("id")
	reply, err := h.tutor.Ask(c.Context(), sessionID, body.Message, service.AskOptions{Reflect: body.Reflect})
	if err != nil {
		return respondError(c, err)
	}

	slog.Info("chat answered",
		"session_id", sessionID,
		"role", reply.RoutedTo,
		"evidence", len(reply.Evidence),
		"rewritten", reply.Rewritten,
	)
	return c.JSON(reply)
}

// Route reports which role would answer a message, without generating.
func (h *ChatHandler) Route(c fiber.Ctx) error {
	var body chatRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request")
	}

	clean := sanitize.Sanitize(body.Message)
	if err := clean.Err(); err != nil {
		return respondError(c, err)
	}
	return c.JSON(service.Route(clean.Text))
}
