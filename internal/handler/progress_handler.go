package handler

import (
	"strconv"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/service"
	"github.com/gofiber/fiber/v3"
)

// ProgressHandler exposes learner progress.
type ProgressHandler struct {
	progress *service.ProgressService
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(progress *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// Register sets up progress routes.
func (h *ProgressHandler) Register(router fiber.Router) {
	progress := router.Group("/progress/:userId")
	progress.Get("/", h.Get)
	progress.Get("/recommendations", h.Recommendations)
	progress.Get("/sessions/:sessionId/messages", h.Messages)
	progress.Post("/exercises", h.RecordExercise)
	progress.Post("/mistakes", h.RecordMistake)
}

// Get returns the full record plus its summary.
func (h *ProgressHandler) Get(c fiber.Ctx) error {
	userID := c.Params("userId")
	record, err := h.progress.Progress(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	summary, err := h.progress.Summary(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"progress": record,
		"summary":  summary,
	})
}

// Recommendations suggests the next study items.
func (h *ProgressHandler) Recommendations(c fiber.Ctx) error {
	recs, err := h.progress.Recommendations(c.Context(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// Messages returns the persisted log of one session.
func (h *ProgressHandler) Messages(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	turns, err := h.progress.History(c.Context(), c.Params("userId"), c.Params("sessionId"), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"turns": turns,
		"count": len(turns),
	})
}

// RecordExercise stores a scored attempt.
func (h *ProgressHandler) RecordExercise(c fiber.Ctx) error {
	var body domain.ExerciseResult
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := h.progress.RecordExercise(c.Context(), c.Params("userId"), body); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
}

// RecordMistake stores a mistake example.
func (h *ProgressHandler) RecordMistake(c fiber.Ctx) error {
	var body domain.Mistake
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := h.progress.RecordMistake(c.Context(), c.Params("userId"), body); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
}
