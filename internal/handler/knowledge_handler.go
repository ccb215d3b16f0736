package handler

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/middleware"
	"github.com/arturoeanton/go-english-tutor/internal/service"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// MaxSearchResults caps the k accepted by the search endpoint.
const MaxSearchResults = 20

// KnowledgeHandler serves the knowledge index admin endpoints.
type KnowledgeHandler struct {
	knowledge *service.KnowledgeService
	tracker   *JobTracker
	audit     middleware.AuditWriter
}

// NewKnowledgeHandler creates a new knowledge handler.
func NewKnowledgeHandler(knowledge *service.KnowledgeService, tracker *JobTracker, audit middleware.AuditWriter) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge, tracker: tracker, audit: audit}
}

// Register sets up knowledge routes.
func (h *KnowledgeHandler) Register(router fiber.Router) {
	knowledge := router.Group("/knowledge")
	knowledge.Get("/stats", h.Stats)
	knowledge.Get("/search", h.Search)
	knowledge.Post("/rebuild", h.Rebuild)
}

// Stats returns per-kind document counts.
func (h *KnowledgeHandler) Stats(c fiber.Ctx) error {
	stats, err := h.knowledge.Stats(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// Search runs a reranked query, optionally restricted to one source kind.
func (h *KnowledgeHandler) Search(c fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return badRequest(c, "q is required")
	}
	k, err := strconv.Atoi(c.Query("k", "5"))
	if err != nil || k <= 0 {
		return badRequest(c, "k must be a positive integer")
	}
	if k > MaxSearchResults {
		k = MaxSearchResults
	}

	var kind domain.SourceKind
	if raw := c.Query("kind"); raw != "" {
		parsed, ok := domain.ParseSourceKind(raw)
		if !ok {
			return badRequest(c, "unknown kind: "+raw)
		}
		kind = parsed
	}

	result := h.knowledge.Search(c.Context(), query, k, kind)
	if !result.Success && result.Err != nil {
		slog.Warn("knowledge search failed", "query", query, "error", result.Err)
	}
	return c.JSON(fiber.Map{
		"success": result.Success,
		"hits":    result.Hits,
		"count":   len(result.Hits),
	})
}

// Rebuild reloads the corpus in the background and returns the job id.
func (h *KnowledgeHandler) Rebuild(c fiber.Ctx) error {
	jobID := uuid.New().String()
	h.tracker.CreateJob(jobID, "rebuild")

	if err := h.audit.WriteAudit(middleware.UserID(c), domain.AuditActionRebuild, "knowledge", jobID, "{}", c.IP(), c.Get("User-Agent")); err != nil {
		slog.Error("failed to write audit log", "error", err)
	}

	// Run in background, the HTTP request does not wait for the rebuild.
	go h.runRebuild(jobID)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"message": "rebuild started",
	})
}

func (h *KnowledgeHandler) runRebuild(jobID string) {
	stats, err := h.knowledge.Rebuild(context.Background(), func(stage string) {
		h.tracker.Advance(jobID, stage)
	})
	if err != nil {
		slog.Error("rebuild job failed", "job_id", jobID, "error", err)
	}
	h.tracker.Complete(jobID, stats, err)
}
