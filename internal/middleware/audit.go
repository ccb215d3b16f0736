package middleware

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/gofiber/fiber/v3"
)

// UserHeader carries the learner identity. Authentication happens upstream.
const UserHeader = "X-User-ID"

// AnonymousUser is used when no identity is supplied.
const AnonymousUser = "anonymous"

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error
}

// UserID returns the caller's learner id.
func UserID(c fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get(UserHeader)); id != "" {
		return id
	}
	return AnonymousUser
}

// AuditMiddleware records every request in the audit log.
func AuditMiddleware(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses the context after the handler returns, so copy what the goroutine needs.
		method := c.Method()
		path := strings.Clone(c.Path())
		ip := c.IP()
		userAgent := strings.Clone(c.Get("User-Agent"))
		userID := strings.Clone(UserID(c))

		err := c.Next()

		details := map[string]interface{}{
			"method":      method,
			"path":        path,
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		detailsJSON, _ := json.Marshal(details)

		go func() {
			if writeErr := writer.WriteAudit(
				userID,
				domain.AuditActionHTTPRequest,
				"api",
				path,
				string(detailsJSON),
				ip,
				userAgent,
			); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return err
	}
}
