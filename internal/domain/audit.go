package domain

import "time"

// AuditLog records every significant action against the tutor.
type AuditLog struct {
	ID         int64     `json:"id"          db:"id"`
	UserID     string    `json:"user_id"     db:"user_id"`
	Action     string    `json:"action"      db:"action"`
	Resource   string    `json:"resource"    db:"resource"`
	ResourceID string    `json:"resource_id" db:"resource_id"`
	Details    string    `json:"details"     db:"details"` // JSON blob
	IP         string    `json:"ip"          db:"ip"`
	UserAgent  string    `json:"user_agent"  db:"user_agent"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// Audit action constants.
const (
	AuditActionHTTPRequest  = "http_request"
	AuditActionSessionOpen  = "session_open"
	AuditActionSessionClose = "session_close"
	AuditActionChat         = "chat"
	AuditActionRebuild      = "index_rebuild"
	AuditActionMCPCall      = "mcp_call"
)
