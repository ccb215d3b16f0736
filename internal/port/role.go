package port

import (
	"context"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
)

// Role is a persona-specific response generator (Strategy Pattern).
type Role interface {
	// ID returns the stable identifier used by the router.
	ID() domain.RoleID

	// Name returns a human-readable name, e.g. "Vocabulary Expert".
	Name() string

	// Persona returns the static persona text that opens every prompt.
	Persona() string

	// Respond composes the role prompt and calls the generator.
	// Generation failures are returned wrapped in ErrGeneration.
	Respond(ctx context.Context, req RoleRequest) (*RoleAnswer, error)
}

// RoleRequest contains everything a role needs to answer.
type RoleRequest struct {
	Query    string                    `json:"query"`
	Evidence []domain.SearchHit        `json:"evidence"`
	History  []domain.ConversationTurn `json:"history"`
}

// RoleAnswer holds the output of a role.
type RoleAnswer struct {
	Role   domain.RoleID `json:"role"`
	Text   string        `json:"text"`
	Prompt string        `json:"-"`
}

// RoleRegistry holds one instance of every role for a session.
type RoleRegistry struct {
	roles map[domain.RoleID]Role
}

// NewRoleRegistry creates a registry with the given roles.
func NewRoleRegistry(roles ...Role) *RoleRegistry {
	m := make(map[domain.RoleID]Role, len(roles))
	for _, r := range roles {
		m[r.ID()] = r
	}
	return &RoleRegistry{roles: m}
}

// Get returns the role registered under id.
func (r *RoleRegistry) Get(id domain.RoleID) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

// Respond dispatches req to the role registered under id.
func (r *RoleRegistry) Respond(ctx context.Context, id domain.RoleID, req RoleRequest) (*RoleAnswer, error) {
	role, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return role.Respond(ctx, req)
}

// Available returns the registered role IDs in routing priority order.
func (r *RoleRegistry) Available() []domain.RoleID {
	ids := make([]domain.RoleID, 0, len(r.roles))
	for _, id := range domain.RoleIDs {
		if _, ok := r.roles[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
