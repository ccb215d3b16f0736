package role

import "github.com/arturoeanton/go-english-tutor/internal/port"

// NewRegistry builds a registry holding one fresh instance of every role.
// Call it once per session so stateful roles do not leak between learners.
func NewRegistry(gen port.Generator) *port.RoleRegistry {
	return port.NewRoleRegistry(
		NewGrammarExpert(gen),
		NewVocabularyExpert(gen),
		NewConversationPartner(gen),
		NewExerciseGenerator(gen),
	)
}
