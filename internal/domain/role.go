package domain

// RoleID names one of the fixed response-generating roles.
type RoleID string

const (
	RoleGrammar      RoleID = "grammar_expert"
	RoleVocabulary   RoleID = "vocabulary_expert"
	RoleConversation RoleID = "conversation_partner"
	RoleExercise     RoleID = "exercise_generator"
)

// RoleIDs lists every role in routing priority order.
var RoleIDs = []RoleID{RoleExercise, RoleVocabulary, RoleGrammar, RoleConversation}

// RoutingDecision is the router's choice for a query. It is never persisted.
type RoutingDecision struct {
	Role            RoleID   `json:"role"`
	MatchedKeywords []string `json:"matched_keywords"`
	Fallback        bool     `json:"fallback"`
}

// Default values for a verdict that could not be parsed.
const (
	DefaultConfidence = 0.8
)

// ReflectionVerdict is the critic's judgement of an answer.
// ImprovedResponse is empty when no rewrite was offered.
type ReflectionVerdict struct {
	NeedsImprovement bool    `json:"needs_improvement"`
	ConfidenceScore  float64 `json:"confidence_score"`
	Critique         string  `json:"critique"`
	ImprovedResponse string  `json:"improved_response,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// DefaultVerdict is returned when reflection fails or yields nothing parseable.
func DefaultVerdict() ReflectionVerdict {
	return ReflectionVerdict{ConfidenceScore: DefaultConfidence}
}

// Apply returns the answer the learner should see.
func (v ReflectionVerdict) Apply(original string) string {
	if v.NeedsImprovement && v.ImprovedResponse != "" {
		return v.ImprovedResponse
	}
	return original
}
