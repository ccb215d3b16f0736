package service

import (
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/textutil"
)

// FallbackRole handles queries no rule matches.
const FallbackRole = domain.RoleGrammar

type routingRule struct {
	role     domain.RoleID
	keywords [][]string // tokenized keywords, in declaration order
}

// routingRules are evaluated in order; the first rule with a matching keyword wins.
var routingRules = []routingRule{
	newRule(domain.RoleExercise,
		"bài tập", "exercise", "exercises", "practice", "quiz", "quizzes", "test", "tests", "generate", "tạo", "làm"),
	newRule(domain.RoleVocabulary,
		"nghĩa", "mean", "means", "meaning", "meanings", "what is", "what does", "từ", "word", "words", "vocabulary", "synonym", "synonyms"),
	newRule(domain.RoleGrammar,
		"thì", "tense", "tenses", "grammar", "conditional", "conditionals", "passive", "ngữ pháp", "câu điều kiện", "giải thích", "explain", "explanation"),
	newRule(domain.RoleConversation,
		"chat", "talk", "conversation", "trò chuyện", "nói chuyện"),
}

func newRule(role domain.RoleID, keywords ...string) routingRule {
	r := routingRule{role: role, keywords: make([][]string, len(keywords))}
	for i, kw := range keywords {
		r.keywords[i] = textutil.Tokenize(kw)
	}
	return r
}

// Route picks the role for query. Keywords match whole tokens; multi-word
// keywords match a contiguous token run.
func Route(query string) domain.RoutingDecision {
	tokens := textutil.Tokenize(query)
	for _, rule := range routingRules {
		var matched []string
		for _, kw := range rule.keywords {
			if textutil.ContainsSequence(tokens, kw) {
				matched = append(matched, strings.Join(kw, " "))
			}
		}
		if len(matched) > 0 {
			return domain.RoutingDecision{Role: rule.role, MatchedKeywords: matched}
		}
	}
	return domain.RoutingDecision{Role: FallbackRole, MatchedKeywords: []string{}, Fallback: true}
}
