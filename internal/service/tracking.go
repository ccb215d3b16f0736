package service

import (
	"strings"
	"unicode"
)

// Topics recognized by GrammarTopic, checked in order.
var grammarTopics = []string{
	"present perfect",
	"past simple",
	"conditionals",
	"passive voice",
	"future tense",
	"articles",
}

// VocabularyCandidates returns up to three words from query that look like
// vocabulary: longer than three characters and made only of letters.
func VocabularyCandidates(query string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(w)) <= 3 || !isAlpha(w) {
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}
	return words
}

// GrammarTopic returns the first known topic mentioned in query, or "".
func GrammarTopic(query string) string {
	lower := strings.ToLower(query)
	for _, topic := range grammarTopics {
		if strings.Contains(lower, topic) {
			return topic
		}
	}
	return ""
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
