// Package textutil holds the small string helpers shared by prompt builders and the router.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Truncate cuts s to at most maxLen runes and marks the cut with "...".
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

// Tokenize lowercases s and splits it on anything that is not a letter, digit or combining mark.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}

// ContainsSequence reports whether needle occurs as a contiguous run inside tokens.
func ContainsSequence(tokens, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(tokens); i++ {
		for j, n := range needle {
			if tokens[i+j] != n {
				continue outer
			}
		}
		return true
	}
	return false
}

// CollapseSpaces trims s and replaces every whitespace run with a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
