package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "câu...", Truncate("câu điều kiện", 3))
	assert.Equal(t, "", Truncate("anything", 0))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"what", "does", "resilient", "mean"}, Tokenize("What does resilient mean?"))
	assert.Equal(t, []string{"bài", "tập", "về", "thì"}, Tokenize("Bài tập về thì!"))
	assert.Empty(t, Tokenize("  ?! "))
}

func TestContainsSequence(t *testing.T) {
	tokens := []string{"what", "does", "it", "mean"}
	assert.True(t, ContainsSequence(tokens, []string{"does", "it"}))
	assert.True(t, ContainsSequence(tokens, []string{"mean"}))
	assert.False(t, ContainsSequence(tokens, []string{"what", "it"}))
	assert.False(t, ContainsSequence(tokens, nil))
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "a b c", CollapseSpaces("  a \n\t b   c "))
}
