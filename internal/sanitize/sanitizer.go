// Package sanitize screens learner input before it reaches any prompt.
package sanitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/arturoeanton/go-english-tutor/internal/textutil"
)

// MaxInputLength is the longest input, in characters, passed on to a role.
const MaxInputLength = 1000

// Patterns are matched against the lowercased input.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ignore\s+previous`),
	regexp.MustCompile(`ignore\s+all`),
	regexp.MustCompile(`system:`),
	regexp.MustCompile(`assistant:`),
	regexp.MustCompile(`</s>`),
	regexp.MustCompile(`<\|im_start\|>`),
	regexp.MustCompile(`<\|im_end\|>`),
	regexp.MustCompile(`###\s+instruction`),
	regexp.MustCompile(`you\s+are\s+now`),
	regexp.MustCompile(`pretend\s+you\s+are`),
	regexp.MustCompile(`act\s+as\s+if`),
	regexp.MustCompile(`override\s+your`),
	regexp.MustCompile(`disregard\s+your`),
}

var scriptMarkers = []string{"<script>", "</script>", "<iframe>", "javascript:"}

// Result is the outcome of sanitizing one input.
type Result struct {
	Text      string
	Safe      bool
	Warning   string
	Truncated bool

	reason error
}

// Err returns an *InputError when the input was rejected, nil otherwise.
func (r Result) Err() error {
	if r.Safe {
		return nil
	}
	return &InputError{Kind: r.reason, Warning: r.Warning}
}

// InputError is a rejected input. Kind is port.ErrEmptyInput or port.ErrUnsafeInput.
type InputError struct {
	Kind    error
	Warning string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Warning)
}

func (e *InputError) Unwrap() error { return e.Kind }

// Warning extracts the learner-facing warning from err, if it is an *InputError.
func Warning(err error) (string, bool) {
	var ie *InputError
	if errors.As(err, &ie) {
		return ie.Warning, true
	}
	return "", false
}

// Sanitize rejects empty input, truncates long input, blocks prompt-injection and
// script-injection patterns, and collapses whitespace.
func Sanitize(input string) Result {
	if strings.TrimSpace(input) == "" {
		return blocked(port.ErrEmptyInput, "Empty input")
	}

	res := Result{Safe: true}
	if n := utf8.RuneCountInString(input); n > MaxInputLength {
		input = string([]rune(input)[:MaxInputLength])
		res.Truncated = true
		res.Warning = fmt.Sprintf("Input truncated from %d to %d chars", n, MaxInputLength)
	}

	lower := strings.ToLower(input)
	for _, p := range injectionPatterns {
		if p.MatchString(lower) {
			return blocked(port.ErrUnsafeInput, "Potentially unsafe input detected. Please rephrase your question.")
		}
	}

	cleaned := textutil.CollapseSpaces(input)
	lowerCleaned := strings.ToLower(cleaned)
	for _, m := range scriptMarkers {
		if strings.Contains(lowerCleaned, m) {
			return blocked(port.ErrUnsafeInput, "Script injection detected")
		}
	}

	res.Text = cleaned
	return res
}

// TruncationWarning returns the warning as an error wrapping port.ErrInputTooLong.
func (r Result) TruncationWarning() error {
	if !r.Truncated {
		return nil
	}
	return fmt.Errorf("%w: %s", port.ErrInputTooLong, r.Warning)
}

func blocked(reason error, warning string) Result {
	return Result{Safe: false, Warning: warning, reason: reason}
}
