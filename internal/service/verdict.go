package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
)

// Labels the critic is asked to emit.
const (
	labelConfidence       = "Confidence Score:"
	labelNeedsImprovement = "Needs Improvement:"
	labelCritique         = "Critique:"
	labelImproved         = "Improved Response:"
)

// ParseVerdict extracts a verdict from the critic's raw output. Anything missing
// or malformed falls back to the default verdict's values.
func ParseVerdict(raw, original string) domain.ReflectionVerdict {
	v := domain.DefaultVerdict()
	v.ConfidenceScore = parseConfidence(raw)
	v.NeedsImprovement = parseNeedsImprovement(raw)

	if i := strings.Index(raw, labelCritique); i >= 0 {
		rest := raw[i+len(labelCritique):]
		if j := strings.Index(rest, labelImproved); j >= 0 {
			rest = rest[:j]
		}
		v.Critique = strings.TrimSpace(rest)
	}

	if v.NeedsImprovement {
		if i := strings.Index(raw, labelImproved); i >= 0 {
			improved := strings.TrimSpace(raw[i+len(labelImproved):])
			if improved == "" {
				improved = original
			}
			v.ImprovedResponse = improved
		}
	}
	return v
}

// parseConfidence reads the number after the label on the first line carrying it.
func parseConfidence(raw string) float64 {
	for _, line := range strings.Split(raw, "\n") {
		i := strings.Index(line, labelConfidence)
		if i < 0 {
			continue
		}
		field := strings.Fields(line[i+len(labelConfidence):])
		if len(field) == 0 {
			return domain.DefaultConfidence
		}
		score, err := strconv.ParseFloat(strings.TrimRight(field[0], ".,;"), 64)
		if err != nil || math.IsNaN(score) || score < 0 || score > 1 {
			return domain.DefaultConfidence
		}
		return score
	}
	return domain.DefaultConfidence
}

// parseNeedsImprovement looks for "yes" right after any flag label, ignoring
// case and horizontal whitespace. Only the prefix is checked, so "Yesterday" counts.
func parseNeedsImprovement(raw string) bool {
	rest := raw
	for {
		i := strings.Index(rest, labelNeedsImprovement)
		if i < 0 {
			return false
		}
		rest = rest[i+len(labelNeedsImprovement):]
		value := strings.TrimLeftFunc(rest, func(r rune) bool { return r == ' ' || r == '\t' })
		if len(value) >= 3 && strings.EqualFold(value[:3], "yes") {
			return true
		}
	}
}
