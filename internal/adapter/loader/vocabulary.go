package loader

import (
	"fmt"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
)

// MaxDefinitions is how many definitions of a word are indexed.
const MaxDefinitions = 3

// parseVocabulary accepts a list of entries, an object with a "words" list, or
// a single entry object.
func parseVocabulary(path, stem string, data []byte) ([]domain.Document, error) {
	v, err := decode(data)
	if err != nil {
		return nil, err
	}

	var entries []record
	switch x := v.(type) {
	case []any:
		entries = records(x)
	case map[string]any:
		if words, ok := x["words"].([]any); ok {
			entries = records(words)
		} else {
			entries = []record{record(x)}
		}
	default:
		return nil, fmt.Errorf("unexpected vocabulary shape %T", v)
	}

	docs := make([]domain.Document, 0, len(entries))
	for idx, e := range entries {
		word := e.str("word", "headword")
		if word == "" {
			word = "unknown"
		}
		level := e.str("level")

		lines := []string{"Word: " + word}
		if pos := e.str("class", "pos"); pos != "" {
			lines = append(lines, "Part of Speech: "+pos)
		}
		if level != "" {
			lines = append(lines, "Level: "+level)
		}
		for i, d := range e.list("definitions") {
			if i == MaxDefinitions {
				break
			}
			lines = append(lines, "Definition: "+definition(d))
		}
		if tr := e.str("translation", "spanish"); tr != "" {
			lines = append(lines, "Translation: "+tr)
		}

		if level == "" {
			level = "unknown"
		}
		docs = append(docs, domain.Document{
			ID:         fmt.Sprintf("vocab_%s_%s_%d", stem, strings.ToLower(word), idx),
			Text:       strings.Join(lines, "\n"),
			SourceKind: domain.SourceVocabulary,
			FileOrigin: path,
			Metadata: map[string]string{
				"source": string(domain.SourceVocabulary),
				"word":   word,
				"level":  level,
				"file":   path,
			},
		})
	}
	return docs, nil
}

func definition(d any) string {
	if m, ok := d.(map[string]any); ok {
		return record(m).str("definition")
	}
	return render(d)
}
