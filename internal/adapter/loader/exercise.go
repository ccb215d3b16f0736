package loader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
)

// parseExercises accepts a list of exercises or an object grouping them by
// key. Grouped values may be lists or single exercises; keys are visited in
// sorted order.
func parseExercises(path, stem string, data []byte) ([]domain.Document, error) {
	v, err := decode(data)
	if err != nil {
		return nil, err
	}

	var items []record
	switch x := v.(type) {
	case []any:
		items = records(x)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch group := x[k].(type) {
			case []any:
				items = append(items, records(group)...)
			case map[string]any:
				items = append(items, record(group))
			}
		}
	default:
		return nil, fmt.Errorf("unexpected exercise shape %T", v)
	}

	docs := []domain.Document{}
	for idx, ex := range items {
		lines := exerciseLines(ex)
		if len(lines) == 0 {
			continue
		}

		topic := ex.str("topic", "category")
		if topic == "" {
			topic = "general"
		}
		kind := ex.str("type")
		if kind == "" {
			kind = "multiple_choice"
		}
		meta := map[string]string{
			"source": string(domain.SourceExercise),
			"topic":  topic,
			"type":   kind,
			"file":   path,
		}
		if d := ex.str("difficulty"); d != "" {
			meta["difficulty"] = d
		}

		docs = append(docs, domain.Document{
			ID:         fmt.Sprintf("exercise_%s_%d", stem, idx),
			Text:       strings.Join(lines, "\n"),
			SourceKind: domain.SourceExercise,
			FileOrigin: path,
			Metadata:   meta,
		})
	}
	return docs, nil
}

func exerciseLines(ex record) []string {
	var lines []string
	question := ex.str("question")
	answer := ex.str("correct_answer", "correctAnswer")

	switch {
	case question != "" && answer != "":
		lines = append(lines, "Question: "+question, "Answer: "+answer)
		if wrong := ex.list("incorrect_answers", "incorrectAnswers"); wrong != nil {
			options := []string{answer}
			for _, w := range wrong {
				options = append(options, render(w))
			}
			lines = append(lines, "Options: "+strings.Join(options, ", "))
		}
		if c := ex.str("category"); c != "" {
			lines = append(lines, "Category: "+c)
		}
	case ex.str("sentence") != "":
		lines = append(lines, "Sentence: "+ex.str("sentence"))
	}

	if t := ex.str("topic"); t != "" {
		lines = append(lines, "Topic: "+t)
	}
	if e := ex.str("explanation"); e != "" {
		lines = append(lines, "Explanation: "+e)
	}
	return lines
}
