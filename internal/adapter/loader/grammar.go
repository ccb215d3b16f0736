package loader

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
)

const (
	// ChunkSize is the maximum length of a free-text window.
	ChunkSize = 500
	// MinChunkSize drops windows too short to be useful evidence.
	MinChunkSize = 50
)

// parseGrammarJSON indexes correction pairs. Items without both an incorrect
// and a correct sentence are skipped.
func parseGrammarJSON(path, stem string, data []byte) ([]domain.Document, error) {
	v, err := decode(data)
	if err != nil {
		return nil, err
	}

	var items []record
	switch x := v.(type) {
	case []any:
		items = records(x)
	case map[string]any:
		items = []record{record(x)}
	default:
		return nil, fmt.Errorf("unexpected grammar shape %T", v)
	}

	docs := []domain.Document{}
	for idx, item := range items {
		incorrect, correct := item.str("incorrect"), item.str("correct")
		if incorrect == "" || correct == "" {
			continue
		}
		lines := []string{"Incorrect: " + incorrect, "Correct: " + correct}
		if task := item.str("task"); task != "" {
			lines = append(lines, "Task: "+task)
		}
		if expl := item.str("explanation"); expl != "" {
			lines = append(lines, "Explanation: "+expl)
		}
		docs = append(docs, domain.Document{
			ID:         fmt.Sprintf("grammar_%s_%d", stem, idx),
			Text:       strings.Join(lines, "\n"),
			SourceKind: domain.SourceGrammar,
			FileOrigin: path,
			Metadata: map[string]string{
				"source": string(domain.SourceGrammar),
				"type":   "correction",
				"file":   path,
			},
		})
	}
	return docs, nil
}

// parseGrammarText splits prose into word windows.
func parseGrammarText(path, stem string, data []byte) ([]domain.Document, error) {
	docs := []domain.Document{}
	for idx, chunk := range Chunk(string(data), ChunkSize) {
		if utf8.RuneCountInString(chunk) < MinChunkSize {
			continue
		}
		docs = append(docs, domain.Document{
			ID:         fmt.Sprintf("grammar_%s_c%d", stem, idx),
			Text:       chunk,
			SourceKind: domain.SourceGrammar,
			FileOrigin: path,
			Metadata: map[string]string{
				"source": string(domain.SourceGrammar),
				"type":   "text",
				"chunk":  strconv.Itoa(idx),
				"file":   path,
			},
		})
	}
	return docs, nil
}

// Chunk packs whitespace-separated words into windows of at most size runes.
// A single word longer than size is split across windows on rune boundaries.
func Chunk(text string, size int) []string {
	var (
		chunks  []string
		current strings.Builder
		n       int
	)
	flush := func() {
		if n > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			n = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > size {
			flush()
			chunks = append(chunks, string(runes[:size]))
			runes = runes[size:]
		}
		if n > 0 && n+1+len(runes) > size {
			flush()
		}
		if n > 0 {
			current.WriteByte(' ')
			n++
		}
		current.WriteString(string(runes))
		n += len(runes)
	}
	flush()
	return chunks
}
