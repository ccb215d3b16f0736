package domain

import "time"

// SourceKind classifies an ingested document.
type SourceKind string

const (
	SourceVocabulary SourceKind = "vocabulary"
	SourceGrammar    SourceKind = "grammar"
	SourceExercise   SourceKind = "exercise"
)

// SourceKinds lists every kind in corpus order.
var SourceKinds = []SourceKind{SourceVocabulary, SourceGrammar, SourceExercise}

// Valid reports whether k is one of the known kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceVocabulary, SourceGrammar, SourceExercise:
		return true
	}
	return false
}

// ParseSourceKind accepts the canonical names plus the directory aliases used by corpora.
func ParseSourceKind(s string) (SourceKind, bool) {
	switch s {
	case "vocabulary", "vocab":
		return SourceVocabulary, true
	case "grammar":
		return SourceGrammar, true
	case "exercise", "exercises":
		return SourceExercise, true
	}
	return "", false
}

// Document is an immutable unit of knowledge in the index.
type Document struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	SourceKind SourceKind        `json:"source_kind"`
	FileOrigin string            `json:"file_origin"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Neighbor is a raw index result. Lower distance is closer.
type Neighbor struct {
	Document Document `json:"document"`
	Distance float64  `json:"distance"`
}

// SearchHit is a reranked retrieval result, valid for one query.
type SearchHit struct {
	Document          Document `json:"document"`
	SimilarityScore   float64  `json:"similarity_score"`
	KeywordMatchCount int      `json:"keyword_match_count"`
	CombinedScore     float64  `json:"combined_score"`
}

// IndexStats summarizes the index contents per source kind.
type IndexStats struct {
	Total    int                `json:"total"`
	ByKind   map[SourceKind]int `json:"by_kind"`
	Computed time.Time          `json:"computed_at"`
}

// NewIndexStats counts documents per kind.
func NewIndexStats(docs []Document) IndexStats {
	stats := IndexStats{ByKind: make(map[SourceKind]int, len(SourceKinds)), Computed: time.Now().UTC()}
	for _, k := range SourceKinds {
		stats.ByKind[k] = 0
	}
	for _, d := range docs {
		stats.ByKind[d.SourceKind]++
		stats.Total++
	}
	return stats
}
