package domain

import (
	"sort"
	"time"
)

// Progress tuning. Mastery grows by a fixed step per repeated exposure.
const (
	InitialGrammarMastery = 0.6
	MasteryIncrement      = 0.1
	MaxMastery            = 1.0

	ExerciseHistoryLimit = 10
	MistakeHistoryLimit  = 5

	WeakTopicThreshold    = 0.6
	GrammarReviewBelow    = 0.7
	StrongTopicFrom       = 0.8
	VocabularyReviewAfter = 7 * 24 * time.Hour
	MaxVocabularyReviews  = 5
)

// VocabularyItem is a word the learner has asked about.
type VocabularyItem struct {
	Word          string    `json:"word"`
	FirstSeen     time.Time `json:"first_seen"`
	LastReviewed  time.Time `json:"last_reviewed"`
	TimesReviewed int       `json:"times_reviewed"`
}

// GrammarTopic tracks mastery of one grammar topic.
type GrammarTopic struct {
	Topic        string    `json:"topic"`
	Mastery      float64   `json:"mastery_level"`
	TimesStudied int       `json:"times_studied"`
	LastStudied  time.Time `json:"last_studied"`
}

// ExerciseResult is a single scored exercise attempt.
type ExerciseResult struct {
	ExerciseID  string    `json:"exercise_id"`
	Topic       string    `json:"topic"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completed_at"`
}

// Mistake is an error the learner made, kept as an example for review.
type Mistake struct {
	Type       string    `json:"type"`
	Example    string    `json:"example"`
	Correction string    `json:"correction"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Progress is the full learning record for one user.
type Progress struct {
	UserID             string                    `json:"user_id"`
	TotalQueries       int                       `json:"total_queries"`
	TotalSessions      int                       `json:"total_sessions"`
	ExercisesCompleted int                       `json:"exercises_completed"`
	CreatedAt          time.Time                 `json:"created_at"`
	LastActive         time.Time                 `json:"last_active"`
	Vocabulary         map[string]VocabularyItem `json:"vocabulary"`
	Grammar            map[string]GrammarTopic   `json:"grammar_topics"`
	ExerciseScores     map[string][]float64      `json:"exercise_scores"`
	Mistakes           map[string][]Mistake      `json:"mistakes"`
}

// NewProgress returns an empty record for userID.
func NewProgress(userID string) *Progress {
	now := time.Now().UTC()
	return &Progress{
		UserID:         userID,
		CreatedAt:      now,
		LastActive:     now,
		Vocabulary:     make(map[string]VocabularyItem),
		Grammar:        make(map[string]GrammarTopic),
		ExerciseScores: make(map[string][]float64),
		Mistakes:       make(map[string][]Mistake),
	}
}

// NextMastery applies one repeated exposure to a topic's mastery.
func NextMastery(current float64) float64 {
	next := current + MasteryIncrement
	if next > MaxMastery {
		return MaxMastery
	}
	return next
}

// AppendBounded appends v and keeps only the last limit values.
func AppendBounded[T any](values []T, v T, limit int) []T {
	values = append(values, v)
	if len(values) > limit {
		values = append([]T(nil), values[len(values)-limit:]...)
	}
	return values
}

// Summary is the condensed view of a user's progress.
type Summary struct {
	UserID             string   `json:"user_id"`
	TotalQueries       int      `json:"total_queries"`
	TotalSessions      int      `json:"total_sessions"`
	VocabularyLearned  int      `json:"vocabulary_learned"`
	GrammarTopics      int      `json:"grammar_topics_studied"`
	ExercisesCompleted int      `json:"exercises_completed"`
	AverageMastery     float64  `json:"average_grammar_mastery"`
	StrongTopics       []string `json:"strong_topics"`
	WeakTopics         []string `json:"weak_topics"`
}

// Summary condenses the record.
func (p *Progress) Summary() Summary {
	s := Summary{
		UserID:             p.UserID,
		TotalQueries:       p.TotalQueries,
		TotalSessions:      p.TotalSessions,
		VocabularyLearned:  len(p.Vocabulary),
		GrammarTopics:      len(p.Grammar),
		ExercisesCompleted: p.ExercisesCompleted,
		StrongTopics:       []string{},
		WeakTopics:         p.WeakTopics(WeakTopicThreshold),
	}
	if len(p.Grammar) > 0 {
		var total float64
		for _, g := range p.Grammar {
			total += g.Mastery
			if g.Mastery >= StrongTopicFrom {
				s.StrongTopics = append(s.StrongTopics, g.Topic)
			}
		}
		s.AverageMastery = total / float64(len(p.Grammar))
	}
	sort.Strings(s.StrongTopics)
	return s
}

// WeakTopics returns exercise topics whose average score is below threshold, sorted.
func (p *Progress) WeakTopics(threshold float64) []string {
	weak := []string{}
	for topic, scores := range p.ExerciseScores {
		if len(scores) == 0 {
			continue
		}
		var total float64
		for _, s := range scores {
			total += s
		}
		if total/float64(len(scores)) < threshold {
			weak = append(weak, topic)
		}
	}
	sort.Strings(weak)
	return weak
}

// Recommendation kinds.
const (
	RecommendVocabularyReview = "vocabulary_review"
	RecommendGrammarPractice  = "grammar_practice"
	RecommendExercisePractice = "exercise_practice"
)

// Recommendation is a suggested next study item.
type Recommendation struct {
	Type   string `json:"type"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// Recommendations suggests stale words, low-mastery grammar and weak exercise topics.
func (p *Progress) Recommendations(now time.Time) []Recommendation {
	recs := []Recommendation{}

	stale := make([]VocabularyItem, 0)
	for _, v := range p.Vocabulary {
		if now.Sub(v.LastReviewed) >= VocabularyReviewAfter {
			stale = append(stale, v)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if stale[i].LastReviewed.Equal(stale[j].LastReviewed) {
			return stale[i].Word < stale[j].Word
		}
		return stale[i].LastReviewed.Before(stale[j].LastReviewed)
	})
	if len(stale) > MaxVocabularyReviews {
		stale = stale[:MaxVocabularyReviews]
	}
	for _, v := range stale {
		recs = append(recs, Recommendation{
			Type:   RecommendVocabularyReview,
			Item:   v.Word,
			Reason: "not reviewed in the last 7 days",
		})
	}

	topics := make([]string, 0, len(p.Grammar))
	for t, g := range p.Grammar {
		if g.Mastery < GrammarReviewBelow {
			topics = append(topics, t)
		}
	}
	sort.Strings(topics)
	for _, t := range topics {
		recs = append(recs, Recommendation{
			Type:   RecommendGrammarPractice,
			Item:   t,
			Reason: "mastery below 70%",
		})
	}

	for _, t := range p.WeakTopics(WeakTopicThreshold) {
		recs = append(recs, Recommendation{
			Type:   RecommendExercisePractice,
			Item:   t,
			Reason: "average exercise score below 60%",
		})
	}
	return recs
}
