package retrieval

import (
	"context"
	"slices"
	"strings"

	"github.com/kalambet/learnpath/internal/course"
)

// LexicalBackend scores corpus records by keyword overlap with the query.
// It needs no external service and never fails.
type LexicalBackend struct {
	corpus *course.Corpus
}

// NewLexicalBackend returns a keyword matcher over corpus.
func NewLexicalBackend(corpus *course.Corpus) *LexicalBackend {
	return &LexicalBackend{corpus: corpus}
}

func (b *LexicalBackend) Name() string    { return SourceLexical }
func (b *LexicalBackend) Available() bool { return true }

// Search implements Backend. The error is always nil.
func (b *LexicalBackend) Search(_ context.Context, query string, limit int) ([]RetrievedCourse, error) {
	return b.Match(query, limit), nil
}

// Match returns up to limit records with a positive score, best first. Ties
// keep corpus order.
func (b *LexicalBackend) Match(query string, limit int) []RetrievedCourse {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}
	terms := strings.Fields(q)

	var out []RetrievedCourse
	for _, rec := range b.corpus.Courses {
		score := lexicalScore(rec, q, terms)
		if score > 0 {
			out = append(out, RetrievedCourse{Record: rec, RelevanceScore: score / 10, Source: SourceLexical})
		}
	}

	slices.SortStableFunc(out, func(a, b RetrievedCourse) int {
		switch {
		case a.RelevanceScore > b.RelevanceScore:
			return -1
		case a.RelevanceScore < b.RelevanceScore:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func lexicalScore(rec course.Record, q string, terms []string) float64 {
	var score float64

	title := strings.ToLower(rec.Title)
	if title == q {
		score += 5
	} else if strings.Contains(title, q) {
		score += 4
	}
	for _, t := range terms {
		if strings.Contains(title, t) {
			score += 3
		}
	}

	topics := make([]string, len(rec.Topics))
	for i, t := range rec.Topics {
		topics[i] = strings.ToLower(t)
	}
	if slices.Contains(topics, q) {
		score += 4
	} else if slices.ContainsFunc(topics, func(t string) bool { return strings.Contains(t, q) }) {
		score += 3
	}
	for _, term := range terms {
		if slices.ContainsFunc(topics, func(t string) bool { return strings.Contains(t, term) }) {
			score += 2
		}
	}

	desc := strings.ToLower(rec.Description)
	if strings.Contains(desc, q) {
		score += 2
	}
	for _, t := range terms {
		if strings.Contains(desc, t) {
			score++
		}
	}
	return score
}
