// Package retrieval finds reference courses for a learning-path request,
// using embedding similarity when an index is available and keyword
// matching otherwise.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/learnpath/internal/course"
)

// Backend names.
const (
	SourceVector  = "vector"
	SourceLexical = "lexical"
)

var (
	ErrIndexUnavailable = errors.New("similarity index not loaded")
	ErrIndexEmpty       = errors.New("similarity index is empty")
	ErrNoResults        = errors.New("similarity search returned no results")
)

// RetrievedCourse is a corpus record with the score it got for one query.
// Vector scores are cosine similarities in [-1, 1]; lexical scores are
// keyword sums divided by 10. Scores are only comparable within one call.
type RetrievedCourse struct {
	course.Record
	RelevanceScore float64 `json:"relevance_score"`
	Source         string  `json:"source"`
}

// Backend is one retrieval strategy.
type Backend interface {
	Name() string
	// Available reports whether Search can be attempted right now.
	Available() bool
	Search(ctx context.Context, query string, limit int) ([]RetrievedCourse, error)
}

// IndexSource provides the live similarity index, or nil when none is loaded.
type IndexSource interface {
	Current() *Index
}

// VectorBackend embeds the query and searches the live index.
type VectorBackend struct {
	source   IndexSource
	embedder *Embedder
}

// NewVectorBackend returns a Backend over the index held by source.
func NewVectorBackend(source IndexSource, embedder *Embedder) *VectorBackend {
	return &VectorBackend{source: source, embedder: embedder}
}

func (b *VectorBackend) Name() string { return SourceVector }

func (b *VectorBackend) Available() bool {
	return b.embedder != nil && b.source != nil && b.source.Current() != nil
}

func (b *VectorBackend) Search(ctx context.Context, query string, limit int) ([]RetrievedCourse, error) {
	ix := b.source.Current()
	if ix == nil {
		return nil, ErrIndexUnavailable
	}
	if ix.Len() == 0 {
		return nil, ErrIndexEmpty
	}

	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	hits, err := ix.Search(vec, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, ErrNoResults
	}

	out := make([]RetrievedCourse, len(hits))
	for i, h := range hits {
		out[i] = RetrievedCourse{
			Record:         ix.Course(h.Position),
			RelevanceScore: 1 - h.Distance,
			Source:         SourceVector,
		}
	}
	return out, nil
}

// Retriever tries the vector backend first and falls back to lexical
// matching on any failure.
type Retriever struct {
	vector  Backend
	lexical *LexicalBackend
	logger  *slog.Logger
}

// NewRetriever creates a Retriever. vector may be nil for lexical-only
// operation.
func NewRetriever(vector Backend, lexical *LexicalBackend) *Retriever {
	return &Retriever{vector: vector, lexical: lexical, logger: slog.Default()}
}

// Lexical returns the keyword backend.
func (r *Retriever) Lexical() *LexicalBackend { return r.lexical }

// VectorAvailable reports whether the vector backend would be tried.
func (r *Retriever) VectorAvailable() bool {
	return r.vector != nil && r.vector.Available()
}

// Retrieve returns up to limit courses relevant to query. It never fails;
// vector errors degrade to lexical matching.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) []RetrievedCourse {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	if r.VectorAvailable() {
		res, err := r.vector.Search(ctx, query, limit)
		if err == nil && len(res) > 0 {
			return res
		}
		if err == nil {
			err = ErrNoResults
		}
		r.logger.Warn("retrieval: vector search failed, using lexical", "error", err)
	} else if r.vector != nil {
		r.logger.Debug("retrieval: no similarity index loaded, using lexical")
	}

	return r.lexical.Match(query, limit)
}
