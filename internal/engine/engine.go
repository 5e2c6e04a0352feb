// Package engine provides the text-embedding backends used to build and
// query the course similarity index.
package engine

import (
	"context"
	"errors"
)

// Engine abstracts an embedding backend (Gemini, OpenAI-compatible servers,
// or a local Ollama). Retrieval depends on this interface rather than on a
// concrete client.
type Engine interface {
	// Embed returns the embedding vector for text using the given model.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// Name identifies the provider, e.g. "gemini". It is recorded in index
	// metadata and cache keys.
	Name() string
}

// Prober is implemented by engines that can report reachability.
type Prober interface {
	IsRunning(ctx context.Context) bool
}

// ModelManager is implemented by engines that host models locally and can
// download missing ones.
type ModelManager interface {
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string
	Total     int64
	Completed int64
}

// ErrDisabled is returned by New when no embedding backend is configured or
// its credential is missing. Callers run with lexical retrieval only.
var ErrDisabled = errors.New("embedding backend disabled")
