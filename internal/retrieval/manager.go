package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/learnpath/internal/course"
)

// IndexManager owns the live similarity index. Readers call Current; Ensure
// and Rebuild replace the index atomically once a new one is ready, so
// searches keep using the previous index while a build runs.
type IndexManager struct {
	embedder *Embedder
	corpus   *course.Corpus
	dir      string
	name     string
	logger   *slog.Logger

	current atomic.Pointer[Index]
	buildMu sync.Mutex
	group   singleflight.Group
}

// NewIndexManager returns a manager that persists the index as
// <dir>/<name>.vec and <dir>/<name>.meta.
func NewIndexManager(embedder *Embedder, corpus *course.Corpus, dir, name string) *IndexManager {
	return &IndexManager{
		embedder: embedder,
		corpus:   corpus,
		dir:      dir,
		name:     name,
		logger:   slog.Default(),
	}
}

// Current returns the live index, or nil.
func (m *IndexManager) Current() *Index {
	return m.current.Load()
}

// Key identifies the index the manager expects: the embedder's provider and
// model plus the corpus fingerprint.
func (m *IndexManager) Key() IndexKey {
	return IndexKey{
		Provider:    m.embedder.Provider(),
		Model:       m.embedder.Model(),
		Fingerprint: m.corpus.Fingerprint,
	}
}

// Ensure loads the persisted index, rebuilding it from the corpus when it
// is missing or stale.
func (m *IndexManager) Ensure(ctx context.Context) error {
	_, err, _ := m.group.Do("ensure", func() (any, error) {
		if m.current.Load() != nil {
			return nil, nil
		}
		ix, err := LoadIndex(ctx, m.dir, m.name, m.corpus, m.Key())
		if err == nil {
			m.current.Store(ix)
			m.logger.Info("index loaded", "courses", ix.Len(), "dimension", ix.Dimension())
			return nil, nil
		}
		if errors.Is(err, ErrIndexNotFound) {
			m.logger.Info("index not found, building", "dir", m.dir)
		} else {
			m.logger.Warn("index unusable, rebuilding", "error", err)
		}
		return nil, m.build(ctx)
	})
	return err
}

// Inspect reads the persisted index without building or installing it.
func (m *IndexManager) Inspect(ctx context.Context) (*Index, error) {
	return LoadIndex(ctx, m.dir, m.name, m.corpus, m.Key())
}

// Rebuild embeds the corpus again and replaces the live index.
func (m *IndexManager) Rebuild(ctx context.Context) error {
	_, err, _ := m.group.Do("rebuild", func() (any, error) {
		return nil, m.build(ctx)
	})
	return err
}

func (m *IndexManager) build(ctx context.Context) error {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	ix, err := BuildIndex(ctx, m.embedder, m.corpus)
	if err != nil {
		return err
	}
	m.current.Store(ix)
	m.logger.Info("index built", "courses", ix.Len(), "dimension", ix.Dimension())

	if err := ix.Save(ctx, m.dir, m.name); err != nil {
		m.logger.Warn("index save failed, using in-memory index", "error", err)
	}
	return nil
}
