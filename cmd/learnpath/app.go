package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kalambet/learnpath/internal/config"
	"github.com/kalambet/learnpath/internal/course"
	"github.com/kalambet/learnpath/internal/engine"
	"github.com/kalambet/learnpath/internal/gemini"
	"github.com/kalambet/learnpath/internal/pipeline"
	"github.com/kalambet/learnpath/internal/plan"
	"github.com/kalambet/learnpath/internal/retrieval"
)

var errEmbeddingsDisabled = errors.New("embeddings are disabled (embedding.provider or API key not set)")

// app is the wired process: corpus, retrieval and the generation pipeline.
type app struct {
	cfg       config.Config
	corpus    *course.Corpus
	locale    plan.Locale
	embedding engine.Engine           // unwrapped backend, nil when disabled
	index     *retrieval.IndexManager // nil when embeddings are disabled
	retriever *retrieval.Retriever
	generator *pipeline.Generator
	closers   []io.Closer
}

// buildApp loads the corpus and wires every component. Only a missing or
// invalid corpus is fatal; embedding problems leave lexical search in
// place.
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	corpus, err := course.Load(cfg.Corpus.Path)
	if err != nil {
		return nil, err
	}
	locale, err := plan.ParseLocale(cfg.Locale)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, corpus: corpus, locale: locale}

	var vector retrieval.Backend
	if eng := a.embeddingEngine(ctx); eng != nil {
		embedder := retrieval.NewEmbedder(eng, cfg.Embedding.Model)
		a.index = retrieval.NewIndexManager(embedder, corpus, cfg.Index.Dir, cfg.Index.Name)
		vector = retrieval.NewVectorBackend(a.index, embedder)
	}
	a.retriever = retrieval.NewRetriever(vector, retrieval.NewLexicalBackend(corpus))

	var llm pipeline.TextGenerator
	if cfg.Generation.APIKey != "" {
		llm = gemini.NewClientWithBaseURL(cfg.Generation.APIKey, cfg.Generation.BaseURL, gemini.Options{
			Model:           cfg.Generation.Model,
			Temperature:     cfg.Generation.Temperature,
			TopP:            cfg.Generation.TopP,
			TopK:            cfg.Generation.TopK,
			MaxOutputTokens: cfg.Generation.MaxOutputTokens,
			Timeout:         cfg.GenerationTimeout(),
		})
	} else {
		slog.Warn("no generation API key configured, serving template plans only")
	}
	a.generator = pipeline.NewGenerator(a.retriever, llm, locale, cfg.Retrieval.TopK)

	slog.Info("corpus loaded", "path", cfg.Corpus.Path, "courses", corpus.Len())
	return a, nil
}

func (a *app) embeddingEngine(ctx context.Context) engine.Engine {
	eng, err := engine.New(ctx, engine.Config{
		Provider: a.cfg.Embedding.Provider,
		APIKey:   a.cfg.Embedding.APIKey,
		BaseURL:  a.cfg.Embedding.BaseURL,
	})
	if errors.Is(err, engine.ErrDisabled) {
		slog.Info("embeddings disabled, using lexical search", "reason", err)
		return nil
	}
	if err != nil {
		slog.Warn("embedding backend unavailable, using lexical search", "error", err)
		return nil
	}
	a.embedding = eng

	if a.cfg.Cache.RedisAddr == "" {
		return eng
	}
	cache, err := engine.NewRedisCache(ctx, a.cfg.Cache.RedisAddr)
	if err != nil {
		slog.Warn("embedding cache unavailable, continuing without it", "addr", a.cfg.Cache.RedisAddr, "error", err)
		return eng
	}
	a.closers = append(a.closers, cache)
	return engine.NewCachedEngine(eng, cache, a.cfg.CacheTTL())
}

// ensureIndex readies the embedding backend and loads or builds the
// similarity index. Failures are logged; retrieval then stays lexical.
func (a *app) ensureIndex(ctx context.Context, progress io.Writer) {
	if a.index == nil {
		return
	}
	if err := a.prepareIndex(ctx, progress); err != nil {
		slog.Warn("similarity index unavailable, using lexical search", "error", err)
	}
}

func (a *app) prepareIndex(ctx context.Context, progress io.Writer) error {
	if a.index == nil {
		return errEmbeddingsDisabled
	}
	if err := a.embedReady(ctx, progress); err != nil {
		return err
	}
	return a.index.Ensure(ctx)
}

func (a *app) rebuildIndex(ctx context.Context, progress io.Writer) error {
	if a.index == nil {
		return errEmbeddingsDisabled
	}
	if err := a.embedReady(ctx, progress); err != nil {
		return err
	}
	return a.index.Rebuild(ctx)
}

// embedReady checks a local backend is up and has the model, pulling it
// when missing.
func (a *app) embedReady(ctx context.Context, progress io.Writer) error {
	if err := engine.EnsureReady(ctx, a.embedding, a.cfg.Embedding.Model, progress); err != nil {
		return fmt.Errorf("embedding backend not ready: %w", err)
	}
	return nil
}

func (a *app) indexLoaded() bool {
	return a.index != nil && a.index.Current() != nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			slog.Warn("closing resource", "error", err)
		}
	}
}
