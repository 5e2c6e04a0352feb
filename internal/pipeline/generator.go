// Package pipeline runs learning path generation end to end: course
// retrieval, prompt composition, the generation call, response parsing and
// the fallback ladder that guarantees a usable plan.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/learnpath/internal/composer"
	"github.com/kalambet/learnpath/internal/fallback"
	"github.com/kalambet/learnpath/internal/gemini"
	"github.com/kalambet/learnpath/internal/plan"
	"github.com/kalambet/learnpath/internal/planparse"
	"github.com/kalambet/learnpath/internal/retrieval"
)

// DefaultTopK is the number of reference courses retrieved per request.
const DefaultTopK = 5

// Outcome is the terminal state of one generation call.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFallback Outcome = "fallback"
	OutcomeCritical Outcome = "critical"
)

// CourseRetriever returns reference courses for a query. It never fails;
// backend errors degrade inside the retriever.
type CourseRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) []retrieval.RetrievedCourse
}

// TextGenerator sends a prompt to the generation service.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator orchestrates learning path creation. It is safe for concurrent
// use.
type Generator struct {
	retriever CourseRetriever
	llm       TextGenerator
	composer  *composer.Composer
	synth     *fallback.Synthesizer
	locale    plan.Locale
	topK      int
	now       func() time.Time
	logger    *slog.Logger
}

// NewGenerator wires a Generator. llm may be nil when no generation
// credential is configured; every call then returns a fallback plan. Pass a
// literal nil rather than a typed nil pointer. topK defaults to DefaultTopK
// when <= 0.
func NewGenerator(retriever CourseRetriever, llm TextGenerator, locale plan.Locale, topK int) *Generator {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if locale == "" {
		locale = plan.LocaleEN
	}
	return &Generator{
		retriever: retriever,
		llm:       llm,
		composer:  composer.New(locale),
		synth:     fallback.New(locale),
		locale:    locale,
		topK:      topK,
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// HasCredential reports whether a generation client is configured.
func (g *Generator) HasCredential() bool { return g.llm != nil }

// CreateLearningPath builds a plan for req. It never returns an error and
// never panics: every failure ends in a fallback plan with the reason set.
func (g *Generator) CreateLearningPath(ctx context.Context, req plan.Request) (res plan.Result) {
	start := time.Now()
	now := g.now()
	log := g.logger.With("request_id", uuid.NewString(), "field", req.Field)

	defer func() {
		outcome := OutcomeSuccess
		if r := recover(); r != nil {
			log.Error("pipeline: panic while creating learning path", "panic", r)
			res = critical(req, now, g.locale, r)
			outcome = OutcomeCritical
		} else if res.IsFallback {
			outcome = OutcomeFallback
		}
		log.Info("learning path created",
			"outcome", outcome,
			"reason", res.FallbackReason,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	courses := g.retriever.Retrieve(ctx, req.Field, g.topK)
	log.Debug("courses retrieved", "count", len(courses))

	if g.llm == nil {
		return g.fallback(req, courses, now, "no generation credential configured")
	}

	raw, err := g.llm.Generate(ctx, g.composer.Compose(req, courses))
	if err != nil {
		log.Warn("pipeline: generation failed, using fallback plan", "error", err)
		return g.fallback(req, courses, now, generationReason(err))
	}

	parsed, err := planparse.Parse(raw, req, now, g.locale)
	if err != nil {
		log.Warn("pipeline: unusable generation response, using fallback plan", "error", err)
		return g.fallback(req, courses, now, "could not parse generation response: "+err.Error())
	}
	parsed.IsFallback = false
	parsed.FallbackReason = ""
	return parsed
}

func (g *Generator) fallback(req plan.Request, courses []retrieval.RetrievedCourse, now time.Time, reason string) plan.Result {
	res := g.synth.Synthesize(req, courses, now)
	res.IsFallback = true
	res.FallbackReason = reason
	return res
}

func generationReason(err error) string {
	var httpErr *gemini.HTTPError
	var tErr *gemini.TransportError
	switch {
	case errors.As(err, &httpErr):
		return fmt.Sprintf("generation API returned HTTP %d", httpErr.StatusCode)
	case errors.Is(err, gemini.ErrEmptyResponse):
		return "generation API returned an empty response"
	case errors.As(err, &tErr):
		return "generation request failed: " + tErr.Err.Error()
	default:
		return "generation request failed: " + err.Error()
	}
}

// critical is the last-resort plan used when building any other plan
// panicked. It depends on nothing but the request and the clock.
func critical(req plan.Request, now time.Time, loc plan.Locale, cause any) plan.Result {
	res := plan.Result{
		Phases: []plan.Phase{{
			Name:         req.Field + " Foundation",
			DurationDays: 30,
			Tasks:        []string{"Learn the basics of " + req.Field},
		}},
		DailyPlan: []plan.Day{{
			Date:      now.Format(plan.DateLayout),
			DayOfWeek: loc.WeekdayName(plan.MondayIndex(now)),
			Tasks:     []string{fmt.Sprintf("Start learning %s (%s hours)", req.Field, plan.FormatHours(req.DailyHours))},
		}},
		Overview:       fmt.Sprintf("Basic %s learning path", req.Field),
		IsFallback:     true,
		FallbackReason: fmt.Sprintf("critical error: %v", cause),
	}
	res.EchoRequest(req)
	res.FillEmpty()
	return res
}
