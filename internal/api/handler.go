// Package api exposes the learning path pipeline over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/learnpath/internal/plan"
	"github.com/kalambet/learnpath/internal/retrieval"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// PathGenerator creates learning paths. It never fails.
type PathGenerator interface {
	CreateLearningPath(ctx context.Context, req plan.Request) plan.Result
}

// CourseSearcher looks up reference courses.
type CourseSearcher interface {
	Retrieve(ctx context.Context, query string, limit int) []retrieval.RetrievedCourse
}

// Deps holds the dependencies of the HTTP handler.
type Deps struct {
	Generator PathGenerator
	Searcher  CourseSearcher
	// IndexLoaded reports whether a similarity index is in memory. Optional.
	IndexLoaded func() bool
	Courses     int
	Version     string
}

// NewHandler returns the HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog)

	r.Get("/health", handleHealth(deps))
	r.Post("/api/learning-path", handleLearningPath(deps))
	r.Get("/api/courses/search", handleSearch(deps))

	return r
}

type healthResponse struct {
	Status      string `json:"status"`
	IndexLoaded bool   `json:"index_loaded"`
	Courses     int    `json:"courses"`
	Version     string `json:"version"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loaded := deps.IndexLoaded != nil && deps.IndexLoaded()
		writeJSON(w, http.StatusOK, healthResponse{
			Status:      "ok",
			IndexLoaded: loaded,
			Courses:     deps.Courses,
			Version:     deps.Version,
		})
	}
}

func handleLearningPath(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req plan.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := req.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", strings.ReplaceAll(err.Error(), "\n", "; "))
			return
		}

		res := deps.Generator.CreateLearningPath(r.Context(), req)
		slog.Debug("learning path served",
			"request_id", RequestIDFrom(r.Context()),
			"is_fallback", res.IsFallback,
		)
		writeJSON(w, http.StatusOK, plan.Envelope{LearningPath: res})
	}
}

type searchResponse struct {
	Query   string                      `json:"query"`
	Courses []retrieval.RetrievedCourse `json:"courses"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		limit, err := searchLimit(r.URL.Query().Get("limit"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		courses := deps.Searcher.Retrieve(r.Context(), q, limit)
		if courses == nil {
			courses = []retrieval.RetrievedCourse{}
		}
		writeJSON(w, http.StatusOK, searchResponse{Query: q, Courses: courses})
	}
}

func searchLimit(s string) (int, error) {
	if s == "" {
		return defaultSearchLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", s)
	}
	return min(n, maxSearchLimit), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encoding response failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
