package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/learnpath/internal/course"
	"github.com/kalambet/learnpath/internal/plan"
	"github.com/kalambet/learnpath/internal/retrieval"
)

// --- mocks ---

type mockGenerator struct {
	createFn func(ctx context.Context, req plan.Request) plan.Result
	calls    int
}

func (m *mockGenerator) CreateLearningPath(ctx context.Context, req plan.Request) plan.Result {
	m.calls++
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	res := plan.Result{Overview: "plan for " + req.Field, IsFallback: true, FallbackReason: "no generation credential configured"}
	res.EchoRequest(req)
	res.FillEmpty()
	return res
}

type mockSearcher struct {
	courses   []retrieval.RetrievedCourse
	lastQuery string
	lastLimit int
}

func (m *mockSearcher) Retrieve(_ context.Context, query string, limit int) []retrieval.RetrievedCourse {
	m.lastQuery, m.lastLimit = query, limit
	return m.courses
}

func newTestHandler(gen *mockGenerator, search *mockSearcher) http.Handler {
	return NewHandler(Deps{
		Generator:   gen,
		Searcher:    search,
		IndexLoaded: func() bool { return true },
		Courses:     12,
		Version:     "test",
	})
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&mockGenerator{}, &mockSearcher{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	want := healthResponse{Status: "ok", IndexLoaded: true, Courses: 12, Version: "test"}
	if body != want {
		t.Errorf("body = %+v, want %+v", body, want)
	}
}

func TestHealth_NoIndexFunc(t *testing.T) {
	h := NewHandler(Deps{Generator: &mockGenerator{}, Searcher: &mockSearcher{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body healthResponse
	json.NewDecoder(rr.Body).Decode(&body)
	if body.IndexLoaded {
		t.Error("index_loaded = true without an index")
	}
}

func TestLearningPath_OK(t *testing.T) {
	gen := &mockGenerator{}
	h := newTestHandler(gen, &mockSearcher{})

	body := `{"field":"Python programming","level":"Beginner","duration":3,"daily_hours":2,"interests":["Web Development"]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/learning-path", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var env map[string]map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	lp, ok := env["learning_path"]
	if !ok {
		t.Fatalf("response missing learning_path: %v", env)
	}
	if lp["field"] != "Python programming" || lp["duration"] != float64(3) {
		t.Errorf("echo fields = %v, %v", lp["field"], lp["duration"])
	}
	if lp["is_fallback"] != true || lp["fallback_reason"] != "no generation credential configured" {
		t.Errorf("fallback fields = %v, %v", lp["is_fallback"], lp["fallback_reason"])
	}
	for _, k := range []string{"courses", "phases", "daily_plan", "projects", "resources", "tips"} {
		if _, ok := lp[k].([]any); !ok {
			t.Errorf("%s = %v, want array", k, lp[k])
		}
	}
}

func TestLearningPath_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing field", `{"level":"Beginner","duration":3,"daily_hours":2}`, "field is required"},
		{"missing level", `{"field":"Go","duration":3,"daily_hours":2}`, "level is required"},
		{"zero duration", `{"field":"Go","level":"Beginner","duration":0,"daily_hours":2}`, "duration"},
		{"huge duration", `{"field":"Go","level":"Beginner","duration":100000,"daily_hours":2}`, "at most 120 months"},
		{"negative hours", `{"field":"Go","level":"Beginner","duration":1,"daily_hours":-1}`, "daily_hours"},
		{"bad json", `{"field":`, "invalid request body"},
		{"wrong type", `{"field":"Go","level":"Beginner","duration":"three","daily_hours":2}`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{}
			h := newTestHandler(gen, &mockSearcher{})

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/learning-path", strings.NewReader(tt.body)))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			var body struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error"`
			}
			json.NewDecoder(rr.Body).Decode(&body)
			if !strings.Contains(body.Error.Message, tt.message) {
				t.Errorf("message = %q, want it to contain %q", body.Error.Message, tt.message)
			}
			if body.Error.Type != "invalid_request_error" {
				t.Errorf("type = %q", body.Error.Type)
			}
			if gen.calls != 0 {
				t.Error("generator called for an invalid request")
			}
		})
	}
}

func TestLearningPath_BodyTooLarge(t *testing.T) {
	h := newTestHandler(&mockGenerator{}, &mockSearcher{})

	big := `{"field":"` + strings.Repeat("x", maxRequestBodySize+1) + `"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/learning-path", strings.NewReader(big)))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSearch(t *testing.T) {
	search := &mockSearcher{courses: []retrieval.RetrievedCourse{{
		Record:         course.Record{Title: "Python for Beginners", Topics: []string{"Python"}, DurationWeeks: 6},
		RelevanceScore: 1.6,
		Source:         retrieval.SourceLexical,
	}}}
	h := newTestHandler(&mockGenerator{}, search)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/courses/search?q=python&limit=3", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if search.lastQuery != "python" || search.lastLimit != 3 {
		t.Errorf("searched q=%q limit=%d", search.lastQuery, search.lastLimit)
	}
	var body struct {
		Courses []map[string]any `json:"courses"`
	}
	json.NewDecoder(rr.Body).Decode(&body)
	if len(body.Courses) != 1 {
		t.Fatalf("got %d courses, want 1", len(body.Courses))
	}
	c := body.Courses[0]
	if c["title"] != "Python for Beginners" || c["relevance_score"] != 1.6 || c["source"] != "lexical" {
		t.Errorf("course = %v", c)
	}
}

func TestSearch_Limits(t *testing.T) {
	tests := []struct {
		query string
		code  int
		limit int
	}{
		{"q=go", http.StatusOK, defaultSearchLimit},
		{"q=go&limit=500", http.StatusOK, maxSearchLimit},
		{"q=go&limit=0", http.StatusBadRequest, 0},
		{"q=go&limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			search := &mockSearcher{}
			h := newTestHandler(&mockGenerator{}, search)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/courses/search?"+tt.query, nil))
			if rr.Code != tt.code {
				t.Fatalf("status = %d, want %d", rr.Code, tt.code)
			}
			if search.lastLimit != tt.limit {
				t.Errorf("limit = %d, want %d", search.lastLimit, tt.limit)
			}
		})
	}
}

func TestSearch_EmptyResultIsArray(t *testing.T) {
	h := newTestHandler(&mockGenerator{}, &mockSearcher{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/courses/search?q=", nil))

	if !strings.Contains(rr.Body.String(), `"courses":[]`) {
		t.Errorf("body = %s, want empty courses array", rr.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	gen := &mockGenerator{createFn: func(ctx context.Context, req plan.Request) plan.Result {
		seen = RequestIDFrom(ctx)
		return plan.Result{}
	}}
	h := newTestHandler(gen, &mockSearcher{})

	body := `{"field":"Go","level":"Beginner","duration":1,"daily_hours":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/learning-path", strings.NewReader(body))
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("response %s = %q, want abc-123", RequestIDHeader, got)
	}
	if seen != "abc-123" {
		t.Errorf("context request id = %q, want abc-123", seen)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := rr.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("generated request id = %q, want a uuid", got)
	}
}
