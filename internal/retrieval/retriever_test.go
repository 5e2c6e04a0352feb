package retrieval

import (
	"context"
	"errors"
	"testing"
)

// staticSource implements IndexSource for testing.
type staticSource struct{ ix *Index }

func (s staticSource) Current() *Index { return s.ix }

// mockBackend implements Backend for testing.
type mockBackend struct {
	available bool
	searchFn  func(ctx context.Context, query string, limit int) ([]RetrievedCourse, error)
	calls     int
}

func (m *mockBackend) Name() string    { return "mock" }
func (m *mockBackend) Available() bool { return m.available }
func (m *mockBackend) Search(ctx context.Context, query string, limit int) ([]RetrievedCourse, error) {
	m.calls++
	return m.searchFn(ctx, query, limit)
}

func TestLexical_ScoresAndOrder(t *testing.T) {
	lex := NewLexicalBackend(testCorpus(t))

	got := lex.Match("python", 5)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(got), got)
	}
	// Python for Beginners: title substring 4 + term 3, exact topic 4 + term 2,
	// description substring 2 + term 1 = 16.
	if got[0].Title != "Python for Beginners" || got[0].RelevanceScore != 1.6 {
		t.Errorf("got[0] = %s %.2f, want Python for Beginners 1.60", got[0].Title, got[0].RelevanceScore)
	}
	// Data Analysis with Python: title 4+3, topic 4+2, description none = 13.
	if got[1].Title != "Data Analysis with Python" || got[1].RelevanceScore != 1.3 {
		t.Errorf("got[1] = %s %.2f, want Data Analysis with Python 1.30", got[1].Title, got[1].RelevanceScore)
	}
	for _, c := range got {
		if c.Source != SourceLexical {
			t.Errorf("Source = %q, want lexical", c.Source)
		}
	}
}

func TestLexical_ExactTitle(t *testing.T) {
	got := NewLexicalBackend(testCorpus(t)).Match("Java Fundamentals", 1)
	if len(got) != 1 || got[0].Title != "Java Fundamentals" {
		t.Fatalf("got %+v, want Java Fundamentals", got)
	}
	// exact title 5 + two title terms 6 + topic term "java" 2 + description term "java" 1 = 14.
	if got[0].RelevanceScore != 1.4 {
		t.Errorf("score = %v, want 1.4", got[0].RelevanceScore)
	}
}

func TestLexical_StableTies(t *testing.T) {
	lex := NewLexicalBackend(testCorpus(t))

	// "and" hits the "pandas" topic and three descriptions; the two
	// description-only matches tie and keep corpus order.
	got := lex.Match("and", 5)
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3: %+v", len(got), got)
	}
	want := []string{"Data Analysis with Python", "Python for Beginners", "Web Development Bootcamp"}
	for i, w := range want {
		if got[i].Title != w {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Title, w)
		}
	}
	if got[1].RelevanceScore != got[2].RelevanceScore {
		t.Errorf("expected a tie, got %v and %v", got[1].RelevanceScore, got[2].RelevanceScore)
	}
}

func TestLexical_NoMatch(t *testing.T) {
	lex := NewLexicalBackend(testCorpus(t))
	if got := lex.Match("kubernetes", 5); len(got) != 0 {
		t.Errorf("got %d results for unmatched query, want 0", len(got))
	}
	got := lex.Match("oop", 5)
	if len(got) != 1 || got[0].Title != "Java Fundamentals" {
		t.Errorf("got %+v, want only Java Fundamentals", got)
	}
}

func TestLexical_EmptyQueryAndLimit(t *testing.T) {
	lex := NewLexicalBackend(testCorpus(t))
	if got := lex.Match("   ", 5); got != nil {
		t.Errorf("empty query: got %+v, want nil", got)
	}
	if got := lex.Match("python", 0); got != nil {
		t.Errorf("limit 0: got %+v, want nil", got)
	}
	if got := lex.Match("python", 1); len(got) != 1 {
		t.Errorf("limit 1: got %d results", len(got))
	}
}

func TestVectorBackend_Search(t *testing.T) {
	c := testCorpus(t)
	emb := NewEmbedder(keywordEngine(), "m")
	ix, err := BuildIndex(context.Background(), emb, c)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	vb := NewVectorBackend(staticSource{ix}, emb)
	if !vb.Available() {
		t.Fatal("expected backend to be available")
	}
	got, err := vb.Search(context.Background(), "java", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Java Fundamentals" {
		t.Fatalf("got %+v, want Java Fundamentals", got)
	}
	if got[0].RelevanceScore < 0.99 || got[0].Source != SourceVector {
		t.Errorf("score/source = %v/%q", got[0].RelevanceScore, got[0].Source)
	}
}

func TestVectorBackend_NoIndex(t *testing.T) {
	vb := NewVectorBackend(staticSource{}, NewEmbedder(keywordEngine(), "m"))
	if vb.Available() {
		t.Error("backend without index reports available")
	}
	if _, err := vb.Search(context.Background(), "java", 3); !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("err = %v, want ErrIndexUnavailable", err)
	}
}

func TestRetrieve_PrefersVector(t *testing.T) {
	vec := &mockBackend{
		available: true,
		searchFn: func(_ context.Context, _ string, limit int) ([]RetrievedCourse, error) {
			return []RetrievedCourse{{RelevanceScore: 0.9, Source: SourceVector}}, nil
		},
	}
	r := NewRetriever(vec, NewLexicalBackend(testCorpus(t)))

	got := r.Retrieve(context.Background(), "python", 5)
	if len(got) != 1 || got[0].Source != SourceVector {
		t.Errorf("got %+v, want one vector result", got)
	}
}

func TestRetrieve_FallsBackOnError(t *testing.T) {
	vec := &mockBackend{
		available: true,
		searchFn: func(_ context.Context, _ string, _ int) ([]RetrievedCourse, error) {
			return nil, errors.New("embedding service down")
		},
	}
	r := NewRetriever(vec, NewLexicalBackend(testCorpus(t)))

	got := r.Retrieve(context.Background(), "python", 5)
	if vec.calls != 1 {
		t.Errorf("vector called %d times, want 1", vec.calls)
	}
	if len(got) != 2 || got[0].Source != SourceLexical {
		t.Errorf("got %+v, want lexical results", got)
	}
}

func TestRetrieve_FallsBackOnZeroResults(t *testing.T) {
	vec := &mockBackend{
		available: true,
		searchFn: func(_ context.Context, _ string, _ int) ([]RetrievedCourse, error) {
			return nil, nil
		},
	}
	got := NewRetriever(vec, NewLexicalBackend(testCorpus(t))).Retrieve(context.Background(), "java", 5)
	if len(got) == 0 || got[0].Source != SourceLexical {
		t.Errorf("got %+v, want lexical results", got)
	}
}

func TestRetrieve_SkipsUnavailableVector(t *testing.T) {
	vec := &mockBackend{
		searchFn: func(_ context.Context, _ string, _ int) ([]RetrievedCourse, error) {
			t.Fatal("unavailable backend should not be searched")
			return nil, nil
		},
	}
	got := NewRetriever(vec, NewLexicalBackend(testCorpus(t))).Retrieve(context.Background(), "python", 5)
	if len(got) != 2 {
		t.Errorf("got %d results, want 2", len(got))
	}
}

func TestRetrieve_LexicalOnlyAndLimit(t *testing.T) {
	r := NewRetriever(nil, NewLexicalBackend(testCorpus(t)))
	if got := r.Retrieve(context.Background(), "python", 0); got != nil {
		t.Errorf("limit 0: got %+v, want nil", got)
	}
	if got := r.Retrieve(context.Background(), "", 5); len(got) != 0 {
		t.Errorf("empty query: got %+v, want none", got)
	}
	if got := r.Retrieve(context.Background(), "python", 1); len(got) != 1 {
		t.Errorf("limit 1: got %d results", len(got))
	}
}

func TestRetrieve_BlankQuerySkipsBackends(t *testing.T) {
	vec := &mockBackend{
		available: true,
		searchFn: func(_ context.Context, _ string, _ int) ([]RetrievedCourse, error) {
			return []RetrievedCourse{{RelevanceScore: 0.4, Source: SourceVector}}, nil
		},
	}
	r := NewRetriever(vec, NewLexicalBackend(testCorpus(t)))

	for _, q := range []string{"", "  \t "} {
		if got := r.Retrieve(context.Background(), q, 5); len(got) != 0 {
			t.Errorf("Retrieve(%q) = %+v, want none", q, got)
		}
	}
	if vec.calls != 0 {
		t.Errorf("vector called %d times for a blank query, want 0", vec.calls)
	}
}
