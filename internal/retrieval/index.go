package retrieval

import (
	"container/heap"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/learnpath/internal/course"
)

// IndexFormat is bumped whenever the on-disk layout of either index file
// changes. A persisted index with a different format is rebuilt.
const IndexFormat = 1

var (
	// ErrIndexNotFound means one or both index files are missing.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexStale means the persisted index does not describe the current
	// corpus or embedding configuration.
	ErrIndexStale = errors.New("index is stale")
)

// Hit is one nearest-neighbour result. Distance is 1 - cosine similarity.
type Hit struct {
	Position int
	Distance float64
}

// IndexKey identifies what a persisted index must have been built from to
// be reusable.
type IndexKey struct {
	Provider    string
	Model       string
	Fingerprint string
}

// Index is an immutable in-memory similarity index over the corpus. Vector i
// belongs to corpus record i.
type Index struct {
	key       IndexKey
	dim       int
	vectors   [][]float32
	norms     []float32
	courses   []course.Record
	createdAt time.Time
}

// CourseText renders the block of text embedded for a record.
func CourseText(rec course.Record) string {
	prereq := "None"
	if len(rec.Prerequisites) > 0 {
		prereq = strings.Join(rec.Prerequisites, ", ")
	}
	var b strings.Builder
	b.WriteString("Course: " + rec.Title + "\n")
	b.WriteString("Description: " + rec.Description + "\n")
	b.WriteString("Topics: " + strings.Join(rec.Topics, ", ") + "\n")
	b.WriteString("Level: " + rec.Level + "\n")
	b.WriteString("Prerequisites: " + prereq + "\n")
	b.WriteString("Duration: " + strconv.Itoa(rec.DurationWeeks) + " weeks")
	return b.String()
}

func textHash(rec course.Record) string {
	sum := sha256.Sum256([]byte(CourseText(rec)))
	return hex.EncodeToString(sum[:])
}

// BuildIndex embeds every corpus record and returns a new index.
func BuildIndex(ctx context.Context, embedder *Embedder, corpus *course.Corpus) (*Index, error) {
	if corpus.Len() == 0 {
		return nil, fmt.Errorf("building index: corpus is empty")
	}

	texts := make([]string, len(corpus.Courses))
	for i, rec := range corpus.Courses {
		texts[i] = CourseText(rec)
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	key := IndexKey{
		Provider:    embedder.Provider(),
		Model:       embedder.Model(),
		Fingerprint: corpus.Fingerprint,
	}
	return newIndex(key, vectors, corpus.Courses, time.Now().UTC())
}

func newIndex(key IndexKey, vectors [][]float32, courses []course.Record, createdAt time.Time) (*Index, error) {
	if len(vectors) != len(courses) {
		return nil, fmt.Errorf("index has %d vectors for %d courses", len(vectors), len(courses))
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("index has no vectors")
	}
	dim := len(vectors[0])
	norms := make([]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		norms[i] = norm(v)
	}
	return &Index{
		key:       key,
		dim:       dim,
		vectors:   vectors,
		norms:     norms,
		courses:   courses,
		createdAt: createdAt,
	}, nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.vectors)
}

// Dimension returns the embedding dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Key returns what the index was built from.
func (ix *Index) Key() IndexKey { return ix.key }

// CreatedAt returns the build time.
func (ix *Index) CreatedAt() time.Time { return ix.createdAt }

// Course returns the record at position.
func (ix *Index) Course(position int) course.Record { return ix.courses[position] }

// Search returns up to k nearest records to vec ordered by ascending distance.
func (ix *Index) Search(vec []float32, k int) ([]Hit, error) {
	if k <= 0 || ix.Len() == 0 {
		return nil, nil
	}
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vec), ix.dim)
	}

	queryNorm := norm(vec)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &posScoreHeap{}
	heap.Init(h)
	for i, v := range ix.vectors {
		score := cosine(vec, v, queryNorm, ix.norms[i])
		if h.Len() < k {
			heap.Push(h, posScore{Position: i, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = posScore{Position: i, Score: score}
			heap.Fix(h, 0)
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		item := heap.Pop(h).(posScore)
		hits[i] = Hit{Position: item.Position, Distance: 1 - float64(item.Score)}
	}
	return hits, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * bNorm) with both norms precomputed.
func cosine(a, b []float32, aNorm, bNorm float32) float32 {
	if len(a) != len(b) || aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (float64(aNorm) * float64(bNorm)))
}

// posScore holds a corpus position and its similarity during a scan.
type posScore struct {
	Position int
	Score    float32
}

// posScoreHeap is a min-heap of posScore ordered by Score, with ties broken
// so that later positions are evicted first.
type posScoreHeap []posScore

func (h posScoreHeap) Len() int { return len(h) }
func (h posScoreHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Position > h[j].Position
}
func (h posScoreHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *posScoreHeap) Push(x any)   { *h = append(*h, x.(posScore)) }
func (h *posScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
