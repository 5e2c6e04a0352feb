package retrieval

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/kalambet/learnpath/internal/course"
	"github.com/kalambet/learnpath/internal/storage"
)

const vecMagic = "LPVX"

// IndexPaths returns the vector and metadata file paths for an index.
func IndexPaths(dir, name string) (vecPath, metaPath string) {
	return filepath.Join(dir, name+".vec"), filepath.Join(dir, name+".meta")
}

// Save writes the index as two files under dir. Both are written to
// temporary names first and renamed into place.
func (ix *Index) Save(ctx context.Context, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	vecPath, metaPath := IndexPaths(dir, name)
	vecTmp, metaTmp := vecPath+".tmp", metaPath+".tmp"
	defer os.Remove(vecTmp)
	defer os.Remove(metaTmp)

	if err := ix.writeVectors(vecTmp); err != nil {
		return err
	}
	if err := ix.writeMeta(ctx, metaTmp); err != nil {
		return err
	}

	if err := os.Rename(metaTmp, metaPath); err != nil {
		return fmt.Errorf("installing index metadata: %w", err)
	}
	if err := os.Rename(vecTmp, vecPath); err != nil {
		return fmt.Errorf("installing index vectors: %w", err)
	}
	return nil
}

func (ix *Index) writeVectors(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating vector file: %w", err)
	}
	w := bufio.NewWriter(f)

	header := make([]byte, 16)
	copy(header, vecMagic)
	binary.LittleEndian.PutUint32(header[4:], IndexFormat)
	binary.LittleEndian.PutUint32(header[8:], uint32(ix.dim))
	binary.LittleEndian.PutUint32(header[12:], uint32(len(ix.vectors)))
	if _, err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("writing vector header: %w", err)
	}

	buf := make([]byte, 4)
	for _, v := range ix.vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := w.Write(buf); err != nil {
				f.Close()
				return fmt.Errorf("writing vectors: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing vectors: %w", err)
	}
	return f.Close()
}

func (ix *Index) writeMeta(ctx context.Context, path string) error {
	// A leftover temp file from an interrupted save would carry old rows.
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale metadata file: %w", err)
	}
	store, err := storage.Open(path)
	if err != nil {
		return fmt.Errorf("opening index metadata: %w", err)
	}
	defer store.Close()

	info := storage.IndexInfo{
		Format:      IndexFormat,
		Provider:    ix.key.Provider,
		EmbedModel:  ix.key.Model,
		Dimension:   ix.dim,
		Fingerprint: ix.key.Fingerprint,
		CourseCount: len(ix.courses),
		CreatedAt:   ix.createdAt,
	}
	rows := make([]storage.IndexedCourse, len(ix.courses))
	for i, rec := range ix.courses {
		rows[i] = storage.IndexedCourse{
			Position: i,
			Title:    rec.Title,
			Level:    rec.Level,
			Topics:   rec.Topics,
			Duration: rec.DurationWeeks,
			TextHash: textHash(rec),
		}
	}
	if err := store.WriteIndex(ctx, info, rows); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return nil
}

// LoadIndex reads a persisted index and checks that it was built from corpus
// with the embedding provider and model in want. It returns ErrIndexNotFound
// when either file is missing and an error wrapping ErrIndexStale when the
// index no longer matches.
func LoadIndex(ctx context.Context, dir, name string, corpus *course.Corpus, want IndexKey) (*Index, error) {
	vecPath, metaPath := IndexPaths(dir, name)
	for _, p := range []string{vecPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrIndexNotFound
			}
			return nil, fmt.Errorf("checking index file: %w", err)
		}
	}

	store, err := storage.Open(metaPath)
	if err != nil {
		return nil, fmt.Errorf("opening index metadata: %w", err)
	}
	defer store.Close()

	info, err := store.ReadInfo(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: metadata has no index description", ErrIndexStale)
	}
	if err != nil {
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}

	switch {
	case info.Format != IndexFormat:
		return nil, fmt.Errorf("%w: format %d, want %d", ErrIndexStale, info.Format, IndexFormat)
	case info.Provider != want.Provider:
		return nil, fmt.Errorf("%w: built with provider %q, want %q", ErrIndexStale, info.Provider, want.Provider)
	case info.EmbedModel != want.Model:
		return nil, fmt.Errorf("%w: built with model %q, want %q", ErrIndexStale, info.EmbedModel, want.Model)
	case info.Fingerprint != corpus.Fingerprint:
		return nil, fmt.Errorf("%w: corpus changed", ErrIndexStale)
	case info.CourseCount != corpus.Len():
		return nil, fmt.Errorf("%w: %d courses indexed, corpus has %d", ErrIndexStale, info.CourseCount, corpus.Len())
	}

	rows, err := store.ReadCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading indexed courses: %w", err)
	}
	if len(rows) != corpus.Len() {
		return nil, fmt.Errorf("%w: %d course rows, corpus has %d", ErrIndexStale, len(rows), corpus.Len())
	}
	for i, row := range rows {
		rec := corpus.Courses[i]
		if row.Position != i || row.Title != rec.Title || row.TextHash != textHash(rec) {
			return nil, fmt.Errorf("%w: course %d does not match corpus", ErrIndexStale, i)
		}
	}

	vectors, dim, err := readVectors(vecPath)
	if err != nil {
		return nil, err
	}
	if dim != info.Dimension {
		return nil, fmt.Errorf("%w: vector file dimension %d, metadata says %d", ErrIndexStale, dim, info.Dimension)
	}

	key := IndexKey{Provider: info.Provider, Model: info.EmbedModel, Fingerprint: info.Fingerprint}
	ix, err := newIndex(key, vectors, corpus.Courses, info.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexStale, err)
	}
	return ix, nil
}

func readVectors(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening vector file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, 0, fmt.Errorf("%w: reading vector header: %v", ErrIndexStale, err)
	}
	if string(header[:4]) != vecMagic {
		return nil, 0, fmt.Errorf("%w: bad vector file magic", ErrIndexStale)
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != IndexFormat {
		return nil, 0, fmt.Errorf("%w: vector file format %d, want %d", ErrIndexStale, v, IndexFormat)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:]))
	count := int(binary.LittleEndian.Uint32(header[12:]))

	vectors := make([][]float32, count)
	buf := make([]byte, dim*4)
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, fmt.Errorf("%w: vector file truncated at vector %d", ErrIndexStale, i)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vectors[i] = v
	}
	return vectors, dim, nil
}
