// Package course loads the static course catalog that backs retrieval.
package course

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one catalog entry. Records are read-only after Load.
type Record struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Topics        []string `json:"topics"`
	Level         string   `json:"level"`
	Prerequisites []string `json:"prerequisites"`
	DurationWeeks int      `json:"duration"`
}

// Corpus is the loaded catalog plus a fingerprint of its contents, used to
// detect a stale persisted index.
type Corpus struct {
	Courses     []Record
	Fingerprint string
}

type corpusFile struct {
	Courses []json.RawMessage `json:"courses"`
}

// Load reads the catalog file at path.
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("loading corpus %s: %w", path, err)
	}
	return c, nil
}

// Read decodes a catalog of the form {"courses": [...]}.
func Read(r io.Reader) (*Corpus, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}

	var file corpusFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding corpus: %w", err)
	}
	if file.Courses == nil {
		return nil, fmt.Errorf("decoding corpus: missing \"courses\" array")
	}

	courses := make([]Record, 0, len(file.Courses))
	for i, raw := range file.Courses {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("course %d: %w", i, err)
		}
		if strings.TrimSpace(rec.Title) == "" {
			return nil, fmt.Errorf("course %d: empty title", i)
		}
		if rec.DurationWeeks < 0 {
			return nil, fmt.Errorf("course %d (%s): negative duration", i, rec.Title)
		}
		courses = append(courses, rec)
	}

	sum := sha256.Sum256(data)
	return &Corpus{
		Courses:     courses,
		Fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

// decodeRecord accepts duration as a JSON number or numeric string; catalogs
// exported from scrapers carry both.
func decodeRecord(raw json.RawMessage) (Record, error) {
	var aux struct {
		Record
		Duration json.Number `json:"duration"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return Record{}, err
	}
	rec := aux.Record
	if aux.Duration != "" {
		f, err := aux.Duration.Float64()
		if err != nil {
			return Record{}, fmt.Errorf("invalid duration %q", aux.Duration)
		}
		rec.DurationWeeks = int(f)
	}
	return rec, nil
}

// Len returns the number of courses.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Courses)
}
