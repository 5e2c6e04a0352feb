package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// IndexInfo describes a persisted similarity index. Format, Provider,
// EmbedModel and Fingerprint must all match the running configuration for
// the index to be reused.
type IndexInfo struct {
	Format      int
	Provider    string
	EmbedModel  string
	Dimension   int
	Fingerprint string
	CourseCount int
	CreatedAt   time.Time
}

// IndexedCourse maps a vector position back to its course.
type IndexedCourse struct {
	Position int
	Title    string
	Level    string
	Topics   []string
	Duration int
	TextHash string // sha256 of the embedded text block
}
