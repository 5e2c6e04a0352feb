// Package storage persists similarity index metadata in a SQLite file.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the index metadata database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs pending
// migrations. Pass ":memory:" for an in-memory database (used by tests).
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// The metadata file is written once and then renamed into place, so it
	// must be self-contained: no WAL sidecar files.
	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that have not been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// WriteIndex replaces the stored index description and course mapping in a
// single transaction.
func (s *Store) WriteIndex(ctx context.Context, info IndexInfo, courses []IndexedCourse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning index write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM indexed_courses"); err != nil {
		return fmt.Errorf("clearing indexed courses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_info"); err != nil {
		return fmt.Errorf("clearing index info: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO index_info (id, format, provider, embed_model, dimension, fingerprint, course_count, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		info.Format, info.Provider, info.EmbedModel, info.Dimension, info.Fingerprint,
		info.CourseCount, info.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("writing index info: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO indexed_courses (position, title, level, topics, duration, text_hash)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing course insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range courses {
		topics, err := json.Marshal(c.Topics)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.Position, c.Title, c.Level, string(topics), c.Duration, c.TextHash); err != nil {
			return fmt.Errorf("writing course %d: %w", c.Position, err)
		}
	}

	return tx.Commit()
}

// ReadInfo returns the stored index description, or ErrNotFound.
func (s *Store) ReadInfo(ctx context.Context) (IndexInfo, error) {
	var info IndexInfo
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT format, provider, embed_model, dimension, fingerprint, course_count, created_at
		FROM index_info WHERE id = 1`,
	).Scan(&info.Format, &info.Provider, &info.EmbedModel, &info.Dimension, &info.Fingerprint, &info.CourseCount, &createdAt)
	if err == sql.ErrNoRows {
		return IndexInfo{}, ErrNotFound
	}
	if err != nil {
		return IndexInfo{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return IndexInfo{}, fmt.Errorf("parsing created_at: %w", err)
	}
	info.CreatedAt = t
	return info, nil
}

// ReadCourses returns the course mapping ordered by position.
func (s *Store) ReadCourses(ctx context.Context) ([]IndexedCourse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, title, level, topics, duration, text_hash
		FROM indexed_courses ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IndexedCourse
	for rows.Next() {
		var c IndexedCourse
		var topics string
		if err := rows.Scan(&c.Position, &c.Title, &c.Level, &topics, &c.Duration, &c.TextHash); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(topics), &c.Topics); err != nil {
			return nil, fmt.Errorf("decoding topics for course %d: %w", c.Position, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
