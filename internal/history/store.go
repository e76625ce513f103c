// Package history provides SQLite-backed persistence for finished
// generation sessions.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sitewright-dev/sitewright/internal/generation"
)

// Entry is one archived generation.
type Entry struct {
	ID           string
	BusinessName string
	Status       generation.Status
	Progress     int
	QualityScore float64
	ErrorCode    string
	ErrorMessage string
	Website      string // final website JSON, empty for failed sessions
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Store provides SQLite-backed persistence for archived generations.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and creates tables if they
// don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		business_name TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		quality_score REAL NOT NULL DEFAULT 0,
		error_code TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_completed_at
		ON generations(completed_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Save archives a finished session. Saving the same session twice replaces
// the earlier row.
func (s *Store) Save(sess *generation.Session) error {
	if sess == nil {
		return fmt.Errorf("save generation: nil session")
	}

	var (
		quality   float64
		website   string
		errCode   string
		errDetail string
	)
	if sess.Result != nil {
		quality = sess.Result.QualityScore
		website = string(sess.Result.Website)
	}
	if sess.Failure != nil {
		errCode = sess.Failure.Code
		errDetail = sess.Failure.Message
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO generations
		 (id, business_name, status, progress, quality_score, error_code, error_message, website, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Business.BusinessName, string(sess.Status), sess.Progress,
		quality, errCode, errDetail, website, sess.StartedAt, sess.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}

	return nil
}

// Get retrieves an archived generation by ID. Returns nil when no row exists.
func (s *Store) Get(id string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT id, business_name, status, progress, quality_score, error_code, error_message, website, started_at, completed_at
		 FROM generations WHERE id = ?`,
		id,
	)

	var e Entry
	err := row.Scan(&e.ID, &e.BusinessName, &e.Status, &e.Progress, &e.QualityScore,
		&e.ErrorCode, &e.ErrorMessage, &e.Website, &e.StartedAt, &e.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan generation: %w", err)
	}

	return &e, nil
}

// List returns the most recently completed generations, newest first. The
// website payload is omitted; use Get to read it.
func (s *Store) List(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, business_name, status, progress, quality_score, error_code, error_message, started_at, completed_at
		 FROM generations
		 ORDER BY completed_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BusinessName, &e.Status, &e.Progress, &e.QualityScore,
			&e.ErrorCode, &e.ErrorMessage, &e.StartedAt, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

// PruneByAge deletes generations that completed more than maxAgeDays ago and
// returns how many rows were removed. A non-positive maxAgeDays is a no-op.
func (s *Store) PruneByAge(maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)

	result, err := s.db.Exec(`DELETE FROM generations WHERE completed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune generations: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return removed, nil
}
