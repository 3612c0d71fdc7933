// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records per-record download outcomes in a SQLite database so
// failures from earlier runs can be listed and retried.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run summarizes one batch invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	InputPath  string
	OutputDir  string
	Downloaded int
	Skipped    int
	Failed     int
}

// Entry is one stored outcome.
type Entry struct {
	RunID      string
	Position   int
	PaperID    int
	DOI        string
	State      types.State
	Kind       types.FailureKind
	Error      string
	URL        string
	Path       string
	Attempts   []types.Attempt
	RecordedAt time.Time
}

// Store is a SQLite-backed run ledger. A Store opened with Open writes into
// a fresh run; reads may target any run.
type Store struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// Open opens or creates the ledger at path and starts a new run for the
// given input table and output directory.
func Open(ctx context.Context, path, inputPath, outputDir string) (*Store, error) {
	s, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s.runID = uuid.NewString()
	_, err = sq.Insert("runs").
		Columns("id", "started_at", "input_path", "output_dir").
		Values(s.runID, s.now().UTC().Format(timeFormat), inputPath, outputDir).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		s.db.Close()
		return nil, fmt.Errorf("starting run: %w", err)
	}
	return s, nil
}

// OpenReadOnly opens an existing ledger for queries without starting a run.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return openDB(path)
}

func openDB(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// RunID returns the id of the run this store writes into, or "" for a
// read-only store.
func (s *Store) RunID() string {
	return s.runID
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			input_path TEXT,
			output_dir TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			paper_id INTEGER NOT NULL,
			doi TEXT,
			state TEXT NOT NULL,
			kind TEXT,
			error TEXT,
			url TEXT,
			path TEXT,
			attempts TEXT,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_paper ON outcomes(paper_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends one outcome to the current run.
func (s *Store) Record(ctx context.Context, out types.Outcome) error {
	if s.runID == "" {
		return fmt.Errorf("ledger opened read-only")
	}
	attempts, err := json.Marshal(out.Attempts)
	if err != nil {
		return fmt.Errorf("encoding attempts: %w", err)
	}

	_, err = sq.Insert("outcomes").
		Columns("run_id", "position", "paper_id", "doi", "state", "kind", "error", "url", "path", "attempts", "recorded_at").
		Values(s.runID, out.Position, out.PaperID, out.DOI, string(out.State), string(out.Kind),
			out.Message(), out.URL, out.Path, string(attempts), s.now().UTC().Format(timeFormat)).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("recording paper %d: %w", out.PaperID, err)
	}
	return nil
}

// Runs returns the most recent runs first, with per-state counts. A
// non-positive limit returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := sq.Select(
		"r.id", "r.started_at", "r.input_path", "r.output_dir",
		"COALESCE(SUM(CASE WHEN o.state = 'done' THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN o.state = 'skipped' THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN o.state = 'failed' THEN 1 ELSE 0 END), 0)",
	).
		From("runs r").
		LeftJoin("outcomes o ON o.run_id = r.id").
		GroupBy("r.id").
		OrderBy("r.started_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started string
		)
		if err := rows.Scan(&r.ID, &started, &r.InputPath, &r.OutputDir, &r.Downloaded, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeFormat, started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Outcomes returns the entries of runID in record order. When onlyFailed is
// set, done and skipped records are left out.
func (s *Store) Outcomes(ctx context.Context, runID string, onlyFailed bool) ([]Entry, error) {
	q := sq.Select("run_id", "position", "paper_id", "doi", "state", "kind", "error", "url", "path", "attempts", "recorded_at").
		From("outcomes").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("rowid")
	if onlyFailed {
		q = q.Where(sq.Eq{"state": string(types.StateFailed)})
	}

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                   Entry
			doi, kind, msg, url, path, attempts sql.NullString
			state, recorded                     string
		)
		if err := rows.Scan(&e.RunID, &e.Position, &e.PaperID, &doi, &state, &kind, &msg, &url, &path, &attempts, &recorded); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		e.DOI = doi.String
		e.State = types.State(state)
		e.Kind = types.FailureKind(kind.String)
		e.Error = msg.String
		e.URL = url.String
		e.Path = path.String
		if attempts.Valid && attempts.String != "" && attempts.String != "null" {
			if err := json.Unmarshal([]byte(attempts.String), &e.Attempts); err != nil {
				return nil, fmt.Errorf("decoding attempts for paper %d: %w", e.PaperID, err)
			}
		}
		e.RecordedAt, _ = time.Parse(timeFormat, recorded)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LatestRunID returns the id of the most recent run, or "" if there are none.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := sq.Select("id").From("runs").OrderBy("started_at DESC").Limit(1).
		RunWith(s.db).QueryRowContext(ctx).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying latest run: %w", err)
	}
	return id, nil
}
