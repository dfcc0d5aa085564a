package report

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed-width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunSummary is one row of the run history.
type RunSummary struct {
	ID       string
	Title    string
	Started  time.Time
	Duration time.Duration
	Passed   bool
	Steps    int
	Failed   int
}

// SQLiteStore keeps the run history in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteStore opens (creating if needed) the history database at dbPath.
// ":memory:" opens a private in-memory database.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save records a run and its steps, replacing any run with the same ID.
func (s *SQLiteStore) Save(result *RunResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save run %s: %w", result.ID, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM steps WHERE run_id = ?`, result.ID); err != nil {
		return fmt.Errorf("save run %s: %w", result.ID, err)
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO runs (id, title, started_at, duration_ns, passed)
		VALUES (?, ?, ?, ?, ?)`,
		result.ID, result.Title, result.Started.UTC().Format(timeLayout),
		int64(result.Duration), result.Passed)
	if err != nil {
		return fmt.Errorf("save run %s: %w", result.ID, err)
	}

	for i, st := range result.Steps {
		argv, err := json.Marshal(st.Argv)
		if err != nil {
			return fmt.Errorf("marshal argv for step %s: %w", st.Name, err)
		}
		_, err = tx.Exec(`INSERT INTO steps
			(run_id, position, name, description, argv, status, exit_code, stdout, stderr, error, truncated, duration_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ID, i, st.Name, st.Description, string(argv), string(st.Status), st.ExitCode,
			st.Stdout, st.Stderr, st.Error, st.Truncated, int64(st.Duration))
		if err != nil {
			return fmt.Errorf("save step %s of run %s: %w", st.Name, result.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run %s: %w", result.ID, err)
	}
	return nil
}

// Load reads a run and its steps.
func (s *SQLiteStore) Load(runID string) (*RunResult, error) {
	var (
		started    string
		durationNS int64
		r          = &RunResult{ID: runID}
	)
	err := s.db.QueryRow(`SELECT title, started_at, duration_ns, passed FROM runs WHERE id = ?`, runID).
		Scan(&r.Title, &started, &durationNS, &r.Passed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if r.Started, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("load run %s: bad started_at: %w", runID, err)
	}
	r.Duration = time.Duration(durationNS)

	rows, err := s.db.Query(`SELECT name, description, argv, status, exit_code, stdout, stderr, error, truncated, duration_ns
		FROM steps WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("load steps of run %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st     StepRecord
			argv   string
			status string
			ns     int64
		)
		if err := rows.Scan(&st.Name, &st.Description, &argv, &status, &st.ExitCode,
			&st.Stdout, &st.Stderr, &st.Error, &st.Truncated, &ns); err != nil {
			return nil, fmt.Errorf("scan step of run %s: %w", runID, err)
		}
		if err := json.Unmarshal([]byte(argv), &st.Argv); err != nil {
			return nil, fmt.Errorf("unmarshal argv of step %s: %w", st.Name, err)
		}
		st.Status = Status(status)
		st.Duration = time.Duration(ns)
		r.Steps = append(r.Steps, st)
	}
	return r, rows.Err()
}

// List returns the most recent runs, newest first.
func (s *SQLiteStore) List(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT r.id, r.title, r.started_at, r.duration_ns, r.passed,
			COUNT(st.position),
			COALESCE(SUM(CASE WHEN st.status != 'pass' THEN 1 ELSE 0 END), 0)
		FROM runs r LEFT JOIN steps st ON st.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs      RunSummary
			started string
			ns      int64
			err     error
		)
		if err := rows.Scan(&rs.ID, &rs.Title, &started, &ns, &rs.Passed, &rs.Steps, &rs.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if rs.Started, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("list runs: run %s has bad started_at: %w", rs.ID, err)
		}
		rs.Duration = time.Duration(ns)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *SQLiteStore) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.Exec(`DELETE FROM runs WHERE id NOT IN
		(SELECT id FROM runs ORDER BY started_at DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM steps WHERE run_id NOT IN (SELECT id FROM runs)`); err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
