package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
	"github.com/cognicore/kwtune/pkg/kwtune/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Pragmas below are per connection; one connection keeps them in force
	// and serializes batch writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	doc_id TEXT,
	title TEXT,
	keyword TEXT NOT NULL,
	created_at TEXT NOT NULL,
	converged INTEGER NOT NULL DEFAULT 0,
	iterations INTEGER NOT NULL DEFAULT 0,
	input TEXT,
	output TEXT,
	report_json TEXT,
	error TEXT
);

CREATE INDEX IF NOT EXISTS runs_keyword ON runs(keyword);
CREATE INDEX IF NOT EXISTS runs_doc_id ON runs(doc_id);

CREATE TABLE IF NOT EXISTS run_edits (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	edit TEXT NOT NULL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_hashtags (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	tag TEXT NOT NULL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts or replaces a run
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run without id", internalerr.ErrInvalidInput)
	}
	report, err := json.Marshal(r.Report)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO runs (id, doc_id, title, keyword, created_at, converged, iterations, input, output, report_json, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	doc_id=excluded.doc_id,
	title=excluded.title,
	keyword=excluded.keyword,
	created_at=excluded.created_at,
	converged=excluded.converged,
	iterations=excluded.iterations,
	input=excluded.input,
	output=excluded.output,
	report_json=excluded.report_json,
	error=excluded.error;
`
	_, err = tx.ExecContext(ctx, stmt,
		r.ID,
		r.DocID,
		r.Title,
		r.Keyword,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.Converged,
		r.Iterations,
		r.Input,
		r.Output,
		string(report),
		r.Error,
	)
	if err != nil {
		return err
	}

	if err := replaceSeq(ctx, tx, "run_edits", "edit", r.ID, r.Edits); err != nil {
		return err
	}
	if err := replaceSeq(ctx, tx, "run_hashtags", "tag", r.ID, r.Hashtags); err != nil {
		return err
	}
	return tx.Commit()
}

// replaceSeq rewrites the ordered child rows of a run. table and column are
// constants from this file.
func replaceSeq(ctx context.Context, tx *sql.Tx, table, column, runID string, values []string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_id=?`, table), runID); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (run_id, seq, %s) VALUES (?, ?, ?)`, table, column))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, v := range values {
		if _, err := stmt.ExecContext(ctx, runID, i, v); err != nil {
			return err
		}
	}
	return nil
}

const runColumns = `id, doc_id, title, keyword, created_at, converged, iterations, input, output, report_json, error`

// GetRun retrieves a run by ID
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}
	if err := s.loadChildren(ctx, &r); err != nil {
		return store.Run{}, err
	}
	return r, nil
}

// ListRuns returns runs matching f, newest first
func (s *sqliteStore) ListRuns(ctx context.Context, f store.Filter) ([]store.Run, error) {
	var where []string
	var args []interface{}
	if f.Keyword != "" {
		where = append(where, "keyword = ?")
		args = append(args, f.Keyword)
	}
	if f.DocID != "" {
		where = append(where, "doc_id = ?")
		args = append(args, f.DocID)
	}
	if f.OnlyFailed {
		where = append(where, "converged = 0")
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// ULIDs sort by creation time.
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, f.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range results {
		if err := s.loadChildren(ctx, &results[i]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (store.Run, error) {
	var (
		r                                 store.Run
		docID, title, input, output, errs sql.NullString
		created, report                   sql.NullString
	)
	err := row.Scan(&r.ID, &docID, &title, &r.Keyword, &created, &r.Converged, &r.Iterations, &input, &output, &report, &errs)
	if err != nil {
		return store.Run{}, err
	}
	r.DocID, r.Title = docID.String, title.String
	r.Input, r.Output, r.Error = input.String, output.String, errs.String
	if created.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, created.String); err == nil {
			r.CreatedAt = ts
		}
	}
	if report.Valid && report.String != "" {
		if err := json.Unmarshal([]byte(report.String), &r.Report); err != nil {
			return store.Run{}, fmt.Errorf("decode report of run %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func (s *sqliteStore) loadChildren(ctx context.Context, r *store.Run) error {
	var err error
	if r.Edits, err = s.loadStringColumn(ctx, `SELECT edit FROM run_edits WHERE run_id=? ORDER BY seq`, r.ID); err != nil {
		return err
	}
	r.Hashtags, err = s.loadStringColumn(ctx, `SELECT tag FROM run_hashtags WHERE run_id=? ORDER BY seq`, r.ID)
	return err
}

func (s *sqliteStore) loadStringColumn(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
