// Package journal keeps a SQLite record of runs and per-entity outcomes.
// The journal is informational: the failure list, not the journal, decides
// what a later run retries.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/porticus-lab/go-slicer-pdf/internal/batch"
	"github.com/porticus-lab/go-slicer-pdf/internal/retry"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	output_dir  TEXT NOT NULL,
	stamp       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running'
);
CREATE TABLE IF NOT EXISTS outcomes (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	attempt     INTEGER NOT NULL,
	position    INTEGER NOT NULL,
	entity      TEXT NOT NULL,
	entity_key  TEXT NOT NULL,
	status      TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	artifact    TEXT NOT NULL DEFAULT '',
	diagnostic  TEXT NOT NULL DEFAULT '',
	worker      INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, attempt, position)
);
CREATE INDEX IF NOT EXISTS idx_outcomes_key ON outcomes(entity_key);
`

const timeLayout = time.RFC3339Nano

// ErrUnknownRun is returned for a run id the journal has no row for.
var ErrUnknownRun = errors.New("unknown run")

// Journal is a handle on the journal database. It is safe for concurrent
// use.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun records the start of a run.
func (j *Journal) BeginRun(ctx context.Context, rc retry.RunContext) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, output_dir, stamp) VALUES (?, ?, ?, ?)`,
		rc.RunID, j.now().UTC().Format(timeLayout), rc.OutputDir, rc.Stamp)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rc.RunID, err)
	}
	return nil
}

// RecordAttempt stores every outcome of one attempt in a single
// transaction.
func (j *Journal) RecordAttempt(ctx context.Context, rc retry.RunContext, res batch.AttemptResult) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO outcomes
		(run_id, attempt, position, entity, entity_key, status, kind, artifact, diagnostic, worker, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, o := range res.Outcomes {
		_, err := stmt.ExecContext(ctx, rc.RunID, rc.Attempt, i,
			o.Entity.Name, o.Entity.Key(), string(o.Status), string(o.Kind),
			o.ArtifactPath, o.Diagnostic, o.Worker, o.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("recording outcome for %q: %w", o.Entity.Name, err)
		}
	}
	return tx.Commit()
}

// FinishRun stores the terminal status of a run.
func (j *Journal) FinishRun(ctx context.Context, runID string, status retry.Status) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), j.now().UTC().Format(timeLayout), runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return nil
}

// RunSummary is one row of [Journal.History].
type RunSummary struct {
	ID        string
	Started   time.Time
	Finished  time.Time // zero while running or after a crash
	OutputDir string
	Status    string
	Attempts  int
	Exported  int
	Failed    int // failures in the last attempt
}

// History returns the most recent runs, newest first. A limit of zero or
// less returns all runs.
func (j *Journal) History(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, COALESCE(r.finished_at, ''), r.output_dir, r.status,
			COALESCE((SELECT MAX(attempt) FROM outcomes o WHERE o.run_id = r.id), 0),
			(SELECT COUNT(*) FROM outcomes o WHERE o.run_id = r.id AND o.status = 'success'),
			(SELECT COUNT(*) FROM outcomes o WHERE o.run_id = r.id AND o.status = 'failure'
				AND o.attempt = (SELECT MAX(attempt) FROM outcomes m WHERE m.run_id = r.id))
		FROM runs r
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished string
		if err := rows.Scan(&s.ID, &started, &finished, &s.OutputDir, &s.Status,
			&s.Attempts, &s.Exported, &s.Failed); err != nil {
			return nil, err
		}
		s.Started, _ = time.Parse(timeLayout, started)
		if finished != "" {
			s.Finished, _ = time.Parse(timeLayout, finished)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// EntityOutcome is one recorded outcome.
type EntityOutcome struct {
	RunID      string
	Attempt    int
	Entity     string
	Status     string
	Kind       string
	Artifact   string
	Diagnostic string
}

// Outcomes returns the recorded outcomes of a run in attempt and dispatch
// order.
func (j *Journal) Outcomes(ctx context.Context, runID string) ([]EntityOutcome, error) {
	var exists int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, attempt, entity, status, kind, artifact, diagnostic
		FROM outcomes WHERE run_id = ? ORDER BY attempt, position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntityOutcome
	for rows.Next() {
		var o EntityOutcome
		if err := rows.Scan(&o.RunID, &o.Attempt, &o.Entity, &o.Status, &o.Kind, &o.Artifact, &o.Diagnostic); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
