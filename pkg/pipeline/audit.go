package pipeline

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nwiesmann/faktotum/pkg/errors"
)

// StepEvent is the journal record for one processed question.
type StepEvent struct {
	ID         string
	RunID      string
	Document   string
	Number     int
	Agent      string
	Question   string
	Answer     string
	Failed     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// StepFilter narrows List results. Zero values match everything.
type StepFilter struct {
	RunID string
	Agent string
	Limit int
}

// Auditor journals processed questions. Recording is best-effort from
// the processor's perspective, a failed record never fails the run.
type Auditor interface {
	Record(ctx context.Context, event StepEvent) error
}

// SQLiteAudit persists step events in SQLite.
type SQLiteAudit struct {
	db *sql.DB
}

// NewSQLiteAudit creates a SQLite-backed audit journal and ensures its
// schema.
func NewSQLiteAudit(db *sql.DB) (*SQLiteAudit, error) {
	if db == nil {
		return nil, errors.New(errors.CodeInvalidInput, "audit db is nil", nil)
	}
	if err := ensureStepSchema(db); err != nil {
		return nil, errors.New(errors.CodeInternal, "creating audit schema", err)
	}
	return &SQLiteAudit{db: db}, nil
}

// OpenSQLiteAudit opens (or creates) the database file at path and
// returns a journal backed by it.
func OpenSQLiteAudit(path string) (*SQLiteAudit, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "opening audit database", err)
	}
	audit, err := NewSQLiteAudit(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return audit, nil
}

// Record stores a single step event.
func (s *SQLiteAudit) Record(ctx context.Context, event StepEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_steps (
			id, run_id, document, question_number, agent, question, answer, failed, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.RunID,
		event.Document,
		event.Number,
		event.Agent,
		event.Question,
		event.Answer,
		event.Failed,
		normalizeTime(event.StartedAt),
		normalizeTime(event.FinishedAt),
	)
	return err
}

// List returns step events matching the filter, oldest first.
func (s *SQLiteAudit) List(ctx context.Context, filter StepFilter) ([]StepEvent, error) {
	query := `
		SELECT id, run_id, document, question_number, agent, question, answer, failed, started_at, finished_at
		FROM pipeline_steps
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.RunID != "" {
		addFilter("run_id = ?", filter.RunID)
	}
	if filter.Agent != "" {
		addFilter("agent = ?", filter.Agent)
	}
	query += where + " ORDER BY started_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StepEvent
	for rows.Next() {
		var (
			event    StepEvent
			started  sql.NullTime
			finished sql.NullTime
		)
		if err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Document,
			&event.Number,
			&event.Agent,
			&event.Question,
			&event.Answer,
			&event.Failed,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		if started.Valid {
			event.StartedAt = started.Time
		}
		if finished.Valid {
			event.FinishedAt = finished.Time
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Close closes the underlying database handle.
func (s *SQLiteAudit) Close() error {
	return s.db.Close()
}

func ensureStepSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pipeline_steps (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			document TEXT,
			question_number INTEGER NOT NULL,
			agent TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT,
			failed BOOLEAN NOT NULL DEFAULT 0,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_pipeline_steps_run ON pipeline_steps(run_id);
		CREATE INDEX IF NOT EXISTS idx_pipeline_steps_agent ON pipeline_steps(agent);
	`)
	return err
}

func normalizeTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
