// Package journal keeps a local history of bnr runs in SQLite, including the
// attempts that were cancelled or failed and never reached the run log.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HtoHe/dotfiles/internal/db"
	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shirou/gopsutil/v4/host"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	host TEXT NOT NULL,
	machine TEXT NOT NULL,
	preserve INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	failed_transfer TEXT NOT NULL DEFAULT '',
	lines INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL, -- RFC3339, UTC
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

const timeLayout = time.RFC3339Nano

type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Run is one attempt that got as far as the confirmation gate.
type Run struct {
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	Host           string    `json:"host"`
	Machine        string    `json:"machine"`
	Preserve       bool      `json:"preserve"`
	Status         Status    `json:"status"`
	FailedTransfer string    `json:"failed_transfer,omitempty"`
	Lines          int       `json:"lines"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// row is the stored form of a Run; timestamps are kept as text.
type row struct {
	ID             string `db:"id"`
	Mode           string `db:"mode"`
	Host           string `db:"host"`
	Machine        string `db:"machine"`
	Preserve       bool   `db:"preserve"`
	Status         string `db:"status"`
	FailedTransfer string `db:"failed_transfer"`
	Lines          int    `db:"lines"`
	StartedAt      string `db:"started_at"`
	FinishedAt     string `db:"finished_at"`
}

type Journal struct {
	db      *sqlx.DB
	machine string
}

// Open creates or opens the journal at path. ":memory:" is accepted.
func Open(path string) (*Journal, error) {
	conn, err := db.NewSqliteDB(db.WithPath(path), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &Journal{db: conn, machine: MachineID()}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores run, assigning an ID and the machine when they are unset.
func (j *Journal) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Machine == "" {
		run.Machine = j.machine
	}

	_, err := j.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, mode, host, machine, preserve, status, failed_transfer, lines, started_at, finished_at)
		VALUES (:id, :mode, :host, :machine, :preserve, :status, :failed_transfer, :lines, :started_at, :finished_at)`,
		row{
			ID:             run.ID,
			Mode:           run.Mode,
			Host:           run.Host,
			Machine:        run.Machine,
			Preserve:       run.Preserve,
			Status:         string(run.Status),
			FailedTransfer: run.FailedTransfer,
			Lines:          run.Lines,
			StartedAt:      run.StartedAt.UTC().Format(timeLayout),
			FinishedAt:     run.FinishedAt.UTC().Format(timeLayout),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}

	slog.Debug("journal record", "id", run.ID, "mode", run.Mode, "status", run.Status)
	return nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (j *Journal) List(ctx context.Context, limit int) ([]*Run, error) {
	query := "SELECT * FROM runs ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []row
	if err := j.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*Run, 0, len(rows))
	for _, r := range rows {
		run, err := r.toRun()
		if err != nil {
			slog.Warn("skipping journal row", "id", r.ID, "error", err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r row) toRun() (*Run, error) {
	started, err := time.Parse(timeLayout, r.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	finished, err := time.Parse(timeLayout, r.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse finished_at: %w", err)
	}

	return &Run{
		ID:             r.ID,
		Mode:           r.Mode,
		Host:           r.Host,
		Machine:        r.Machine,
		Preserve:       r.Preserve,
		Status:         Status(r.Status),
		FailedTransfer: r.FailedTransfer,
		Lines:          r.Lines,
		StartedAt:      started,
		FinishedAt:     finished,
	}, nil
}

// MachineID identifies this machine without exposing the raw machine id,
// falling back to the hostname reported by the OS.
func MachineID() string {
	if id, err := machineid.ProtectedID("bnr"); err == nil {
		return id[:12]
	}
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	return "unknown"
}
