// Package journal keeps a history of sync runs in SQLite.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// FileName is the journal database inside the heap's private directory.
const FileName = "journal.db"

// timeFormat is fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded sync invocation.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	State      string    `json:"state"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Upserts    int       `json:"upserts"`
	Deletes    int       `json:"deletes"`
	Skipped    int       `json:"skipped"`
	Generation uint64    `json:"generation"`
	Error      string    `json:"error,omitempty"`
}

// Failed reports whether the run ended with an error.
func (r Run) Failed() bool {
	return r.Error != ""
}

// Journal records sync runs.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return newJournal(db)
}

// OpenMem opens a journal that lives only in memory.
func OpenMem() (*Journal, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newJournal(db)
}

func newJournal(db *sql.DB) (*Journal, error) {
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Record stores run, replacing an earlier record with the same ID.
func (j *Journal) Record(run Run) error {
	if run.ID == "" {
		return errors.New("journal: run ID is required")
	}
	_, err := sq.Insert("sync_runs").
		Columns(
			"id", "started_at", "finished_at", "state",
			"from_rev", "to_rev", "upserts", "deletes", "skipped",
			"generation", "error",
		).
		Values(
			run.ID,
			run.StartedAt.UTC().Format(timeFormat),
			run.FinishedAt.UTC().Format(timeFormat),
			run.State,
			run.From,
			run.To,
			run.Upserts,
			run.Deletes,
			run.Skipped,
			int64(run.Generation),
			run.Error,
		).
		Options("OR REPLACE").
		RunWith(j.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to record sync run %s: %w", run.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(limit int) ([]Run, error) {
	query := sq.Select(
		"id", "started_at", "finished_at", "state",
		"from_rev", "to_rev", "upserts", "deletes", "skipped",
		"generation", "error",
	).
		From("sync_runs").
		OrderBy("started_at DESC", "id")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := query.RunWith(j.db).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
			generation        int64
		)
		if err := rows.Scan(
			&run.ID, &started, &finished, &run.State,
			&run.From, &run.To, &run.Upserts, &run.Deletes, &run.Skipped,
			&generation, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("failed to parse started_at of %s: %w", run.ID, err)
		}
		if run.FinishedAt, err = time.Parse(timeFormat, finished); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at of %s: %w", run.ID, err)
		}
		run.Generation = uint64(generation)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sync runs: %w", err)
	}
	return runs, nil
}

// Count returns the number of recorded runs.
func (j *Journal) Count() (int, error) {
	var n int
	err := sq.Select("COUNT(*)").
		From("sync_runs").
		RunWith(j.db).
		QueryRow().
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync runs: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep runs.
func (j *Journal) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	sub := sq.Select("id").
		From("sync_runs").
		OrderBy("started_at DESC", "id").
		Limit(uint64(keep))
	subSQL, args, err := sub.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build prune query: %w", err)
	}

	res, err := sq.Delete("sync_runs").
		Where(sq.Expr("id NOT IN ("+subSQL+")", args...)).
		RunWith(j.db).
		Exec()
	if err != nil {
		return 0, fmt.Errorf("failed to prune sync runs: %w", err)
	}
	return res.RowsAffected()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
