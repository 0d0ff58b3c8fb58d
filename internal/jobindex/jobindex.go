// Package jobindex maintains the process-wide job_index table: a cheap,
// denormalized summary of every job's metadata for listing and pagination,
// separate from each job's own private store (internal/job).
package jobindex

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one row of job_index (spec.md §6 "Persisted state layout").
type Entry struct {
	JobID          string
	ClientID       string
	Status         string
	BusinessName   string
	BatchNum       int
	DomainsChecked int
	GoodResults    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Index is the process-wide registry backing /api/jobs/list and /api/jobs/recent.
type Index struct {
	db *sql.DB
}

// Open opens (or creates) the index database at dbPath and runs migrations.
func Open(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	_, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS job_index (
			job_id          TEXT PRIMARY KEY,
			client_id       TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			business_name   TEXT NOT NULL DEFAULT '',
			batch_num       INTEGER NOT NULL DEFAULT 0,
			domains_checked INTEGER NOT NULL DEFAULT 0,
			good_results    INTEGER NOT NULL DEFAULT 0,
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_job_index_status     ON job_index(status);
		CREATE INDEX IF NOT EXISTS idx_job_index_created_at ON job_index(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_job_index_client_id  ON job_index(client_id);
	`)
	return err
}

// Upsert inserts or replaces the row for e.JobID. Called after /start and
// after every batch completes, plus by /api/backfill.
func (idx *Index) Upsert(ctx context.Context, e *Entry) error {
	now := time.Now().UTC()
	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO job_index
			(job_id, client_id, status, business_name, batch_num, domains_checked, good_results, created_at, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			client_id = excluded.client_id,
			status = excluded.status,
			business_name = excluded.business_name,
			batch_num = excluded.batch_num,
			domains_checked = excluded.domains_checked,
			good_results = excluded.good_results,
			updated_at = excluded.updated_at
	`, e.JobID, e.ClientID, e.Status, e.BusinessName, e.BatchNum, e.DomainsChecked, e.GoodResults, e.CreatedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("upsert job_index %s: %w", e.JobID, err)
	}
	return nil
}

// List returns a page of entries ordered by created_at DESC, optionally
// filtered by status, plus the total matching count (§6 /api/jobs/list).
func (idx *Index) List(ctx context.Context, limit, offset int, status string) ([]*Entry, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	countQuery := `SELECT COUNT(*) FROM job_index`
	listQuery := `
		SELECT job_id, client_id, status, business_name, batch_num, domains_checked, good_results, created_at, updated_at
		FROM job_index
	`
	args := []interface{}{}
	if status != "" {
		countQuery += ` WHERE status = ?`
		listQuery += ` WHERE status = ?`
		args = append(args, status)
	}
	listQuery += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	var total int
	countArgs := args
	if err := idx.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count job_index: %w", err)
	}

	rows, err := idx.db.QueryContext(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list job_index: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Recent returns the most recently created entries (§6 /api/jobs/recent).
func (idx *Index) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	entries, _, err := idx.List(ctx, limit, 0, "")
	return entries, err
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.JobID, &e.ClientID, &e.Status, &e.BusinessName, &e.BatchNum, &e.DomainsChecked, &e.GoodResults, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job_index row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the underlying database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}
