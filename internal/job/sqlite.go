package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DBPath returns the per-job SQLite file path within dataDir (§4
// "<data_dir>/<job_id>.db").
func DBPath(dataDir, jobID string) string {
	return filepath.Join(dataDir, jobID+".db")
}

// SQLiteStore is a SQLite-backed implementation of Store, private to one job.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the per-job SQLite database at dbPath
// and runs migrations (§4: "<data_dir>/<job_id>.db").
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err = s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS search_job (
			id                  TEXT PRIMARY KEY,
			client_id           TEXT NOT NULL DEFAULT '',
			status              TEXT NOT NULL DEFAULT 'pending',
			batch_num           INTEGER NOT NULL DEFAULT 0,
			quiz_responses      TEXT NOT NULL DEFAULT '{}',
			followup_responses  TEXT,
			driver_provider     TEXT NOT NULL DEFAULT '',
			swarm_provider      TEXT NOT NULL DEFAULT '',
			total_input_tokens  INTEGER NOT NULL DEFAULT 0,
			total_output_tokens INTEGER NOT NULL DEFAULT 0,
			error               TEXT NOT NULL DEFAULT '',
			created_at          DATETIME NOT NULL,
			updated_at          DATETIME NOT NULL,
			wake_at             DATETIME
		);

		CREATE TABLE IF NOT EXISTS domain_results (
			domain          TEXT PRIMARY KEY,
			tld             TEXT NOT NULL,
			batch_num       INTEGER NOT NULL,
			status          TEXT NOT NULL,
			price_cents     INTEGER,
			score           REAL NOT NULL,
			flags           TEXT NOT NULL DEFAULT '[]',
			evaluation_data TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_domain_results_status    ON domain_results(status);
		CREATE INDEX IF NOT EXISTS idx_domain_results_batch_num ON domain_results(batch_num);

		CREATE TABLE IF NOT EXISTS search_artifacts (
			batch_num     INTEGER NOT NULL,
			artifact_type TEXT NOT NULL,
			content       TEXT NOT NULL,
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_search_artifacts_type ON search_artifacts(artifact_type);
	`)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, j *Job) error {
	quizJSON, err := json.Marshal(j.Quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz_responses: %w", err)
	}
	now := j.CreatedAt.UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_job
			(id, client_id, status, batch_num, quiz_responses, driver_provider, swarm_provider, created_at, updated_at)
		VALUES
			(?, ?, ?, 0, ?, ?, ?, ?, ?)
	`, j.ID, j.ClientID, j.Status, string(quizJSON), j.DriverProvider, j.SwarmProvider, now, now)
	if err != nil {
		return fmt.Errorf("create search_job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, status, batch_num, quiz_responses, followup_responses,
		       driver_provider, swarm_provider, total_input_tokens, total_output_tokens,
		       error, created_at, updated_at, wake_at
		FROM search_job LIMIT 1
	`)

	j := &Job{}
	var quizJSON string
	var followupJSON sql.NullString
	var wakeAt sql.NullTime

	err := row.Scan(
		&j.ID, &j.ClientID, &j.Status, &j.BatchNum, &quizJSON, &followupJSON,
		&j.DriverProvider, &j.SwarmProvider, &j.TotalInputTokens, &j.TotalOutputTokens,
		&j.Error, &j.CreatedAt, &j.UpdatedAt, &wakeAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get search_job: %w", err)
	}

	if err := json.Unmarshal([]byte(quizJSON), &j.Quiz); err != nil {
		return nil, fmt.Errorf("unmarshal quiz_responses: %w", err)
	}
	if followupJSON.Valid {
		var f FollowupResponses
		if err := json.Unmarshal([]byte(followupJSON.String), &f); err != nil {
			return nil, fmt.Errorf("unmarshal followup_responses: %w", err)
		}
		j.Followup = f
	}
	if wakeAt.Valid {
		t := wakeAt.Time
		j.WakeAt = &t
	}
	return j, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, status Status, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE search_job SET status = ?, error = ?, updated_at = ?
	`, status, errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update search_job status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AdvanceBatch(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin advance batch: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE search_job SET batch_num = batch_num + 1, updated_at = ?`, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("advance batch_num: %w", err)
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT batch_num FROM search_job LIMIT 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("read advanced batch_num: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit advance batch: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) RecordWakeAt(ctx context.Context, at *time.Time) error {
	var v interface{}
	if at != nil {
		v = at.UTC()
	}
	_, err := s.db.ExecContext(ctx, `UPDATE search_job SET wake_at = ?, updated_at = ?`, v, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record wake_at: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddTokens(ctx context.Context, input, output int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE search_job
		SET total_input_tokens = total_input_tokens + ?,
		    total_output_tokens = total_output_tokens + ?,
		    updated_at = ?
	`, input, output, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add tokens: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetFollowup(ctx context.Context, responses FollowupResponses) error {
	b, err := json.Marshal(responses)
	if err != nil {
		return fmt.Errorf("marshal followup_responses: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE search_job SET followup_responses = ?, updated_at = ?`, string(b), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set followup_responses: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertDomainResult(ctx context.Context, r *DomainResult) error {
	flagsJSON, err := json.Marshal(r.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	domain := strings.ToLower(r.Domain)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO domain_results
			(domain, tld, batch_num, status, price_cents, score, flags, evaluation_data)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			tld = excluded.tld,
			batch_num = excluded.batch_num,
			status = excluded.status,
			price_cents = excluded.price_cents,
			score = excluded.score,
			flags = excluded.flags,
			evaluation_data = excluded.evaluation_data
	`, domain, r.TLD, r.BatchNum, r.Status, r.PriceCents, r.Score, string(flagsJSON), nullableJSON(r.EvaluationData))
	if err != nil {
		return fmt.Errorf("insert domain_result %s: %w", domain, err)
	}
	return nil
}

func (s *SQLiteStore) ListDomainResults(ctx context.Context) ([]*DomainResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, tld, batch_num, status, price_cents, score, flags, evaluation_data
		FROM domain_results
	`)
	if err != nil {
		return nil, fmt.Errorf("list domain_results: %w", err)
	}
	defer rows.Close()
	return scanDomainResults(rows)
}

func (s *SQLiteStore) ListAvailableDomains(ctx context.Context, limit int) ([]*DomainResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, tld, batch_num, status, price_cents, score, flags, evaluation_data
		FROM domain_results
		WHERE status = ?
		ORDER BY score DESC, (price_cents IS NULL) ASC, price_cents ASC
		LIMIT ?
	`, DomainAvailable, limit)
	if err != nil {
		return nil, fmt.Errorf("list available domains: %w", err)
	}
	defer rows.Close()
	return scanDomainResults(rows)
}

func (s *SQLiteStore) CheckedDomains(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM domain_results`)
	if err != nil {
		return nil, fmt.Errorf("list checked domains: %w", err)
	}
	defer rows.Close()

	checked := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan checked domain: %w", err)
		}
		checked[d] = true
	}
	return checked, rows.Err()
}

func scanDomainResults(rows *sql.Rows) ([]*DomainResult, error) {
	var results []*DomainResult
	for rows.Next() {
		r := &DomainResult{}
		var flagsJSON string
		var evaluationData sql.NullString
		if err := rows.Scan(&r.Domain, &r.TLD, &r.BatchNum, &r.Status, &r.PriceCents, &r.Score, &flagsJSON, &evaluationData); err != nil {
			return nil, fmt.Errorf("scan domain_result: %w", err)
		}
		if err := json.Unmarshal([]byte(flagsJSON), &r.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags: %w", err)
		}
		if evaluationData.Valid {
			r.EvaluationData = json.RawMessage(evaluationData.String)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SQLiteStore) InsertArtifact(ctx context.Context, a *SearchArtifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_artifacts (batch_num, artifact_type, content, created_at)
		VALUES (?, ?, ?, ?)
	`, a.BatchNum, a.ArtifactType, a.Content, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert search_artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestArtifact(ctx context.Context, t ArtifactType) (*SearchArtifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT batch_num, artifact_type, content, created_at
		FROM search_artifacts
		WHERE artifact_type = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, t)

	a := &SearchArtifact{}
	err := row.Scan(&a.BatchNum, &a.ArtifactType, &a.Content, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest artifact %s: %w", t, err)
	}
	return a, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nullableJSON returns nil if b is empty, otherwise the raw bytes as a string.
func nullableJSON(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
