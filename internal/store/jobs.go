package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// RecordJob inserts a new crawl job row. The job id must be unique.
func (s *Store) RecordJob(ctx context.Context, job CrawlJob) error {
	if job.JobID == "" || job.SeedURL == "" {
		return &StoreError{Message: "job_id and seed_url are required", Cause: ErrCauseInvalidInput}
	}
	if job.Config == "" {
		job.Config = "{}"
	}

	errorsJSON, err := json.Marshal(job.Metrics.ErrorsByKind)
	if err != nil {
		return &StoreError{Message: fmt.Sprintf("metrics encode failed: %v", err), Cause: ErrCauseInvalidInput}
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT OR IGNORE INTO crawl_jobs
				(job_id, seed_url, config, state, priority, created_at,
				 started_at, ended_at, attempts, error,
				 pages_fetched, bits_emitted, bytes_downloaded, errors_by_kind)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.JobID, job.SeedURL, job.Config, string(job.State),
			int(job.Priority), marshalTime(job.CreatedAt),
			marshalTime(job.StartedAt), marshalTime(job.EndedAt),
			job.Attempts, job.Error, job.Metrics.PagesFetched,
			job.Metrics.BitsEmitted, job.Metrics.BytesDownloaded,
			string(errorsJSON),
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return &StoreError{
				Message: fmt.Sprintf("job %q already exists", job.JobID),
				Cause:   ErrCauseConstraint,
			}
		}
		return nil
	})
}

// UpdateJob rewrites the mutable fields of a job: state, timestamps,
// attempts, error text, and metrics.
func (s *Store) UpdateJob(ctx context.Context, job CrawlJob) error {
	errorsJSON, err := json.Marshal(job.Metrics.ErrorsByKind)
	if err != nil {
		return &StoreError{Message: fmt.Sprintf("metrics encode failed: %v", err), Cause: ErrCauseInvalidInput}
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE crawl_jobs SET
				state = ?, started_at = ?, ended_at = ?, attempts = ?,
				error = ?, pages_fetched = ?, bits_emitted = ?,
				bytes_downloaded = ?, errors_by_kind = ?
			WHERE job_id = ?`,
			string(job.State), marshalTime(job.StartedAt),
			marshalTime(job.EndedAt), job.Attempts, job.Error,
			job.Metrics.PagesFetched, job.Metrics.BitsEmitted,
			job.Metrics.BytesDownloaded, string(errorsJSON), job.JobID,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return &StoreError{Message: "job not found", Cause: ErrCauseNotFound}
		}
		return nil
	})
}

// GetJob loads a job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (CrawlJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, seed_url, config, state, priority, created_at,
		       started_at, ended_at, attempts, error,
		       pages_fetched, bits_emitted, bytes_downloaded, errors_by_kind
		FROM crawl_jobs WHERE job_id = ?`, jobID)

	job, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return CrawlJob{}, &StoreError{Message: "job not found", Cause: ErrCauseNotFound}
	}
	if err != nil {
		return CrawlJob{}, &StoreError{
			Message: fmt.Sprintf("job scan failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	return job, nil
}

// ListJobs returns jobs, optionally filtered by state, newest first.
func (s *Store) ListJobs(ctx context.Context, stateFilter JobState) ([]CrawlJob, error) {
	query := `
		SELECT job_id, seed_url, config, state, priority, created_at,
		       started_at, ended_at, attempts, error,
		       pages_fetched, bits_emitted, bytes_downloaded, errors_by_kind
		FROM crawl_jobs`
	var args []any
	if stateFilter != "" {
		query += ` WHERE state = ?`
		args = append(args, string(stateFilter))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{
			Message: fmt.Sprintf("job query failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	defer rows.Close()

	var jobs []CrawlJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, &StoreError{
				Message: fmt.Sprintf("job scan failed: %v", err),
				Cause:   ErrCauseUnavailable,
			}
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scan func(dest ...any) error) (CrawlJob, error) {
	var job CrawlJob
	var state, createdAt, startedAt, endedAt, errorsJSON string
	var priority int
	err := scan(
		&job.JobID, &job.SeedURL, &job.Config, &state, &priority,
		&createdAt, &startedAt, &endedAt, &job.Attempts, &job.Error,
		&job.Metrics.PagesFetched, &job.Metrics.BitsEmitted,
		&job.Metrics.BytesDownloaded, &errorsJSON,
	)
	if err != nil {
		return CrawlJob{}, err
	}
	job.State = JobState(state)
	job.Priority = JobPriority(priority)
	job.CreatedAt = unmarshalTime(createdAt)
	job.StartedAt = unmarshalTime(startedAt)
	job.EndedAt = unmarshalTime(endedAt)
	if err := json.Unmarshal([]byte(errorsJSON), &job.Metrics.ErrorsByKind); err != nil {
		job.Metrics.ErrorsByKind = nil
	}
	return job, nil
}
