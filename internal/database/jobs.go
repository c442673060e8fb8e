package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CreateJob creates a job in pending status and returns it immediately, so
// callers can start polling before any work (or even the first event) exists.
func (db *DB) CreateJob(jobType string, params any) (*Job, error) {
	id := uuid.NewString()

	var paramsJSON *string
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding job params: %w", err)
		}
		s := string(b)
		paramsJSON = &s
	}

	_, err := db.conn.Exec(
		"INSERT INTO jobs (id, type, status, params) VALUES (?, ?, ?, ?)",
		id, jobType, JobPending, paramsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return db.GetJob(id)
}

// StartJob transitions a pending job to running. Starting an already-running
// or terminal job is a no-op.
func (db *DB) StartJob(id string) error {
	_, err := db.conn.Exec(
		"UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?",
		JobRunning, Now(), id, JobPending,
	)
	return err
}

// FinishJob transitions a job to succeeded. If the job is already terminal the
// call is ignored: terminal states are final and must not be re-entered.
func (db *DB) FinishJob(id, message string) error {
	return db.terminate(id, JobSucceeded, message, nil)
}

// FailJob transitions a job to failed with an error detail. Ignored if the job
// is already terminal.
func (db *DB) FailJob(id, message string, errDetail string) error {
	return db.terminate(id, JobFailed, message, &errDetail)
}

func (db *DB) terminate(id, status, message string, errDetail *string) error {
	res, err := db.conn.Exec(
		`UPDATE jobs SET status = ?, message = ?, error = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		status, message, errDetail, Now(), id, JobPending, JobRunning,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already terminal, or unknown job. Distinguish only for the caller's
		// error message; neither case mutates state.
		job, err := db.GetJob(id)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s not found", id)
		}
	}
	return nil
}

// SetJobMessage updates the human-readable progress message for a live job.
func (db *DB) SetJobMessage(id, message string) error {
	_, err := db.conn.Exec(
		"UPDATE jobs SET message = ? WHERE id = ? AND status IN (?, ?)",
		message, id, JobPending, JobRunning,
	)
	return err
}

// SetJobProgress records a monotonic processed-count. Regressions are ignored
// so concurrent workers reporting out of order cannot move the counter back.
func (db *DB) SetJobProgress(id string, processed int) error {
	_, err := db.conn.Exec(
		"UPDATE jobs SET progress = CASE WHEN ? > progress THEN ? ELSE progress END WHERE id = ?",
		processed, processed, id,
	)
	return err
}

// GetJob returns a job by ID, or nil if not found.
func (db *DB) GetJob(id string) (*Job, error) {
	row := db.conn.QueryRow(
		`SELECT id, type, status, params, message, error, progress, created_at, started_at, finished_at
		FROM jobs WHERE id = ?`, id,
	)
	var j Job
	err := row.Scan(&j.ID, &j.Type, &j.Status, &j.Params, &j.Message, &j.Error,
		&j.Progress, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs returns the most recent jobs, newest first.
func (db *DB) ListJobs(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		`SELECT id, type, status, params, message, error, progress, created_at, started_at, finished_at
		FROM jobs ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Type, &j.Status, &j.Params, &j.Message, &j.Error,
			&j.Progress, &j.CreatedAt, &j.StartedAt, &j.FinishedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// appendEventAttempts bounds the retry loop when concurrent appenders race for
// the same sequence number.
const appendEventAttempts = 25

// AppendEvent appends a progress event to a job's log with the next sequence
// number. The UNIQUE(job_id, seq) constraint is the ordering authority: when
// two writers compute the same next seq, one insert fails and retries, so the
// resulting log is gap-free and strictly increasing.
func (db *DB) AppendEvent(jobID, level, message string, meta map[string]any) (int64, error) {
	var metaJSON *string
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return 0, fmt.Errorf("encoding event meta: %w", err)
		}
		s := string(b)
		metaJSON = &s
	}

	for attempt := 0; attempt < appendEventAttempts; attempt++ {
		var seq int64
		err := db.conn.QueryRow(
			`INSERT INTO job_events (job_id, seq, level, message, meta, created_at)
			SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ? FROM job_events WHERE job_id = ?
			RETURNING seq`,
			jobID, level, message, metaJSON, Now(), jobID,
		).Scan(&seq)
		if isUniqueViolation(err) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("appending event to job %s: %w", jobID, err)
		}
		return seq, nil
	}
	return 0, fmt.Errorf("appending event to job %s: gave up after %d contended attempts", jobID, appendEventAttempts)
}

// GetEvents returns the ordered tail of a job's event log strictly after the
// given sequence number. Pass 0 to read from the beginning.
func (db *DB) GetEvents(jobID string, afterSeq int64) ([]Event, error) {
	rows, err := db.conn.Query(
		`SELECT job_id, seq, level, message, meta, created_at
		FROM job_events WHERE job_id = ? AND seq > ? ORDER BY seq ASC`,
		jobID, afterSeq,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.JobID, &e.Seq, &e.Level, &e.Message, &e.Meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
