package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// JobStatus is the audit record of one work item's execution.
// End is nil while the job is running; Error is set only when the job failed.
type JobStatus struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Parameters string     `json:"parameters"`
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// Succeeded reports whether the job has completed without error.
func (j *JobStatus) Succeeded() bool {
	return j.End != nil && j.Error == nil
}

// JobStatusFilter selects job statuses by their own start and end times.
// A row matches when Start >= From (if set) and End is null or End <= To (if set).
type JobStatusFilter struct {
	From *time.Time
	To   *time.Time
}

const jobStatusColumns = `id, name, parameters, started_at, ended_at, error`

// AddJobStatus records the start of a job.
func (s *Store) AddJobStatus(ctx context.Context, name, parameters string) (*JobStatus, error) {
	if name == "" {
		return nil, errors.New("job name is required")
	}
	start := s.now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO job_status(name, parameters, started_at) VALUES(?,?,?)`,
		name, parameters, formatTimestamp(start))
	if err != nil {
		return nil, fmt.Errorf("insert job status: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &JobStatus{
		ID:         id,
		Name:       name,
		Parameters: parameters,
		Start:      start.Truncate(time.Microsecond),
	}, nil
}

// UpdateJobStatus marks a job complete, recording errText when the job failed.
func (s *Store) UpdateJobStatus(ctx context.Context, id int64, errText *string) (*JobStatus, error) {
	end := s.now().UTC()
	res, err := s.q.ExecContext(ctx,
		`UPDATE job_status SET ended_at = ?, error = ? WHERE id = ?`,
		formatTimestamp(end), nullableString(errText), id)
	if err != nil {
		return nil, fmt.Errorf("update job status %d: %w", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("job status %d: %w", id, ErrNotFound)
	}
	return s.GetJobStatus(ctx, id)
}

// GetJobStatus retrieves a job status by id.
func (s *Store) GetJobStatus(ctx context.Context, id int64) (*JobStatus, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+jobStatusColumns+` FROM job_status WHERE id = ?`, id)
	j, err := scanJobStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job status %d: %w", id, ErrNotFound)
	}
	return j, err
}

// ListJobStatuses returns one page of job statuses matching filter, most recent first.
func (s *Store) ListJobStatuses(ctx context.Context, filter JobStatusFilter, page, size int) ([]*JobStatus, error) {
	query := `SELECT ` + jobStatusColumns + ` FROM job_status WHERE 1 = 1`
	var args []any
	if filter.From != nil {
		query += ` AND started_at >= ?`
		args = append(args, formatTimestamp(*filter.From))
	}
	if filter.To != nil {
		query += ` AND (ended_at IS NULL OR ended_at <= ?)`
		args = append(args, formatTimestamp(*filter.To))
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit(size), offset(page, size))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job statuses: %w", err)
	}
	defer rows.Close()

	var out []*JobStatus
	for rows.Next() {
		j, err := scanJobStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJobStatus(r scanner) (*JobStatus, error) {
	var (
		j          JobStatus
		parameters sql.NullString
		start      string
		end        sql.NullString
		errText    sql.NullString
	)
	if err := r.Scan(&j.ID, &j.Name, &parameters, &start, &end, &errText); err != nil {
		return nil, err
	}
	j.Parameters = parameters.String

	t, err := parseTimestamp(start)
	if err != nil {
		return nil, fmt.Errorf("job status %d start: %w", j.ID, err)
	}
	j.Start = t
	if end.Valid {
		t, err := parseTimestamp(end.String)
		if err != nil {
			return nil, fmt.Errorf("job status %d end: %w", j.ID, err)
		}
		j.End = &t
	}
	if errText.Valid {
		msg := errText.String
		j.Error = &msg
	}
	return &j, nil
}
