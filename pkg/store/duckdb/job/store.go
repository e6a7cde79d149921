// Package job persists report jobs in DuckDB. Every state transition is a
// single conditional write keyed on (id, expected prior state); claim
// contention between workers resolves through the same statement that
// records progress, so there is no separate lock to get out of sync.
package job

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	"github.com/cloudlens/advisor-hub/pkg/models/store"
	"github.com/cloudlens/advisor-hub/pkg/store/duckdb"
)

// CompleteParams carries everything the terminal completed write persists.
type CompleteParams struct {
	Statistics        []byte
	Artifacts         []byte
	RowErrors         int
	Coercions         int
	UnknownCategories int
}

type Store interface {
	// Create inserts the job row. It returns false when the owner already
	// has a job for the same dedupe key; the caller then loads that one.
	Create(ctx context.Context, row *store.ReportJob) (bool, error)
	GetByID(ctx context.Context, id string) (*store.ReportJob, error)
	FindByDedupeKey(ctx context.Context, ownerRef, dedupeKey string) (*store.ReportJob, error)

	// Claim moves pending → validating for exactly one caller, stamping
	// started_at and counting the attempt.
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	// Transition advances between intermediate pipeline states.
	Transition(ctx context.Context, id string, from, to domain.JobState) (bool, error)
	// Complete moves rendering → completed with the job's results.
	Complete(ctx context.Context, id string, params CompleteParams, now time.Time) (bool, error)
	// Fail moves the expected state → failed(category).
	Fail(ctx context.Context, id string, from domain.JobState, category domain.ErrorCategory, now time.Time) (bool, error)
	// FailStuck force-fails a job from any non-terminal state.
	FailStuck(ctx context.Context, id string, category domain.ErrorCategory, now time.Time) (bool, error)
	// Retry re-enqueues a failed job with a retryable category while the
	// attempt budget lasts.
	Retry(ctx context.Context, id string, maxAttempts int) (bool, error)

	ListByState(ctx context.Context, state domain.JobState) ([]string, error)
	// ListStuck returns non-terminal jobs whose processing started before
	// the cutoff.
	ListStuck(ctx context.Context, cutoff time.Time) ([]string, error)
}

type jobStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &jobStore{db: db}, nil
}

func (s *jobStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *jobStore) Create(ctx context.Context, row *store.ReportJob) (bool, error) {
	query := `
		INSERT INTO report_jobs (
			id, owner_ref, dedupe_key, state, source_key, source_filename, source_size,
			formats, template_id, attempt_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`

	result, err := s.exec(ctx, query,
		row.ID, row.OwnerRef, row.DedupeKey, row.State,
		row.SourceKey, row.SourceFilename, row.SourceSize,
		row.Formats, row.TemplateID, row.AttemptCount, row.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert job rows affected: %w", err)
	}
	return affected == 1, nil
}

const selectColumns = `
	id, owner_ref, dedupe_key, state, source_key, source_filename, source_size,
	formats, template_id, statistics, artifacts, error_category,
	row_errors, coercions, unknown_categories, attempt_count,
	created_at, started_at, completed_at`

func (s *jobStore) GetByID(ctx context.Context, id string) (*store.ReportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_jobs WHERE id = ?`, selectColumns)
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *jobStore) FindByDedupeKey(ctx context.Context, ownerRef, dedupeKey string) (*store.ReportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_jobs WHERE owner_ref = ? AND dedupe_key = ?`, selectColumns)
	return s.scanOne(s.db.QueryRowContext(ctx, query, ownerRef, dedupeKey))
}

func (s *jobStore) scanOne(row *sql.Row) (*store.ReportJob, error) {
	var (
		job           store.ReportJob
		statistics    sql.NullString
		artifacts     sql.NullString
		errorCategory sql.NullString
		startedAt     sql.NullTime
		completedAt   sql.NullTime
	)
	err := row.Scan(
		&job.ID, &job.OwnerRef, &job.DedupeKey, &job.State,
		&job.SourceKey, &job.SourceFilename, &job.SourceSize,
		&job.Formats, &job.TemplateID, &statistics, &artifacts, &errorCategory,
		&job.RowErrors, &job.Coercions, &job.UnknownCategories, &job.AttemptCount,
		&job.CreatedAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if statistics.Valid {
		job.Statistics = []byte(statistics.String)
	}
	if artifacts.Valid {
		job.Artifacts = []byte(artifacts.String)
	}
	if errorCategory.Valid {
		job.ErrorCategory = &errorCategory.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func (s *jobStore) conditionalUpdate(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := s.exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("conditional update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("conditional update rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *jobStore) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE report_jobs
		SET state = ?, started_at = ?, attempt_count = attempt_count + 1
		WHERE id = ? AND state = ?`,
		domain.JobStateValidating, now, id, domain.JobStatePending)
}

func (s *jobStore) Transition(ctx context.Context, id string, from, to domain.JobState) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE report_jobs
		SET state = ?
		WHERE id = ? AND state = ?`,
		to, id, from)
}

func (s *jobStore) Complete(ctx context.Context, id string, params CompleteParams, now time.Time) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE report_jobs
		SET state = ?, statistics = ?, artifacts = ?,
			row_errors = ?, coercions = ?, unknown_categories = ?,
			error_category = NULL, completed_at = ?
		WHERE id = ? AND state = ?`,
		domain.JobStateCompleted,
		string(params.Statistics), string(params.Artifacts),
		params.RowErrors, params.Coercions, params.UnknownCategories,
		now, id, domain.JobStateRendering)
}

func (s *jobStore) Fail(ctx context.Context, id string, from domain.JobState, category domain.ErrorCategory, now time.Time) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE report_jobs
		SET state = ?, error_category = ?, completed_at = ?
		WHERE id = ? AND state = ?`,
		domain.JobStateFailed, string(category), now, id, from)
}

func (s *jobStore) FailStuck(ctx context.Context, id string, category domain.ErrorCategory, now time.Time) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE report_jobs
		SET state = ?, error_category = ?, completed_at = ?
		WHERE id = ? AND state NOT IN (?, ?)`,
		domain.JobStateFailed, string(category), now, id,
		domain.JobStateCompleted, domain.JobStateFailed)
}

func (s *jobStore) Retry(ctx context.Context, id string, maxAttempts int) (bool, error) {
	return s.conditionalUpdate(ctx, `
		UPDATE report_jobs
		SET state = ?, error_category = NULL, started_at = NULL, completed_at = NULL
		WHERE id = ? AND state = ? AND attempt_count < ? AND error_category IN (?, ?)`,
		domain.JobStatePending, id, domain.JobStateFailed, maxAttempts,
		string(domain.ErrorResource), string(domain.ErrorTimeout))
}

func (s *jobStore) ListByState(ctx context.Context, state domain.JobState) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM report_jobs WHERE state = ? ORDER BY created_at`, state)
	if err != nil {
		return nil, fmt.Errorf("list jobs by state: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (s *jobStore) ListStuck(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM report_jobs
		WHERE state NOT IN (?, ?, ?) AND started_at IS NOT NULL AND started_at < ?
		ORDER BY started_at`,
		domain.JobStateCompleted, domain.JobStateFailed, domain.JobStatePending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stuck jobs: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
