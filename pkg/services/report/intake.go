// Package report owns the report-job lifecycle: intake with deduplication,
// the pipeline orchestrator, the worker pool executing it and the
// supervisory sweep that resolves stuck jobs.
package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/cloudlens/advisor-hub/pkg/adapters"
	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	"github.com/cloudlens/advisor-hub/pkg/render"
	"github.com/cloudlens/advisor-hub/pkg/store/blob"
	jobstore "github.com/cloudlens/advisor-hub/pkg/store/duckdb/job"
)

var (
	ErrJobNotFound      = errors.New("report job not found")
	ErrArtifactNotReady = errors.New("artifact is not available until the job completes")
	ErrNoFormats        = errors.New("at least one output format is required")
	ErrRetryRefused     = errors.New("job is not eligible for retry")
)

// Enqueuer hands a created job id to whatever executes it. The worker pool
// implements it; tests may pass a no-op.
type Enqueuer interface {
	Enqueue(id string)
}

type EnqueueFunc func(id string)

func (f EnqueueFunc) Enqueue(id string) { f(id) }

type SubmitRequest struct {
	Data       []byte
	Filename   string
	OwnerRef   string
	Formats    []domain.ArtifactFormat
	TemplateID string
}

// Service is the intake/status boundary consumed by the web layer.
type Service struct {
	jobs        jobstore.Store
	blobs       blob.Store
	queue       Enqueuer
	maxAttempts int
	now         func() time.Time
}

func NewService(jobs jobstore.Store, blobs blob.Store, queue Enqueuer, maxAttempts int) *Service {
	if queue == nil {
		queue = EnqueueFunc(func(string) {})
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Service{
		jobs:        jobs,
		blobs:       blobs,
		queue:       queue,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Submit stores the upload, creates a job in pending and enqueues it. A
// resubmission of identical content with the same format set and template
// returns the owner's existing job instead of doing the work again.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.ReportJob, bool, error) {
	formats, err := normalizeFormats(req.Formats)
	if err != nil {
		return nil, false, err
	}
	templateID := req.TemplateID
	if templateID == "" {
		templateID = render.StandardTemplateID
	}

	dedupeKey := dedupeKey(req.Data, formats, templateID)
	uploadKey := "uploads/" + dedupeKey

	if err := s.blobs.Put(ctx, uploadKey, req.Data, "text/csv"); err != nil {
		return nil, false, fmt.Errorf("store upload: %w", err)
	}

	job := &domain.ReportJob{
		ID:        uuid.NewString(),
		OwnerRef:  req.OwnerRef,
		DedupeKey: dedupeKey,
		State:     domain.JobStatePending,
		SourceUpload: domain.UploadRef{
			Key:           uploadKey,
			Filename:      req.Filename,
			ContentLength: int64(len(req.Data)),
		},
		RequestedFormats: formats,
		TemplateID:       templateID,
		CreatedAt:        s.now().UTC(),
	}

	row, err := adapters.MapDomainJobToStore(job)
	if err != nil {
		return nil, false, err
	}
	created, err := s.jobs.Create(ctx, row)
	if err != nil {
		return nil, false, fmt.Errorf("create job: %w", err)
	}
	if !created {
		existing, err := s.jobs.FindByDedupeKey(ctx, req.OwnerRef, dedupeKey)
		if err != nil {
			return nil, false, fmt.Errorf("load deduplicated job: %w", err)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("job vanished after dedupe conflict")
		}
		dup, err := adapters.MapStoreJobToDomain(existing)
		if err != nil {
			return nil, false, err
		}
		zerolog.Ctx(ctx).Info().
			Str("job_id", dup.ID).
			Str("owner_ref", req.OwnerRef).
			Msg("duplicate submission mapped onto existing job")
		return dup, true, nil
	}

	s.queue.Enqueue(job.ID)
	return job, false, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*domain.ReportJob, error) {
	row, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrJobNotFound
	}
	return adapters.MapStoreJobToDomain(row)
}

// ArtifactURL resolves one completed artifact to a download URL. Partial
// artifacts are never exposed.
func (s *Service) ArtifactURL(ctx context.Context, id string, format domain.ArtifactFormat) (string, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	if job.State != domain.JobStateCompleted {
		return "", ErrArtifactNotReady
	}
	key, ok := job.Artifacts[format]
	if !ok {
		return "", ErrArtifactNotReady
	}
	return s.blobs.URL(ctx, key)
}

// Retry re-enqueues a failed job on explicit supervisor decision. The store
// refuses non-retryable categories and exhausted attempt budgets.
func (s *Service) Retry(ctx context.Context, id string) (*domain.ReportJob, error) {
	ok, err := s.jobs.Retry(ctx, id, s.maxAttempts)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.GetJob(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrRetryRefused
	}
	s.queue.Enqueue(id)
	return s.GetJob(ctx, id)
}

func normalizeFormats(formats []domain.ArtifactFormat) ([]domain.ArtifactFormat, error) {
	if len(formats) == 0 {
		return nil, ErrNoFormats
	}
	seen := map[domain.ArtifactFormat]bool{}
	for _, f := range formats {
		format, ok := domain.ParseFormat(string(f))
		if !ok {
			return nil, fmt.Errorf("unsupported output format %q", f)
		}
		seen[format] = true
	}
	out := maps.Keys(seen)
	slices.Sort(out)
	return out, nil
}

// dedupeKey derives the job identity from upload content, the requested
// format set and the template, so retried client requests collapse onto
// one job.
func dedupeKey(data []byte, formats []domain.ArtifactFormat, templateID string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	parts := make([]string, 0, len(formats))
	for _, f := range formats {
		parts = append(parts, string(f))
	}
	h.Write([]byte(strings.Join(parts, ",")))
	h.Write([]byte{0})
	h.Write([]byte(templateID))
	return hex.EncodeToString(h.Sum(nil))
}
