package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudlens/advisor-hub/pkg/adapters"
	"github.com/cloudlens/advisor-hub/pkg/ingest"
	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	"github.com/cloudlens/advisor-hub/pkg/render"
	"github.com/cloudlens/advisor-hub/pkg/stats"
	"github.com/cloudlens/advisor-hub/pkg/store/blob"
	jobstore "github.com/cloudlens/advisor-hub/pkg/store/duckdb/job"
)

// Orchestrator walks one job through validate, normalize, aggregate and
// render. Every state change is a conditional write, so a job another
// actor already moved (a racing worker, the sweeper) makes this instance
// stop quietly instead of overwriting the winner's progress.
type Orchestrator struct {
	jobs      jobstore.Store
	blobs     blob.Store
	validator *ingest.Validator
	renderer  *render.Renderer
	now       func() time.Time
}

func NewOrchestrator(jobs jobstore.Store, blobs blob.Store, validator *ingest.Validator, renderer *render.Renderer) *Orchestrator {
	return &Orchestrator{
		jobs:      jobs,
		blobs:     blobs,
		validator: validator,
		renderer:  renderer,
		now:       time.Now,
	}
}

func artifactKey(jobID string, format domain.ArtifactFormat) string {
	return fmt.Sprintf("artifacts/%s/report.%s", jobID, format)
}

func artifactContentType(format domain.ArtifactFormat) string {
	if format == domain.FormatPDF {
		return "application/pdf"
	}
	return "text/html; charset=utf-8"
}

// Process claims a pending job and runs the pipeline to completion or
// failure. Losing the claim is not an error.
func (o *Orchestrator) Process(ctx context.Context, jobID string) (err error) {
	log := zerolog.Ctx(ctx).With().Str("job_id", jobID).Logger()

	claimed, err := o.jobs.Claim(ctx, jobID, o.now().UTC())
	if err != nil {
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if !claimed {
		log.Debug().Msg("job already claimed or no longer pending")
		return nil
	}

	state := domain.JobStateValidating
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("state", string(state)).Msg("pipeline step panicked")
			o.fail(ctx, jobID, state, domain.ErrorData)
			err = fmt.Errorf("job %s panicked: %v", jobID, r)
		}
	}()

	row, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if row == nil {
		return fmt.Errorf("job %s vanished after claim", jobID)
	}
	job, err := adapters.MapStoreJobToDomain(row)
	if err != nil {
		o.fail(ctx, jobID, state, domain.ErrorData)
		return err
	}

	data, err := o.blobs.Get(ctx, job.SourceUpload.Key)
	if err != nil {
		wrapped := domain.WrapPipelineError(domain.ErrorResource, "read source upload", err)
		o.fail(ctx, jobID, state, categoryOf(ctx, wrapped))
		return wrapped
	}

	table, err := o.validator.Validate(ingest.Upload{
		Filename: job.SourceUpload.Filename,
		Data:     data,
	})
	if err != nil {
		log.Warn().Err(err).Msg("upload rejected")
		o.fail(ctx, jobID, state, categoryOf(ctx, err))
		return err
	}

	if state, err = o.advance(ctx, jobID, state, domain.JobStateNormalizing); err != nil {
		return o.stopped(log, err)
	}

	// Normalization never fails the batch. Broken rows are dropped and
	// counted; an all-broken file still yields a valid empty report.
	batch := ingest.NormalizeAll(table)
	if len(batch.RowErrors) > 0 {
		log.Info().
			Int("row_errors", len(batch.RowErrors)).
			Int("rows", len(table.Rows)).
			Msg("rows dropped during normalization")
	}

	if state, err = o.advance(ctx, jobID, state, domain.JobStateAggregating); err != nil {
		return o.stopped(log, err)
	}

	statistics := stats.Aggregate(batch.Records)

	if state, err = o.advance(ctx, jobID, state, domain.JobStateRendering); err != nil {
		return o.stopped(log, err)
	}

	artifacts := make(map[domain.ArtifactFormat]string, len(job.RequestedFormats))
	for _, format := range job.RequestedFormats {
		output, err := o.renderer.Render(ctx, batch.Records, &statistics, format, job.TemplateID)
		if err != nil {
			o.fail(ctx, jobID, state, categoryOf(ctx, err))
			return err
		}
		key := artifactKey(jobID, format)
		if err := o.blobs.Put(ctx, key, output, artifactContentType(format)); err != nil {
			wrapped := domain.WrapPipelineError(domain.ErrorResource, "store artifact", err)
			o.fail(ctx, jobID, state, categoryOf(ctx, wrapped))
			return wrapped
		}
		artifacts[format] = key
	}

	statsJSON, err := json.Marshal(adapters.MapDomainStatisticsToAPI(&statistics))
	if err != nil {
		o.fail(ctx, jobID, state, domain.ErrorData)
		return fmt.Errorf("marshal statistics: %w", err)
	}
	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		o.fail(ctx, jobID, state, domain.ErrorData)
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	completed, err := o.jobs.Complete(ctx, jobID, jobstore.CompleteParams{
		Statistics:        statsJSON,
		Artifacts:         artifactsJSON,
		RowErrors:         len(batch.RowErrors),
		Coercions:         batch.Coercions,
		UnknownCategories: batch.UnknownCategories,
	}, o.now().UTC())
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	if !completed {
		log.Warn().Msg("job was resolved elsewhere before completion")
		return nil
	}

	log.Info().
		Int("records", len(batch.Records)).
		Int("artifacts", len(artifacts)).
		Msg("report job completed")
	return nil
}

// errLostJob signals another actor moved the job out from under us.
var errLostJob = errors.New("job state changed by another actor")

func (o *Orchestrator) advance(ctx context.Context, jobID string, from, to domain.JobState) (domain.JobState, error) {
	ok, err := o.jobs.Transition(ctx, jobID, from, to)
	if err != nil {
		return from, fmt.Errorf("transition %s from %s to %s: %w", jobID, from, to, err)
	}
	if !ok {
		return from, errLostJob
	}
	return to, nil
}

func (o *Orchestrator) stopped(log zerolog.Logger, err error) error {
	if errors.Is(err, errLostJob) {
		log.Warn().Msg("yielding job to the actor that took it over")
		return nil
	}
	return err
}

// fail is best effort. A lost race here means the sweeper or a supervisor
// already resolved the job, which is the outcome we wanted anyway.
func (o *Orchestrator) fail(ctx context.Context, jobID string, from domain.JobState, category domain.ErrorCategory) {
	// The job context may already be expired; the write must still land.
	ok, err := o.jobs.Fail(context.WithoutCancel(ctx), jobID, from, category, o.now().UTC())
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("recording job failure")
		return
	}
	if !ok {
		zerolog.Ctx(ctx).Warn().Str("job_id", jobID).Msg("job failure already recorded elsewhere")
	}
}

// categoryOf maps a step error onto the persisted failure category.
func categoryOf(ctx context.Context, err error) domain.ErrorCategory {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorTimeout
	}
	var perr *domain.PipelineError
	if errors.As(err, &perr) {
		return perr.Category
	}
	return domain.ErrorData
}
