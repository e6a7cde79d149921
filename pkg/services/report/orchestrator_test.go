package report

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudlens/advisor-hub/pkg/ingest"
	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	"github.com/cloudlens/advisor-hub/pkg/render"
	"github.com/cloudlens/advisor-hub/pkg/store/blob"
	"github.com/cloudlens/advisor-hub/pkg/store/duckdb"
	jobstore "github.com/cloudlens/advisor-hub/pkg/store/duckdb/job"
)

const advisorCSV = `Category,Business Impact,Recommendation Text,Subscription ID,Resource Group,Resource Name,Resource Type,Potential Savings,Currency
Cost,High,Resize underutilized virtual machine,sub-001,rg-app,vm-app-01,Virtual Machine,$100,USD
Security,Medium,=SUM(A1:A5) rotate exposed keys,sub-001,rg-app,kv-secrets,Key Vault,$50,USD
bogus-category,Low,Delete orphaned disk,sub-002,rg-data,disk-tmp,Managed Disk,-$5,USD
`

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *recordingQueue) Enqueue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
}

func (q *recordingQueue) all() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

type pipelineFixture struct {
	jobs    jobstore.Store
	blobs   *blob.MemoryStore
	queue   *recordingQueue
	service *Service
	worker  *Orchestrator
}

func setupPipeline(t *testing.T) *pipelineFixture {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	jobs, err := jobstore.NewStore(db)
	require.NoError(t, err)

	renderer, err := render.NewRenderer(render.DefaultTemplates())
	require.NoError(t, err)

	blobs := blob.NewMemoryStore()
	queue := &recordingQueue{}

	return &pipelineFixture{
		jobs:    jobs,
		blobs:   blobs,
		queue:   queue,
		service: NewService(jobs, blobs, queue, 3),
		worker:  NewOrchestrator(jobs, blobs, ingest.NewValidator(ingest.DefaultValidatorConfig()), renderer),
	}
}

func (f *pipelineFixture) submit(t *testing.T, data []byte, owner string) *domain.ReportJob {
	job, duplicate, err := f.service.Submit(context.Background(), SubmitRequest{
		Data:     data,
		Filename: "advisor.csv",
		OwnerRef: owner,
		Formats:  []domain.ArtifactFormat{domain.FormatHTML, domain.FormatPDF},
	})
	require.NoError(t, err)
	require.False(t, duplicate)
	return job
}

func TestPipeline_EndToEnd(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	job := f.submit(t, []byte(advisorCSV), "tenant-a")
	assert.Equal(t, domain.JobStatePending, job.State)
	assert.Equal(t, []string{job.ID}, f.queue.all())

	require.NoError(t, f.worker.Process(ctx, job.ID))

	done, err := f.service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, done.State)
	assert.Equal(t, 1, done.AttemptCount)
	assert.Nil(t, done.ErrorCategory)
	require.NotNil(t, done.CompletedAt)

	stats := done.Statistics
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.TotalCount)
	assert.Equal(t, "150", stats.TotalPotentialSavings.String())
	assert.Equal(t, "50", stats.AverageSavingsPerRecord.String())
	assert.Equal(t, "USD", stats.Currency)
	assert.Equal(t, 1, stats.CategoryDistribution[domain.CategoryCost])
	assert.Equal(t, 1, stats.CategoryDistribution[domain.CategorySecurity])
	assert.Equal(t, 1, stats.CategoryDistribution[domain.CategoryOther])
	assert.Equal(t, 0, stats.CategoryDistribution[domain.CategoryReliability])
	assert.Equal(t, 1, stats.ImpactDistribution[domain.ImpactHigh])
	assert.Equal(t, 1, stats.ImpactDistribution[domain.ImpactMedium])
	assert.Equal(t, 1, stats.ImpactDistribution[domain.ImpactLow])

	// The bogus category and the negative savings are counted, not fatal.
	assert.Equal(t, domain.NormalizationWarnings{Coercions: 1, UnknownCategories: 1}, done.Warnings)

	require.Len(t, done.Artifacts, 2)
	html, err := f.blobs.Get(ctx, done.Artifacts[domain.FormatHTML])
	require.NoError(t, err)
	assert.Contains(t, string(html), "vm-app-01")
	// The formula cell survives only in its neutralized, escaped form.
	assert.Contains(t, string(html), "&#39;=SUM(A1:A5)")
	assert.NotContains(t, string(html), ">=SUM(A1:A5)")

	pdf, err := f.blobs.Get(ctx, done.Artifacts[domain.FormatPDF])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	url, err := f.service.ArtifactURL(ctx, job.ID, domain.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "memory://"+done.Artifacts[domain.FormatHTML], url)
}

func TestSubmit_DeduplicatesPerOwner(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	first := f.submit(t, []byte(advisorCSV), "tenant-a")

	again, duplicate, err := f.service.Submit(ctx, SubmitRequest{
		Data:     []byte(advisorCSV),
		Filename: "advisor.csv",
		OwnerRef: "tenant-a",
		Formats:  []domain.ArtifactFormat{domain.FormatHTML, domain.FormatPDF},
	})
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, []string{first.ID}, f.queue.all(), "duplicate must not enqueue work")
	assert.Equal(t, 1, f.blobs.Len())

	other := f.submit(t, []byte(advisorCSV), "tenant-b")
	assert.NotEqual(t, first.ID, other.ID, "tenants never share jobs")
}

func TestSubmit_DifferentFormatsAreDifferentJobs(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	first := f.submit(t, []byte(advisorCSV), "tenant-a")

	htmlOnly, duplicate, err := f.service.Submit(ctx, SubmitRequest{
		Data:     []byte(advisorCSV),
		Filename: "advisor.csv",
		OwnerRef: "tenant-a",
		Formats:  []domain.ArtifactFormat{domain.FormatHTML},
	})
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.NotEqual(t, first.ID, htmlOnly.ID)
}

func TestSubmit_RequiresFormats(t *testing.T) {
	f := setupPipeline(t)

	_, _, err := f.service.Submit(context.Background(), SubmitRequest{
		Data:     []byte(advisorCSV),
		Filename: "advisor.csv",
		OwnerRef: "tenant-a",
	})
	assert.ErrorIs(t, err, ErrNoFormats)
}

func TestProcess_ValidationFailureIsFatal(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	// Zip magic bytes behind a .csv name.
	payload := append([]byte{0x50, 0x4B, 0x03, 0x04}, bytes.Repeat([]byte{0}, 64)...)
	job := f.submit(t, payload, "tenant-a")

	err := f.worker.Process(ctx, job.ID)
	require.Error(t, err)

	failed, err := f.service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, failed.State)
	require.NotNil(t, failed.ErrorCategory)
	assert.Equal(t, domain.ErrorValidation, *failed.ErrorCategory)

	_, err = f.service.Retry(ctx, job.ID)
	assert.ErrorIs(t, err, ErrRetryRefused, "validation failures never retry")
}

func TestProcess_RowErrorsDoNotFailTheJob(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	csv := strings.Replace(advisorCSV,
		"bogus-category,Low,Delete orphaned disk,sub-002,rg-data,disk-tmp,Managed Disk,-$5,USD",
		",,,,,,,,", 1)
	job := f.submit(t, []byte(csv), "tenant-a")

	require.NoError(t, f.worker.Process(ctx, job.ID))

	done, err := f.service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, done.State)
	assert.Equal(t, 1, done.Warnings.RowErrors)
	assert.Equal(t, 2, done.Statistics.TotalCount)
}

func TestProcess_ConcurrentWorkersClaimOnce(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	job := f.submit(t, []byte(advisorCSV), "tenant-a")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = f.worker.Process(ctx, job.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	done, err := f.service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, done.State)
	assert.Equal(t, 1, done.AttemptCount, "exactly one worker may claim the job")
}

func TestSweeper_FailsStuckJobThenRetryRecovers(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	job := f.submit(t, []byte(advisorCSV), "tenant-a")

	// Simulate a worker that claimed the job and then died mid-pipeline.
	claimed, err := f.jobs.Claim(ctx, job.ID, now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)

	sweeper := NewSweeper(f.jobs, f.queue, zerolog.Nop(), SweeperConfig{
		Interval:    time.Second,
		JobDeadline: 2 * time.Minute,
		GraceFactor: 2,
	})
	sweeper.now = func() time.Time { return now }
	sweeper.Sweep(ctx)

	failed, err := f.service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, failed.State)
	require.NotNil(t, failed.ErrorCategory)
	assert.Equal(t, domain.ErrorTimeout, *failed.ErrorCategory)

	retried, err := f.service.Retry(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatePending, retried.State)
	assert.Nil(t, retried.ErrorCategory)

	require.NoError(t, f.worker.Process(ctx, job.ID))
	done, err := f.service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, done.State)
	assert.Equal(t, 2, done.AttemptCount)
}

func TestSweeper_RequeuesPendingJobs(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	job := f.submit(t, []byte(advisorCSV), "tenant-a")

	sweeper := NewSweeper(f.jobs, f.queue, zerolog.Nop(), DefaultSweeperConfig())
	sweeper.Sweep(ctx)

	assert.Equal(t, []string{job.ID, job.ID}, f.queue.all(), "submit and sweep both enqueue the pending job")

	fresh, err := f.service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatePending, fresh.State, "sweeper never touches a job inside its grace window")
}

func TestArtifactURL_NotReadyBeforeCompletion(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	job := f.submit(t, []byte(advisorCSV), "tenant-a")

	_, err := f.service.ArtifactURL(ctx, job.ID, domain.FormatHTML)
	assert.ErrorIs(t, err, ErrArtifactNotReady)

	_, err = f.service.ArtifactURL(ctx, "missing", domain.FormatHTML)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPool_ProcessesSubmittedJobs(t *testing.T) {
	f := setupPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(f.worker, f.jobs, zerolog.Nop(), PoolConfig{
		Workers:     2,
		QueueSize:   8,
		JobDeadline: 30 * time.Second,
	})
	require.NoError(t, pool.Start(ctx))

	service := NewService(f.jobs, f.blobs, pool, 3)
	job, duplicate, err := service.Submit(ctx, SubmitRequest{
		Data:     []byte(advisorCSV),
		Filename: "advisor.csv",
		OwnerRef: "tenant-a",
		Formats:  []domain.ArtifactFormat{domain.FormatHTML},
	})
	require.NoError(t, err)
	require.False(t, duplicate)

	assert.Eventually(t, func() bool {
		got, err := service.GetJob(ctx, job.ID)
		return err == nil && got.State == domain.JobStateCompleted
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	pool.Wait()
}
