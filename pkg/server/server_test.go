package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudlens/advisor-hub/pkg/ingest"
	"github.com/cloudlens/advisor-hub/pkg/models/api"
	"github.com/cloudlens/advisor-hub/pkg/render"
	"github.com/cloudlens/advisor-hub/pkg/services/report"
	"github.com/cloudlens/advisor-hub/pkg/store/blob"
	"github.com/cloudlens/advisor-hub/pkg/store/duckdb"
	jobstore "github.com/cloudlens/advisor-hub/pkg/store/duckdb/job"
)

const sampleCSV = `Category,Business Impact,Recommendation Text,Subscription ID,Resource Group,Resource Name,Resource Type,Potential Savings,Currency
Cost,High,Resize underutilized virtual machine,sub-001,rg-app,vm-app-01,Virtual Machine,$100,USD
Security,Medium,Rotate exposed access keys,sub-001,rg-app,kv-secrets,Key Vault,$50,USD
`

// setupAPI wires the full stack against in-memory stores. Enqueued jobs run
// synchronously so a submit response is immediately followed by a finished
// pipeline.
func setupAPI(t *testing.T) *httptest.Server {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	jobs, err := jobstore.NewStore(db)
	require.NoError(t, err)

	renderer, err := render.NewRenderer(render.DefaultTemplates())
	require.NoError(t, err)

	blobs := blob.NewMemoryStore()
	worker := report.NewOrchestrator(jobs, blobs, ingest.NewValidator(ingest.DefaultValidatorConfig()), renderer)

	queue := report.EnqueueFunc(func(id string) {
		_ = worker.Process(context.Background(), id)
	})
	service := report.NewService(jobs, blobs, queue, 3)

	router := ConfigureRouter(Config{
		Addr: ":8080",
		Dependencies: Dependencies{
			Reports: service,
			Logger:  zerolog.New(zerolog.NewTestWriter(t)),
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func uploadRequest(t *testing.T, url, owner, filename, formats string, data []byte) *http.Request {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, form.WriteField("formats", formats))
	require.NoError(t, form.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/api/v1/reports", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", form.FormDataContentType())
	if owner != "" {
		req.Header.Set("X-Owner-Ref", owner)
	}
	return req
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	return out
}

func TestWebAPI_SubmitAndDownload(t *testing.T) {
	server := setupAPI(t)

	resp, err := http.DefaultClient.Do(uploadRequest(t, server.URL, "tenant-a", "advisor.csv", "html,pdf", []byte(sampleCSV)))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	submitted := decodeBody[api.SubmitResponse](t, resp)
	assert.False(t, submitted.Duplicate)
	require.NotEmpty(t, submitted.Job.ID)

	resp, err = http.Get(server.URL + "/api/v1/reports/" + submitted.Job.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	job := decodeBody[api.Job](t, resp)
	assert.Equal(t, "completed", job.State)
	require.NotNil(t, job.Statistics)
	assert.Equal(t, 2, job.Statistics.TotalCount)
	assert.Equal(t, "150", job.Statistics.TotalPotentialSavings)
	assert.Len(t, job.Artifacts, 2)

	resp, err = http.Get(server.URL + "/api/v1/reports/" + submitted.Job.ID + "/artifacts/html")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	artifact := decodeBody[api.ArtifactResponse](t, resp)
	assert.Equal(t, "html", artifact.Format)
	assert.Contains(t, artifact.URL, "memory://artifacts/"+submitted.Job.ID)
}

func TestWebAPI_SubmitRequiresOwner(t *testing.T) {
	server := setupAPI(t)

	resp, err := http.DefaultClient.Do(uploadRequest(t, server.URL, "", "advisor.csv", "html", []byte(sampleCSV)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebAPI_SubmitRejectsUnknownFormat(t *testing.T) {
	server := setupAPI(t)

	resp, err := http.DefaultClient.Do(uploadRequest(t, server.URL, "tenant-a", "advisor.csv", "docx", []byte(sampleCSV)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebAPI_DuplicateSubmissionReturnsExistingJob(t *testing.T) {
	server := setupAPI(t)

	resp, err := http.DefaultClient.Do(uploadRequest(t, server.URL, "tenant-a", "advisor.csv", "html", []byte(sampleCSV)))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	first := decodeBody[api.SubmitResponse](t, resp)

	resp, err = http.DefaultClient.Do(uploadRequest(t, server.URL, "tenant-a", "advisor.csv", "html", []byte(sampleCSV)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	second := decodeBody[api.SubmitResponse](t, resp)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Job.ID, second.Job.ID)
}

func TestWebAPI_ValidationFailureSurfacesOnTheJob(t *testing.T) {
	server := setupAPI(t)

	payload := append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 64)...)
	resp, err := http.DefaultClient.Do(uploadRequest(t, server.URL, "tenant-a", "archive.csv", "html", payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	submitted := decodeBody[api.SubmitResponse](t, resp)

	resp, err = http.Get(server.URL + "/api/v1/reports/" + submitted.Job.ID)
	require.NoError(t, err)
	job := decodeBody[api.Job](t, resp)
	assert.Equal(t, "failed", job.State)
	assert.Equal(t, "validation", job.ErrorCategory)

	// Fatal categories are not retryable.
	resp, err = http.Post(server.URL+"/api/v1/reports/"+submitted.Job.ID+"/retry", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWebAPI_ArtifactForUnknownJob(t *testing.T) {
	server := setupAPI(t)

	resp, err := http.Get(server.URL + "/api/v1/reports/missing/artifacts/html")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/v1/reports/missing/artifacts/docx")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
