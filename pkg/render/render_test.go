package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	"github.com/cloudlens/advisor-hub/pkg/stats"
)

func testRecords() []domain.Recommendation {
	return []domain.Recommendation{
		{
			Category:         domain.CategoryCost,
			BusinessImpact:   domain.ImpactHigh,
			PotentialSavings: decimal.RequireFromString("120.50"),
			Currency:         "USD",
			ResourceName:     "vm-prod-01",
			ResourceGroup:    "rg-prod",
			ResourceType:     "virtualMachines",
			Recommendation:   "Shut down idle VM",
		},
		{
			Category:         domain.CategorySecurity,
			BusinessImpact:   domain.ImpactMedium,
			PotentialSavings: decimal.Zero,
			Currency:         "USD",
			ResourceName:     "kv-prod",
			ResourceGroup:    "rg-prod",
			ResourceType:     "vaults",
			Recommendation:   "'=HYPERLINK sanitized text",
		},
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(DefaultTemplates())
	require.NoError(t, err)
	return r
}

func requireCategory(t *testing.T, err error, category domain.ErrorCategory) {
	t.Helper()
	var pe *domain.PipelineError
	require.True(t, errors.As(err, &pe), "expected pipeline error, got %v", err)
	assert.Equal(t, category, pe.Category)
}

func TestRender_HTML(t *testing.T) {
	records := testRecords()
	statistics := stats.Aggregate(records)

	out, err := newTestRenderer(t).Render(context.Background(), records, &statistics,
		domain.FormatHTML, StandardTemplateID)
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "Cloud Optimization Report")
	assert.Contains(t, html, "USD 120.50")
	assert.Contains(t, html, "vm-prod-01")
	// Chart payloads are the persisted aggregates, not recomputed sums.
	assert.Contains(t, html, `"cost":1`)
	assert.Contains(t, html, `"security":1`)
	// Sanitized text flows through escaped, quote prefix intact.
	assert.Contains(t, html, "&#39;=HYPERLINK sanitized text")
}

func TestRender_HTMLEmptyDataset(t *testing.T) {
	statistics := stats.Aggregate(nil)

	out, err := newTestRenderer(t).Render(context.Background(), nil, &statistics,
		domain.FormatHTML, StandardTemplateID)
	require.NoError(t, err)

	html := string(out)
	// Zero data renders as a complete report, not a missing one.
	assert.Contains(t, html, "No savings opportunities identified")
	assert.Contains(t, html, `"reliability":0`)
}

func TestRender_PDF(t *testing.T) {
	records := testRecords()
	statistics := stats.Aggregate(records)

	out, err := newTestRenderer(t).Render(context.Background(), records, &statistics,
		domain.FormatPDF, StandardTemplateID)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRender_UnknownTemplate(t *testing.T) {
	records := testRecords()
	statistics := stats.Aggregate(records)

	_, err := newTestRenderer(t).Render(context.Background(), records, &statistics,
		domain.FormatHTML, "no-such-template")
	requireCategory(t, err, domain.ErrorTemplate)
}

func TestRender_BrokenTemplateFailsConstruction(t *testing.T) {
	_, err := NewRenderer([]Template{{
		ID:         "broken",
		Title:      "Broken",
		HTMLSource: "{% for x in %}",
	}})
	requireCategory(t, err, domain.ErrorTemplate)
}

func TestRender_MissingStatisticsIsDataError(t *testing.T) {
	_, err := newTestRenderer(t).Render(context.Background(), testRecords(), nil,
		domain.FormatHTML, StandardTemplateID)
	requireCategory(t, err, domain.ErrorData)
}

func TestRender_CountMismatchIsDataError(t *testing.T) {
	statistics := stats.Aggregate(testRecords())
	statistics.TotalCount = 99

	_, err := newTestRenderer(t).Render(context.Background(), testRecords(), &statistics,
		domain.FormatHTML, StandardTemplateID)
	requireCategory(t, err, domain.ErrorData)
}

func TestRender_ExpiredContextIsResourceError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	records := testRecords()
	statistics := stats.Aggregate(records)
	_, err := newTestRenderer(t).Render(ctx, records, &statistics,
		domain.FormatHTML, StandardTemplateID)
	requireCategory(t, err, domain.ErrorResource)
}

func TestRender_FormatsAgreeOnNumbers(t *testing.T) {
	records := testRecords()
	statistics := stats.Aggregate(records)
	r := newTestRenderer(t)
	r.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	html, err := r.Render(context.Background(), records, &statistics,
		domain.FormatHTML, StandardTemplateID)
	require.NoError(t, err)
	pdf, err := r.Render(context.Background(), records, &statistics,
		domain.FormatPDF, StandardTemplateID)
	require.NoError(t, err)

	assert.Contains(t, string(html), "120.50")
	assert.NotEmpty(t, pdf)
}
