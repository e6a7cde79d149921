package render

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
)

// view is the semantic model both output formats render from. Building it
// once is what keeps HTML and PDF numbers from diverging.
type view struct {
	Title          string
	GeneratedAt    string
	TotalCount     int
	TotalSavings   string
	AverageSavings string
	Currency       string
	Categories     []distRow
	Impacts        []distRow
	Top            []recordRow
	Records        []recordRow
	CategoryChart  string
	ImpactChart    string
}

type distRow struct {
	Label   string
	Count   int
	Percent string
}

type recordRow struct {
	Rank           int
	Category       string
	BusinessImpact string
	ResourceName   string
	ResourceGroup  string
	ResourceType   string
	Recommendation string
	Savings        string
}

func buildView(records []domain.Recommendation, statistics *domain.Statistics, tmpl Template, now time.Time) (*view, error) {
	if statistics == nil {
		return nil, domain.NewPipelineError(domain.ErrorData, "renderer called without statistics")
	}
	if statistics.TotalCount != len(records) {
		return nil, domain.NewPipelineError(domain.ErrorData,
			fmt.Sprintf("statistics count %d does not match %d records", statistics.TotalCount, len(records)))
	}

	v := &view{
		Title:          tmpl.Title,
		GeneratedAt:    now.UTC().Format("2006-01-02 15:04 UTC"),
		TotalCount:     statistics.TotalCount,
		TotalSavings:   statistics.TotalPotentialSavings.StringFixed(2),
		AverageSavings: statistics.AverageSavingsPerRecord.StringFixed(2),
		Currency:       statistics.Currency,
	}
	if v.Currency == "" {
		v.Currency = "USD"
	}

	for _, c := range domain.Categories() {
		count, ok := statistics.CategoryDistribution[c]
		if !ok {
			return nil, domain.NewPipelineError(domain.ErrorData,
				fmt.Sprintf("category distribution is missing key %q", c))
		}
		v.Categories = append(v.Categories, distRow{
			Label:   categoryLabel(c),
			Count:   count,
			Percent: percent(count, statistics.TotalCount),
		})
	}
	for _, i := range domain.Impacts() {
		count, ok := statistics.ImpactDistribution[i]
		if !ok {
			return nil, domain.NewPipelineError(domain.ErrorData,
				fmt.Sprintf("impact distribution is missing key %q", i))
		}
		v.Impacts = append(v.Impacts, distRow{
			Label:   impactLabel(i),
			Count:   count,
			Percent: percent(count, statistics.TotalCount),
		})
	}

	for _, tr := range statistics.TopRecords {
		v.Top = append(v.Top, recommendationRow(tr.Recommendation, tr.Rank))
	}
	for _, record := range records {
		v.Records = append(v.Records, recommendationRow(record, 0))
	}

	// Chart payloads are the persisted aggregates verbatim; the HTML page
	// never recomputes a sum client-side.
	categoryChart, err := json.Marshal(statistics.CategoryDistribution)
	if err != nil {
		return nil, domain.WrapPipelineError(domain.ErrorData, "encode category chart", err)
	}
	impactChart, err := json.Marshal(statistics.ImpactDistribution)
	if err != nil {
		return nil, domain.WrapPipelineError(domain.ErrorData, "encode impact chart", err)
	}
	v.CategoryChart = string(categoryChart)
	v.ImpactChart = string(impactChart)

	return v, nil
}

func recommendationRow(r domain.Recommendation, rank int) recordRow {
	return recordRow{
		Rank:           rank,
		Category:       categoryLabel(r.Category),
		BusinessImpact: impactLabel(r.BusinessImpact),
		ResourceName:   r.ResourceName,
		ResourceGroup:  r.ResourceGroup,
		ResourceType:   r.ResourceType,
		Recommendation: r.Recommendation,
		Savings:        r.PotentialSavings.StringFixed(2),
	}
}

func percent(count, total int) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(count)/float64(total)*100)
}

var categoryLabels = map[domain.Category]string{
	domain.CategoryCost:                  "Cost",
	domain.CategorySecurity:              "Security",
	domain.CategoryReliability:           "Reliability",
	domain.CategoryOperationalExcellence: "Operational Excellence",
	domain.CategoryPerformance:           "Performance",
	domain.CategoryOther:                 "Other",
}

func categoryLabel(c domain.Category) string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

func impactLabel(i domain.Impact) string {
	switch i {
	case domain.ImpactHigh:
		return "High"
	case domain.ImpactMedium:
		return "Medium"
	case domain.ImpactLow:
		return "Low"
	}
	return string(i)
}
