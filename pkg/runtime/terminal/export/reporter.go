package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
)

type TableConfig struct {
	RankWidth     int
	ResourceWidth int
	CategoryWidth int
	ImpactWidth   int
	SavingsWidth  int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		RankWidth:     4,
		ResourceWidth: 40,
		CategoryWidth: 24,
		ImpactWidth:   8,
		SavingsWidth:  14,
	}
}

// Reporter prints a report summary as a formatted text table.
type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

type countRow struct {
	Label string
	Count int
}

type summaryView struct {
	Statistics *domain.Statistics
	Warnings   domain.NormalizationWarnings
	Categories []countRow
	Impacts    []countRow
}

func (c *Reporter) Handle(statistics *domain.Statistics, warnings domain.NormalizationWarnings) error {
	if statistics == nil {
		return fmt.Errorf("no statistics to report")
	}

	view := summaryView{Statistics: statistics, Warnings: warnings}
	for _, category := range domain.Categories() {
		view.Categories = append(view.Categories, countRow{
			Label: string(category),
			Count: statistics.CategoryDistribution[category],
		})
	}
	for _, impact := range domain.Impacts() {
		view.Impacts = append(view.Impacts, countRow{
			Label: string(impact),
			Count: statistics.ImpactDistribution[impact],
		})
	}

	funcMap := template.FuncMap{
		"formatRow": func(rank interface{}, resource, category, impact, savings string) string {
			return fmt.Sprintf("| %-*v | %-*s | %-*s | %-*s | %*s |",
				c.config.RankWidth, rank,
				c.config.ResourceWidth, clip(resource, c.config.ResourceWidth),
				c.config.CategoryWidth, category,
				c.config.ImpactWidth, impact,
				c.config.SavingsWidth, savings)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+%s+%s+",
				strings.Repeat("-", c.config.RankWidth+2),
				strings.Repeat("-", c.config.ResourceWidth+2),
				strings.Repeat("-", c.config.CategoryWidth+2),
				strings.Repeat("-", c.config.ImpactWidth+2),
				strings.Repeat("-", c.config.SavingsWidth+2))
		},
	}

	tmpl := `
Optimization Report Summary

Records: {{.Statistics.TotalCount}}
Total Potential Savings: {{.Statistics.Currency}} {{.Statistics.TotalPotentialSavings.StringFixed 2}}
Average per Record: {{.Statistics.Currency}} {{.Statistics.AverageSavingsPerRecord.StringFixed 2}}
{{- if or .Warnings.RowErrors .Warnings.Coercions .Warnings.UnknownCategories}}
Warnings: {{.Warnings.RowErrors}} rows dropped, {{.Warnings.Coercions}} values coerced, {{.Warnings.UnknownCategories}} unknown categories
{{- end}}

=== Categories ===
{{range .Categories}}{{.Label}}: {{.Count}}
{{end}}
=== Business Impact ===
{{range .Impacts}}{{.Label}}: {{.Count}}
{{end}}
{{- if .Statistics.TopRecords}}
=== Top Recommendations ===
{{separator}}
{{formatRow "#" "Resource" "Category" "Impact" "Savings"}}
{{separator}}
{{range .Statistics.TopRecords}}{{formatRow .Rank .Recommendation.ResourceName (printf "%s" .Recommendation.Category) (printf "%s" .Recommendation.BusinessImpact) (.Recommendation.PotentialSavings.StringFixed 2)}}
{{end}}{{separator}}
{{- end}}
`

	t, err := template.New("summary").Funcs(funcMap).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, view)
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
