package render

import (
	"fmt"
	"html"

	"github.com/osteele/liquid"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
)

func newEngine() *liquid.Engine {
	engine := liquid.NewEngine()

	engine.RegisterFilter("money", func(amount string, currency string) string {
		return fmt.Sprintf("%s %s", currency, amount)
	})
	engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	return engine
}

func (r *Renderer) renderHTML(tmpl *compiledTemplate, v *view) ([]byte, error) {
	out, err := tmpl.html.RenderString(htmlBindings(v))
	if err != nil {
		return nil, domain.WrapPipelineError(domain.ErrorTemplate,
			fmt.Sprintf("template %q failed to render", tmpl.def.ID), err)
	}
	return []byte(out), nil
}

func htmlBindings(v *view) map[string]any {
	bindings := map[string]any{
		"title":                      v.Title,
		"generated_at":               v.GeneratedAt,
		"total_count":                v.TotalCount,
		"total_potential_savings":    v.TotalSavings,
		"average_savings_per_record": v.AverageSavings,
		"currency":                   v.Currency,
		"categories":                 distBindings(v.Categories),
		"impacts":                    distBindings(v.Impacts),
		"top_records":                recordBindings(v.Top),
		"records":                    recordBindings(v.Records),
		"category_chart":             v.CategoryChart,
		"impact_chart":               v.ImpactChart,
	}
	return bindings
}

func distBindings(rows []distRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"label":   row.Label,
			"count":   row.Count,
			"percent": row.Percent,
		})
	}
	return out
}

func recordBindings(rows []recordRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"rank":              row.Rank,
			"category":          row.Category,
			"business_impact":   row.BusinessImpact,
			"resource_name":     html.EscapeString(row.ResourceName),
			"resource_group":    html.EscapeString(row.ResourceGroup),
			"resource_type":     html.EscapeString(row.ResourceType),
			"recommendation":    html.EscapeString(row.Recommendation),
			"potential_savings": row.Savings,
		})
	}
	return out
}
