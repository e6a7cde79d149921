package render

// Template is one report template definition. The registry of templates is
// passed to the renderer at construction; there is no process-global lookup.
type Template struct {
	ID         string
	Title      string
	HTMLSource string
}

// StandardTemplateID is the template used when a submission names none.
const StandardTemplateID = "standard"

const standardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ title }}</title>
<style>
body { font-family: "Segoe UI", Helvetica, Arial, sans-serif; margin: 2rem; color: #1b1b1b; }
h1 { border-bottom: 2px solid #0078d4; padding-bottom: .3rem; }
table { border-collapse: collapse; margin: 1rem 0; width: 100%; }
th, td { border: 1px solid #d0d0d0; padding: .4rem .6rem; text-align: left; }
th { background: #f3f3f3; }
.summary span { display: inline-block; margin-right: 2rem; font-size: 1.1rem; }
.zero { color: #777; }
</style>
</head>
<body>
<h1>{{ title }}</h1>
<p>Generated {{ generated_at }}</p>

<div class="summary">
<span><strong>{{ total_count }}</strong> recommendations</span>
<span><strong>{{ total_potential_savings | money: currency }}</strong> total potential savings</span>
<span><strong>{{ average_savings_per_record | money: currency }}</strong> average per recommendation</span>
</div>

<h2>By category</h2>
<table>
<tr><th>Category</th><th>Count</th><th>Share</th></tr>
{% for row in categories %}<tr{% if row.count == 0 %} class="zero"{% endif %}><td>{{ row.label }}</td><td>{{ row.count }}</td><td>{{ row.percent }}%</td></tr>
{% endfor %}</table>

<h2>By business impact</h2>
<table>
<tr><th>Impact</th><th>Count</th><th>Share</th></tr>
{% for row in impacts %}<tr{% if row.count == 0 %} class="zero"{% endif %}><td>{{ row.label }}</td><td>{{ row.count }}</td><td>{{ row.percent }}%</td></tr>
{% endfor %}</table>

<h2>Top savings opportunities</h2>
{% if top_records.size == 0 %}<p>No savings opportunities identified.</p>{% else %}
<table>
<tr><th>#</th><th>Resource</th><th>Group</th><th>Category</th><th>Impact</th><th>Potential savings</th></tr>
{% for row in top_records %}<tr><td>{{ row.rank }}</td><td>{{ row.resource_name }}</td><td>{{ row.resource_group }}</td><td>{{ row.category }}</td><td>{{ row.business_impact }}</td><td>{{ row.potential_savings | money: currency }}</td></tr>
{% endfor %}</table>
{% endif %}

<h2>All recommendations</h2>
<table>
<tr><th>Category</th><th>Impact</th><th>Resource</th><th>Type</th><th>Recommendation</th><th>Savings</th></tr>
{% for row in records %}<tr><td>{{ row.category }}</td><td>{{ row.business_impact }}</td><td>{{ row.resource_name }}</td><td>{{ row.resource_type }}</td><td>{{ row.recommendation }}</td><td>{{ row.potential_savings | money: currency }}</td></tr>
{% endfor %}</table>

<script type="application/json" id="category-chart">{{ category_chart }}</script>
<script type="application/json" id="impact-chart">{{ impact_chart }}</script>
</body>
</html>
`

// DefaultTemplates returns the built-in registry.
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:         StandardTemplateID,
			Title:      "Cloud Optimization Report",
			HTMLSource: standardHTML,
		},
	}
}
