// Package render projects a canonical record set and its statistics into
// output documents. It only ever sees sanitized, normalized data; raw rows
// never reach a render path.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/osteele/liquid"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
)

type compiledTemplate struct {
	def  Template
	html *liquid.Template
}

// Renderer renders reports from an explicit template registry fixed at
// construction time. It holds no per-job state and is safe for concurrent
// use across jobs.
type Renderer struct {
	templates map[string]*compiledTemplate
	now       func() time.Time
}

// NewRenderer compiles every registered template up front so a broken
// template surfaces at startup as a template error, not mid-job.
func NewRenderer(templates []Template) (*Renderer, error) {
	engine := newEngine()
	r := &Renderer{
		templates: make(map[string]*compiledTemplate, len(templates)),
		now:       time.Now,
	}
	for _, def := range templates {
		compiled, err := engine.ParseString(def.HTMLSource)
		if err != nil {
			return nil, domain.WrapPipelineError(domain.ErrorTemplate,
				fmt.Sprintf("template %q does not compile", def.ID), err)
		}
		r.templates[def.ID] = &compiledTemplate{def: def, html: compiled}
	}
	return r, nil
}

// Render produces one artifact. Failure categories: unknown/broken template
// is a template error, an expired context is a resource error, and inputs
// violating the renderer's preconditions are a data error.
func (r *Renderer) Render(
	ctx context.Context,
	records []domain.Recommendation,
	statistics *domain.Statistics,
	format domain.ArtifactFormat,
	templateID string,
) ([]byte, error) {
	tmpl, ok := r.templates[templateID]
	if !ok {
		return nil, domain.NewPipelineError(domain.ErrorTemplate,
			fmt.Sprintf("no template registered with id %q", templateID))
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.WrapPipelineError(domain.ErrorResource, "render budget exhausted", err)
	}

	v, err := buildView(records, statistics, tmpl.def, r.now())
	if err != nil {
		return nil, err
	}

	switch format {
	case domain.FormatHTML:
		return r.renderHTML(tmpl, v)
	case domain.FormatPDF:
		return r.renderPDF(tmpl, v)
	}
	return nil, domain.NewPipelineError(domain.ErrorData,
		fmt.Sprintf("unsupported artifact format %q", format))
}
