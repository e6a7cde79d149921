package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
)

// renderPDF lays out the same view the HTML path renders, paginated. The
// two formats may only differ in pagination and interactivity, never in
// reported numbers.
func (r *Renderer) renderPDF(tmpl *compiledTemplate, v *view) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(v.Title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(v.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 6, "Generated "+v.GeneratedAt, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("%d recommendations", v.TotalCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Total potential savings: %s %s", v.Currency, v.TotalSavings), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Average per recommendation: %s %s", v.Currency, v.AverageSavings), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	r.pdfDistTable(pdf, "By category", v.Categories)
	r.pdfDistTable(pdf, "By business impact", v.Impacts)
	r.pdfTopTable(pdf, tr, v)
	r.pdfRecordTable(pdf, tr, v)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, domain.WrapPipelineError(domain.ErrorTemplate,
			fmt.Sprintf("template %q failed to produce a document", tmpl.def.ID), err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) pdfSectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
}

func (r *Renderer) pdfDistTable(pdf *fpdf.Fpdf, title string, rows []distRow) {
	r.pdfSectionTitle(pdf, title)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(70, 7, "Segment", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Count", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Share", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		pdf.CellFormat(70, 7, row.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", row.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, row.Percent+"%", "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func (r *Renderer) pdfTopTable(pdf *fpdf.Fpdf, tr func(string) string, v *view) {
	r.pdfSectionTitle(pdf, "Top savings opportunities")
	if len(v.Top) == 0 {
		pdf.CellFormat(0, 7, "No savings opportunities identified.", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(10, 7, "#", "1", 0, "R", false, 0, "")
	pdf.CellFormat(55, 7, "Resource", "1", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, "Category", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 7, "Impact", "1", 0, "L", false, 0, "")
	pdf.CellFormat(45, 7, "Potential savings", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range v.Top {
		pdf.CellFormat(10, 7, fmt.Sprintf("%d", row.Rank), "1", 0, "R", false, 0, "")
		pdf.CellFormat(55, 7, tr(clip(row.ResourceName, 38)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, row.Category, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, row.BusinessImpact, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 7, v.Currency+" "+row.Savings, "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func (r *Renderer) pdfRecordTable(pdf *fpdf.Fpdf, tr func(string) string, v *view) {
	r.pdfSectionTitle(pdf, "All recommendations")
	if len(v.Records) == 0 {
		pdf.CellFormat(0, 7, "No recommendations in this report.", "", 1, "L", false, 0, "")
		return
	}
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(28, 7, "Category", "1", 0, "L", false, 0, "")
	pdf.CellFormat(18, 7, "Impact", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, "Resource", "1", 0, "L", false, 0, "")
	pdf.CellFormat(72, 7, "Recommendation", "1", 0, "L", false, 0, "")
	pdf.CellFormat(32, 7, "Savings", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	for _, row := range v.Records {
		pdf.CellFormat(28, 6, row.Category, "1", 0, "L", false, 0, "")
		pdf.CellFormat(18, 6, row.BusinessImpact, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, tr(clip(row.ResourceName, 28)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(72, 6, tr(clip(row.Recommendation, 52)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(32, 6, v.Currency+" "+row.Savings, "1", 1, "R", false, 0, "")
	}
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
