package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cloudlens/advisor-hub/pkg/ingest"
	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	"github.com/cloudlens/advisor-hub/pkg/render"
	"github.com/cloudlens/advisor-hub/pkg/runtime/terminal/export"
	"github.com/cloudlens/advisor-hub/pkg/stats"
)

// NewGenerateCmd runs the whole pipeline against a local file, without the
// job store or the web API in between.
func NewGenerateCmd(reporter *export.Reporter) *cobra.Command {
	var (
		formats    []string
		templateID string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Generate an optimization report from a local CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			validator := ingest.NewValidator(ingest.DefaultValidatorConfig())
			table, err := validator.Validate(ingest.Upload{
				Filename: filepath.Base(args[0]),
				Data:     data,
			})
			if err != nil {
				return err
			}

			batch := ingest.NormalizeAll(table)
			statistics := stats.Aggregate(batch.Records)

			renderer, err := render.NewRenderer(render.DefaultTemplates())
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			for _, name := range formats {
				format, ok := domain.ParseFormat(name)
				if !ok {
					return fmt.Errorf("unsupported output format %q", name)
				}
				output, err := renderer.Render(cmd.Context(), batch.Records, &statistics, format, templateID)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, "report."+name)
				if err := os.WriteFile(path, output, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				cmd.Printf("wrote %s\n", path)
			}

			return reporter.Handle(&statistics, domain.NormalizationWarnings{
				RowErrors:         len(batch.RowErrors),
				Coercions:         batch.Coercions,
				UnknownCategories: batch.UnknownCategories,
			})
		},
	}

	cmd.Flags().StringSliceVar(&formats, "formats", []string{"html"}, "Output formats to render (html, pdf)")
	cmd.Flags().StringVar(&templateID, "template", render.StandardTemplateID, "Report template to use")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write report files into")

	return cmd
}
