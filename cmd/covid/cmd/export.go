package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"covidcli/internal/app"
	"covidcli/internal/exporter"
	"covidcli/internal/services"
	"covidcli/pkg/contracts/domain"
)

func (r *Root) newExportCommand() *cobra.Command {
	var (
		format    string
		name      string
		perEntity bool
		summary   bool
	)

	cmd := &cobra.Command{
		Use:     "export nation|state|city",
		GroupID: "data",
		Short:   "Write a slice to the reports directory",
		Long: `Export writes a slice as CSV or as an XLSX workbook with one sheet per
entity. The written paths are printed one per line.`,
		Example: `  covid export state --format xlsx --summary
  covid export city --per-entity`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.GranularityNation), string(domain.GranularityState), string(domain.GranularityCity)},
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := domain.ParseGranularity(args[0])
			if err != nil {
				return err
			}
			f, err := exporter.ParseFormat(format)
			if err != nil {
				return err
			}

			return r.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				res, err := a.Dataset.Export(ctx, services.ExportRequest{
					Granularity: g,
					Format:      f,
					Name:        name,
					PerEntity:   perEntity,
					Summary:     summary,
				})
				if err != nil {
					return err
				}
				out, err := r.formatter(cmd)
				if err != nil {
					return err
				}
				warnStale(cmd.ErrOrStderr(), res.Meta)
				return out.Paths(res)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", string(exporter.FormatCSV), "file format: csv or xlsx")
	cmd.Flags().StringVar(&name, "name", "", "file name without extension (default is the granularity)")
	cmd.Flags().BoolVar(&perEntity, "per-entity", false, "write one CSV per entity into a directory")
	cmd.Flags().BoolVar(&summary, "summary", false, "also write <name>_summary.csv")
	return cmd
}
