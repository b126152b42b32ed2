package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"covidcli/internal/acquisition"
	"covidcli/internal/app"
	"covidcli/pkg/contracts/domain"
)

func (r *Root) newFetchCommand() *cobra.Command {
	var ifOutdated bool

	cmd := &cobra.Command{
		Use:     "fetch",
		GroupID: "data",
		Short:   "Download the dataset spreadsheet",
		Long: `Fetch replaces the local dataset with a new copy from the inbox
directory or the configured URL. The previous file is kept as a backup and
used when the download fails.`,
		Example: `  covid fetch
  covid fetch --if-outdated --source-url https://example.org/HIST_PAINEL_COVIDBR.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				load := a.Dataset.Refresh
				if ifOutdated {
					load = a.Dataset.Load
				}
				snap, err := load(ctx)
				if err != nil {
					return err
				}
				return printSnapshot(cmd, snap)
			})
		},
	}

	cmd.Flags().BoolVar(&ifOutdated, "if-outdated", false, "only download when the local copy is not from today and was not fetched within source.max_age")
	return cmd
}

func printSnapshot(cmd *cobra.Command, snap *acquisition.Snapshot) error {
	status := "cached"
	switch {
	case snap.Stale:
		status = "stale"
	case snap.Fetched:
		status = "fetched"
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d rows, %d invalid, source date %s)\n",
		status, snap.Path, len(snap.Records), snap.Validation.Rows-snap.Validation.Valid,
		snap.SourceDate.Format(domain.DateLayout))
	return err
}
