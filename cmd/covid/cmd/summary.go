package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"covidcli/internal/app"
	"covidcli/pkg/contracts/domain"
)

func (r *Root) newSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "summary nation|state|city",
		GroupID:   "data",
		Short:     "Print the latest figures of every entity",
		Example:   `  covid summary state`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.GranularityNation), string(domain.GranularityState), string(domain.GranularityCity)},
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := domain.ParseGranularity(args[0])
			if err != nil {
				return err
			}

			return r.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				res, err := a.Dataset.Summary(ctx, g)
				if err != nil {
					return err
				}
				f, err := r.formatter(cmd)
				if err != nil {
					return err
				}
				warnStale(cmd.ErrOrStderr(), res.Meta)
				return f.Summary(res)
			})
		},
	}
}
