package cmd

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"covidcli/internal/app"
	apperrors "covidcli/internal/errors"
)

func (r *Root) newThresholdCommand() *cobra.Command {
	var uf string

	cmd := &cobra.Command{
		Use:     "threshold CASES",
		GroupID: "data",
		Short:   "Print the first date cumulative cases exceeded CASES",
		Long: `Threshold prints the first date on which cumulative cases were strictly
greater than CASES, nationally or for one state. It fails when the count
was never exceeded.`,
		Example: `  covid threshold 100
  covid threshold 0 --uf RJ`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return apperrors.NewAppValidationError("CASES must be an integer").WithContext("value", args[0])
			}

			return r.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				res, err := a.Dataset.Threshold(ctx, cases, strings.ToUpper(uf))
				if err != nil {
					return err
				}
				f, err := r.formatter(cmd)
				if err != nil {
					return err
				}
				warnStale(cmd.ErrOrStderr(), res.Meta)
				return f.Threshold(res)
			})
		},
	}

	cmd.Flags().StringVar(&uf, "uf", "", "state abbreviation (default is the whole country)")
	return cmd
}
