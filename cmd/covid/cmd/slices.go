package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"covidcli/internal/app"
	"covidcli/internal/services"
)

func (r *Root) newNationCommand() *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:     "nation",
		GroupID: "data",
		Short:   "Print the national time series",
		Example: `  covid nation --tail 7
  covid nation -o csv > brasil.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				res, err := a.Dataset.Nation(ctx)
				if err != nil {
					return err
				}
				return r.printSlice(cmd, res, tail)
			})
		},
	}

	addTailFlag(cmd, &tail)
	return cmd
}

func (r *Root) newStatesCommand() *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:     "states [UF]",
		GroupID: "data",
		Short:   "Print the state time series, or one state's",
		Long: `States prints every state's time series, each derived from that
state's rows alone. With a UF argument only that state is printed.`,
		Example: `  covid states
  covid states SP --tail 14`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				var (
					res *services.SliceResult
					err error
				)
				if len(args) == 1 {
					res, err = a.Dataset.State(ctx, strings.ToUpper(args[0]))
				} else {
					res, err = a.Dataset.States(ctx)
				}
				if err != nil {
					return err
				}
				return r.printSlice(cmd, res, tail)
			})
		},
	}

	addTailFlag(cmd, &tail)
	return cmd
}

func (r *Root) newCitiesCommand() *cobra.Command {
	var (
		tail int
		code string
	)

	cmd := &cobra.Command{
		Use:     "cities [UF]",
		GroupID: "data",
		Short:   "Print city time series",
		Long: `Cities prints the time series of every city, of the cities of one
state, or of a single city selected by its municipality code.`,
		Example: `  covid cities SP
  covid cities --code 350950`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				var (
					res *services.SliceResult
					err error
				)
				switch {
				case code != "":
					res, err = a.Dataset.City(ctx, code)
				case len(args) == 1:
					res, err = a.Dataset.Cities(ctx, strings.ToUpper(args[0]))
				default:
					res, err = a.Dataset.Cities(ctx, "")
				}
				if err != nil {
					return err
				}
				return r.printSlice(cmd, res, tail)
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "municipality code (6 or 7 digits)")
	addTailFlag(cmd, &tail)
	return cmd
}

func addTailFlag(cmd *cobra.Command, tail *int) {
	cmd.Flags().IntVar(tail, "tail", 0, "only print the last N rows")
}
