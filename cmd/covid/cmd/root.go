// Package cmd holds the covid command tree.
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"covidcli/internal/app"
	"covidcli/internal/config"
	"covidcli/internal/output"
	"covidcli/internal/services"
	"covidcli/pkg/contracts/domain"
)

// closeTimeout bounds telemetry flushing when a command returns
const closeTimeout = 5 * time.Second

// Root carries the global flags and builds the Application for subcommands
type Root struct {
	configFile string
	baseDir    string
	logLevel   string
	format     string
	sourceURL  string

	appOpts []app.Option
	cfg     *config.Config
}

// NewRootCommand builds the covid command tree. opts are passed to every
// Application a subcommand creates.
func NewRootCommand(opts ...app.Option) *cobra.Command {
	root := &Root{appOpts: opts}

	cmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Brazilian COVID-19 dataset slicer",
		Long: `covid downloads the Ministry of Health COVID-19 spreadsheet, derives
national, state and city time series from it and serves them on the
command line or over HTTP.

When the spreadsheet cannot be refreshed the previous copy is used and
every result is flagged as stale.`,
		PersistentPreRunE: root.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	cmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Dataset Commands:"},
		&cobra.Group{ID: "service", Title: "Service Commands:"},
	)

	flags := cmd.PersistentFlags()
	flags.StringVar(&root.configFile, "config", "", "config file (default is ./config.yaml or ./configs/config.yaml)")
	flags.StringVar(&root.baseDir, "base-dir", "", "directory holding data/ and logs/ (default is the working directory)")
	flags.StringVar(&root.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVarP(&root.format, "output", "o", "", "output format: table, csv, json (default table on a terminal, csv otherwise)")
	flags.StringVar(&root.sourceURL, "source-url", "", "URL of the published spreadsheet")

	cmd.AddCommand(
		root.newFetchCommand(),
		root.newNationCommand(),
		root.newStatesCommand(),
		root.newCitiesCommand(),
		root.newThresholdCommand(),
		root.newSummaryCommand(),
		root.newExportCommand(),
		root.newServeCommand(),
		newVersionCommand(),
	)
	return cmd
}

// setup loads .env files and the configuration, then applies flag overrides
func (r *Root) setup(cmd *cobra.Command, _ []string) error {
	if _, err := config.LoadEnvFiles(); err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}

	cfg, err := config.Load(r.configFile)
	if err != nil {
		return err
	}
	if r.baseDir != "" {
		cfg.Paths.BaseDir = r.baseDir
	}
	if r.logLevel != "" {
		cfg.Logging.Level = r.logLevel
	}
	if r.sourceURL != "" {
		cfg.Source.URL = r.sourceURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	r.cfg = cfg
	return nil
}

// withApp builds the Application, runs fn and releases telemetry and logs
func (r *Root) withApp(cmd *cobra.Command, fn func(context.Context, *app.Application) error) (err error) {
	a, err := app.NewApplication(r.cfg, r.appOpts...)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if closeErr := a.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(cmd.Context(), a)
}

// formatter resolves --output for the command's stdout
func (r *Root) formatter(cmd *cobra.Command) (*output.Formatter, error) {
	format, err := output.ParseFormat(r.format)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(cmd.OutOrStdout(), format), nil
}

// printSlice writes a slice result and flags stale data on stderr
func (r *Root) printSlice(cmd *cobra.Command, res *services.SliceResult, tail int) error {
	f, err := r.formatter(cmd)
	if err != nil {
		return err
	}
	warnStale(cmd.ErrOrStderr(), res.Meta)
	return f.Slice(res, tail)
}

func warnStale(w io.Writer, meta services.Meta) {
	if meta.Stale {
		fmt.Fprintf(w, "warning: dataset could not be refreshed, using the copy from %s\n",
			meta.SourceDate.Format(domain.DateLayout))
	}
}
