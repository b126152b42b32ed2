package cmd

import (
	"github.com/spf13/cobra"

	"covidcli/internal/app"
)

func (r *Root) newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: "service",
		Short:   "Serve the slices over HTTP",
		Long: `Serve starts the HTTP API under /api/v1 and the Prometheus scrape
endpoint at /metrics. It stops gracefully on SIGINT or SIGTERM.`,
		Example: `  covid serve --port 9000`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				r.cfg.Server.Port = port
			}
			a, err := app.NewApplication(r.cfg, r.appOpts...)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "listen port (overrides server.port)")
	return cmd
}
