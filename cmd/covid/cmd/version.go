package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"covidcli/pkg/contracts"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := contracts.GetVersionInfo()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "covid version %s\n", info.Version)
			fmt.Fprintf(w, "commit: %s\n", info.GitCommit)
			fmt.Fprintf(w, "built: %s\n", info.BuildTime)
			fmt.Fprintf(w, "go version: %s\n", info.GoVersion)
			fmt.Fprintf(w, "platform: %s\n", info.Platform)
			return nil
		},
	}
}
