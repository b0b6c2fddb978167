package run

import (
	"github.com/blockdeep/exbrid/cmd/run/finality"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a relay service",
		Args:  cobra.MinimumNArgs(1),
	}

	cmd.AddCommand(finality.Command())

	return cmd
}
