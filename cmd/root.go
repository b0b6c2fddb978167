// Copyright 2020 Snowfork
// SPDX-License-Identifier: LGPL-3.0-only

package cmd

import (
	"os"

	"github.com/blockdeep/exbrid/cmd/run"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "exbrid-relay",
	Short:        "Exbrid Relay publishes finalized Ethereum blocks to a Polkadot chain",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(run.Command())
	rootCmd.AddCommand(submitRemarkCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(statusCmd())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
