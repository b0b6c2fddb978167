package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/blockdeep/exbrid/relays/finality"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Query a running relay's status endpoint",
		Args:    cobra.ExactArgs(0),
		Example: "exbrid-relay status --url http://127.0.0.1:9090",
		RunE:    StatusFn,
	}

	cmd.Flags().StringP("url", "u", "http://127.0.0.1:9090", "Base URL of the relay status listener")
	cmd.Flags().Duration("timeout", 5*time.Second, "Request timeout")

	return cmd
}

func StatusFn(cmd *cobra.Command, _ []string) error {
	url, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	var status finality.StatusResponse
	resp, err := resty.New().
		SetTimeout(timeout).
		R().
		SetResult(&status).
		Get(url + "/status")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("status request failed: %s", resp.Status())
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(status)
}
