package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/blockdeep/exbrid/relays/finality"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Short:   "Show the relay account and its state on the destination chain",
		Args:    cobra.ExactArgs(0),
		Example: "exbrid-relay account --config finality-relay.json",
		RunE:    AccountFn,
	}

	cmd.Flags().String("config", "", "Path to configuration file")
	cmd.MarkFlagRequired("config")
	cmd.Flags().String("substrate.private-key", "", "Private key URI for Substrate")
	cmd.Flags().String("substrate.private-key-file", "", "The file from which to read the private key URI")

	return cmd
}

type accountInfo struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Endpoint  string `json:"endpoint"`
	Exists    bool   `json:"exists"`
	Nonce     uint32 `json:"nonce"`
	Free      string `json:"free"`
}

func AccountFn(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	config, err := finality.LoadConfig(cmd.Flags().Lookup("config").Value.String())
	if err != nil {
		return err
	}

	conn, err := connectDestination(ctx, cmd, config)
	if err != nil {
		return err
	}
	defer conn.Close()

	kp := conn.Keypair()
	out := accountInfo{
		Address:   kp.Address,
		PublicKey: hexutil.Encode(kp.PublicKey),
		Endpoint:  conn.Endpoint(),
		Free:      "0",
	}

	info, ok, err := conn.QueryAccount()
	if err != nil {
		return err
	}
	if ok {
		out.Exists = true
		out.Nonce = uint32(info.Nonce)
		out.Free = info.Data.Free.String()
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
