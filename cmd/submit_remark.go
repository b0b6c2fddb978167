package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/blockdeep/exbrid/chain"
	"github.com/blockdeep/exbrid/chain/ethereum"
	"github.com/blockdeep/exbrid/chain/relaychain"
	"github.com/blockdeep/exbrid/relays/finality"

	log "github.com/sirupsen/logrus"
)

func submitRemarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submit-remark",
		Short:   "Submit a single finalized block remark to the destination chain",
		Args:    cobra.ExactArgs(0),
		Example: "exbrid-relay submit-remark --config finality-relay.json --block-number 100 --block-hash 0xab..",
		RunE:    SubmitRemarkFn,
	}

	cmd.Flags().String("config", "", "Path to configuration file")
	cmd.MarkFlagRequired("config")
	cmd.Flags().Uint64("block-number", 0, "Block number to report. Omit to use the source chain's current finalized block")
	cmd.Flags().String("block-hash", "", "Block hash to report, required with --block-number")
	cmd.Flags().String("substrate.private-key", "", "Private key URI for Substrate")
	cmd.Flags().String("substrate.private-key-file", "", "The file from which to read the private key URI")

	return cmd
}

func SubmitRemarkFn(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	config, err := finality.LoadConfig(cmd.Flags().Lookup("config").Value.String())
	if err != nil {
		return err
	}

	record, err := remarkRecord(ctx, cmd, config)
	if err != nil {
		return err
	}

	formatter, err := finality.NewRemarkFormatter(config.Sink.RemarkTemplate)
	if err != nil {
		return err
	}
	remark, err := formatter.Format(record)
	if err != nil {
		return err
	}

	conn, err := connectDestination(ctx, cmd, config)
	if err != nil {
		return err
	}
	defer conn.Close()

	writer := relaychain.NewRemarkWriter(conn, config.Sink.MortalEraPeriod)
	err = writer.Start(ctx)
	if err != nil {
		return err
	}

	log.WithField("remark", string(remark)).Info("Submitting remark")

	outcome, err := writer.WriteRemarkAndWatch(ctx, remark)
	if err != nil {
		return fmt.Errorf("submit remark (stage %s): %w", outcome.Error, err)
	}

	return json.NewEncoder(os.Stdout).Encode(struct {
		Remark    string `json:"remark"`
		Nonce     uint64 `json:"nonce"`
		Block     string `json:"block"`
		Succeeded bool   `json:"succeeded"`
		Failed    bool   `json:"failed"`
	}{
		Remark:    string(remark),
		Nonce:     outcome.Nonce,
		Block:     outcome.BlockHash.Hex(),
		Succeeded: outcome.Succeeded,
		Failed:    outcome.Failed,
	})
}

func remarkRecord(ctx context.Context, cmd *cobra.Command, config *finality.Config) (chain.BlockRecord, error) {
	if cmd.Flags().Changed("block-number") {
		number, err := cmd.Flags().GetUint64("block-number")
		if err != nil {
			return chain.BlockRecord{}, err
		}
		hashStr, err := cmd.Flags().GetString("block-hash")
		if err != nil {
			return chain.BlockRecord{}, err
		}
		if hashStr == "" {
			return chain.BlockRecord{}, fmt.Errorf("--block-hash is required with --block-number")
		}
		hash, err := parseBlockHash(hashStr)
		if err != nil {
			return chain.BlockRecord{}, err
		}
		return chain.NewBlockRecord(number, hash), nil
	}

	conn := ethereum.NewConnection(&config.Source.Ethereum)
	err := conn.Connect(ctx)
	if err != nil {
		return chain.BlockRecord{}, err
	}
	defer conn.Close()

	record, ok, err := conn.FinalizedBlock(ctx)
	if err != nil {
		return chain.BlockRecord{}, err
	}
	if !ok {
		return chain.BlockRecord{}, fmt.Errorf("source chain has no finalized block yet")
	}
	return record, nil
}

// parseBlockHash accepts only a 0x-prefixed, 32-byte hex string.
func parseBlockHash(s string) (gethCommon.Hash, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return gethCommon.Hash{}, fmt.Errorf("invalid --block-hash %q: %w", s, err)
	}
	if len(raw) != gethCommon.HashLength {
		return gethCommon.Hash{}, fmt.Errorf("invalid --block-hash %q: want %d bytes, got %d", s, gethCommon.HashLength, len(raw))
	}
	return gethCommon.BytesToHash(raw), nil
}

func connectDestination(ctx context.Context, cmd *cobra.Command, config *finality.Config) (*relaychain.Connection, error) {
	privateKey, _ := cmd.Flags().GetString("substrate.private-key")
	privateKeyFile, _ := cmd.Flags().GetString("substrate.private-key-file")

	keypair, err := relaychain.ResolvePrivateKey(privateKey, privateKeyFile)
	if err != nil {
		return nil, err
	}

	var spec *relaychain.ChainSpec
	if config.Sink.Polkadot.ChainSpec != "" {
		spec, err = relaychain.LoadChainSpec(config.Sink.Polkadot.ChainSpec)
		if err != nil {
			return nil, err
		}
	}

	conn := relaychain.NewConnection(config.Sink.Polkadot.Endpoints, spec, keypair.AsKeyringPair())
	err = conn.Connect(ctx)
	if err != nil {
		return nil, err
	}

	return conn, nil
}
