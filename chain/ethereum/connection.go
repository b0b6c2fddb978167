// Copyright 2020 Snowfork
// SPDX-License-Identifier: LGPL-3.0-only

package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	goEthereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/blockdeep/exbrid/chain"
	"github.com/blockdeep/exbrid/config"

	log "github.com/sirupsen/logrus"
)

type Connection struct {
	endpoint string
	client   *ethclient.Client
}

func NewConnection(config *config.EthereumConfig) *Connection {
	return &Connection{
		endpoint: config.Endpoint,
	}
}

func (co *Connection) Connect(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, co.endpoint)
	if err != nil {
		return err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return err
	}

	log.WithFields(log.Fields{
		"endpoint": co.endpoint,
		"chainID":  chainID,
	}).Info("Connected to chain")

	co.client = client

	return nil
}

func (co *Connection) Close() {
	if co.client != nil {
		co.client.Close()
	}
}

func (co *Connection) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (goEthereum.Subscription, error) {
	return co.client.SubscribeNewHead(ctx, ch)
}

func (co *Connection) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return co.client.HeaderByNumber(ctx, number)
}

// FinalizedBlock returns the current finalized block. The boolean is false
// when the node has no finalized block to report yet.
func (co *Connection) FinalizedBlock(ctx context.Context) (chain.BlockRecord, bool, error) {
	return FinalizedBlock(ctx, co)
}

type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

func FinalizedBlock(ctx context.Context, reader HeaderReader) (chain.BlockRecord, bool, error) {
	header, err := reader.HeaderByNumber(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
	if err != nil {
		if errors.Is(err, goEthereum.NotFound) {
			return chain.BlockRecord{}, false, nil
		}
		return chain.BlockRecord{}, false, fmt.Errorf("fetch finalized header: %w", err)
	}
	if header == nil || header.Number == nil {
		return chain.BlockRecord{}, false, nil
	}

	return chain.NewBlockRecord(header.Number.Uint64(), header.Hash()), true, nil
}
