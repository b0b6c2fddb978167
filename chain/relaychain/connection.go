// Copyright 2020 Snowfork
// SPDX-License-Identifier: LGPL-3.0-only

package relaychain

import (
	"context"
	"errors"
	"fmt"

	gsrpc "github.com/snowfork/go-substrate-rpc-client/v4"
	"github.com/snowfork/go-substrate-rpc-client/v4/signature"
	"github.com/snowfork/go-substrate-rpc-client/v4/types"

	log "github.com/sirupsen/logrus"
)

var ErrNoEndpoint = errors.New("no destination endpoint could be reached")

type Connection struct {
	endpoints   []string
	endpoint    string
	spec        *ChainSpec
	kp          *signature.KeyringPair
	api         *gsrpc.SubstrateAPI
	metadata    types.Metadata
	genesisHash types.Hash
}

// NewConnection takes the bootstrap endpoints in order of preference. The
// chain spec is optional; when given, the connected chain must report the
// same name.
func NewConnection(endpoints []string, spec *ChainSpec, kp *signature.KeyringPair) *Connection {
	return &Connection{
		endpoints: endpoints,
		spec:      spec,
		kp:        kp,
	}
}

func (co *Connection) API() *gsrpc.SubstrateAPI {
	return co.api
}

func (co *Connection) Metadata() *types.Metadata {
	return &co.metadata
}

func (co *Connection) Keypair() *signature.KeyringPair {
	return co.kp
}

func (co *Connection) GenesisHash() types.Hash {
	return co.genesisHash
}

func (co *Connection) Endpoint() string {
	return co.endpoint
}

// Connect tries each endpoint once, in order. There is no retry: if all of
// them fail the joined error is returned.
func (co *Connection) Connect(ctx context.Context) error {
	errs := make([]error, 0, len(co.endpoints))
	for _, endpoint := range co.endpoints {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := co.connectTo(endpoint)
		if err == nil {
			return nil
		}
		log.WithError(err).WithField("endpoint", endpoint).Warn("Failed to connect to destination endpoint")
		errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
	}
	return fmt.Errorf("%w: %w", ErrNoEndpoint, errors.Join(errs...))
}

func (co *Connection) connectTo(endpoint string) error {
	// Initialize API
	api, err := gsrpc.NewSubstrateAPI(endpoint)
	if err != nil {
		return err
	}

	chainName, err := api.RPC.System.Chain()
	if err != nil {
		return fmt.Errorf("fetch chain name: %w", err)
	}
	if co.spec != nil && string(chainName) != co.spec.Name {
		return fmt.Errorf("connected to chain %q, chain spec expects %q", chainName, co.spec.Name)
	}

	// Fetch metadata
	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}

	// Fetch genesis hash
	genesisHash, err := api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return fmt.Errorf("fetch genesis hash: %w", err)
	}

	co.api = api
	co.endpoint = endpoint
	co.metadata = *meta
	co.genesisHash = genesisHash

	log.WithFields(log.Fields{
		"endpoint":    endpoint,
		"chain":       chainName,
		"metaVersion": meta.Version,
		"genesisHash": genesisHash.Hex(),
	}).Info("Connected to chain")

	return nil
}

func (co *Connection) Close() {
	// TODO: Fix design issue in GSRPC preventing on-demand closing of connections
}

func (co *Connection) GetFinalizedHeader() (types.Hash, *types.Header, error) {
	finalizedHash, err := co.api.RPC.Chain.GetFinalizedHead()
	if err != nil {
		return types.Hash{}, nil, err
	}

	finalizedHeader, err := co.api.RPC.Chain.GetHeader(finalizedHash)
	if err != nil {
		return types.Hash{}, nil, err
	}

	return finalizedHash, finalizedHeader, nil
}

// QueryAccount fetches System.Account for the connection's keypair. The
// boolean reports whether the storage entry exists.
func (co *Connection) QueryAccount() (*types.AccountInfo, bool, error) {
	key, err := types.CreateStorageKey(co.Metadata(), "System", "Account", co.kp.PublicKey, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create storage key for System.Account: %w", err)
	}

	var accountInfo types.AccountInfo
	ok, err := co.api.RPC.State.GetStorageLatest(key, &accountInfo)
	if err != nil {
		return nil, false, fmt.Errorf("get storage for System.Account: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	return &accountInfo, true, nil
}
