// Copyright 2021 Snowfork
// SPDX-License-Identifier: LGPL-3.0-only

package config

import (
	"errors"
	"time"
)

type EthereumConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	// Poll for the finalized block on this interval instead of subscribing
	// to new heads. Zero means subscribe.
	PollInterval time.Duration `mapstructure:"poll-interval"`
}

func (c EthereumConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("[endpoint] is not set")
	}
	return nil
}

type PolkadotConfig struct {
	// Endpoints are tried in order when connecting; the first one that
	// answers is used for the lifetime of the connection.
	Endpoints []string `mapstructure:"endpoints"`
	// Optional path to the chain spec JSON of the expected chain.
	ChainSpec string `mapstructure:"chain-spec"`
}

func (c PolkadotConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("[endpoints] is not set")
	}
	for _, endpoint := range c.Endpoints {
		if endpoint == "" {
			return errors.New("[endpoints] contains an empty entry")
		}
	}
	return nil
}
