package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEthereumConfigValidate(t *testing.T) {
	assert.Error(t, EthereumConfig{}.Validate())
	assert.NoError(t, EthereumConfig{Endpoint: "ws://127.0.0.1:8546"}.Validate())
}

func TestPolkadotConfigValidate(t *testing.T) {
	assert.Error(t, PolkadotConfig{}.Validate())
	assert.Error(t, PolkadotConfig{Endpoints: []string{"ws://127.0.0.1:9944", ""}}.Validate())
	assert.NoError(t, PolkadotConfig{Endpoints: []string{"ws://127.0.0.1:9944"}}.Validate())
}
