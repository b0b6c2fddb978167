package relaychain

import (
	"encoding/json"
	"fmt"
	"os"
)

// ChainSpec holds the identity fields of a substrate chain spec. The
// genesis section is ignored.
type ChainSpec struct {
	Name       string   `json:"name"`
	ID         string   `json:"id"`
	ChainType  string   `json:"chainType"`
	ProtocolID string   `json:"protocolId"`
	BootNodes  []string `json:"bootNodes"`
}

func LoadChainSpec(path string) (*ChainSpec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain spec: %w", err)
	}
	return ParseChainSpec(content)
}

func ParseChainSpec(content []byte) (*ChainSpec, error) {
	var spec ChainSpec
	if err := json.Unmarshal(content, &spec); err != nil {
		return nil, fmt.Errorf("decode chain spec: %w", err)
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("chain spec has no name")
	}
	return &spec, nil
}
