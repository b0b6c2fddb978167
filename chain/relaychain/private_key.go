package relaychain

import (
	"fmt"
	"os"
	"strings"

	"github.com/blockdeep/exbrid/crypto/sr25519"
)

// PrivateKeyEnv is consulted when neither a key nor a key file is given.
const PrivateKeyEnv = "EXBRID_SUBSTRATE_PRIVATE_KEY"

// ResolvePrivateKey builds the relay keypair from a secret URI (mnemonic,
// hex seed, or derivation path) given directly, read from a file, or taken
// from the environment.
func ResolvePrivateKey(privateKey, privateKeyFile string) (*sr25519.Keypair, error) {
	var cleanedKeyURI string

	if privateKey == "" && privateKeyFile == "" {
		privateKey = os.Getenv(PrivateKeyEnv)
	}

	if privateKey == "" {
		if privateKeyFile == "" {
			return nil, fmt.Errorf("private key URI not supplied")
		}
		content, err := os.ReadFile(privateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load private key: %w", err)
		}
		cleanedKeyURI = strings.TrimSpace(string(content))
	} else {
		cleanedKeyURI = strings.TrimSpace(privateKey)
	}

	keypair, err := sr25519.NewKeypairFromSeed(cleanedKeyURI, sr25519.DefaultNetwork)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key URI: %w", err)
	}

	return keypair, nil
}
