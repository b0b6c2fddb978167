package finality

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finality-relay.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `{
  "source": {"ethereum": {"endpoint": "ws://127.0.0.1:8546"}},
  "sink": {"polkadot": {"endpoints": ["wss://paseo.rpc.example:443", "ws://127.0.0.1:9944"]}}
}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "ws://127.0.0.1:8546", config.Source.Ethereum.Endpoint)
	require.Equal(t, time.Duration(0), config.Source.Ethereum.PollInterval)
	require.Equal(t, []string{"wss://paseo.rpc.example:443", "ws://127.0.0.1:9944"}, config.Sink.Polkadot.Endpoints)
	require.Equal(t, 60*time.Second, config.Sink.WarmUp)
	require.Equal(t, uint(30), config.Sink.Readiness.MaxAttempts)
	require.Equal(t, 2*time.Second, config.Sink.Readiness.Interval)
	require.Equal(t, OnTimeoutStop, config.Sink.Readiness.OnTimeout)
	require.Equal(t, DefaultRemarkTemplate, config.Sink.RemarkTemplate)
	require.Equal(t, uint(1), config.Sink.SubmitAttempts)
	require.Equal(t, 6*time.Second, config.Sink.SubmitRetryDelay)
	require.Equal(t, uint64(64), config.Sink.MortalEraPeriod)
	require.Equal(t, 100, config.Bus.Capacity)
	require.Empty(t, config.Metrics.Listen)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `{
  "source": {"ethereum": {"endpoint": "ws://127.0.0.1:8546", "poll-interval": "12s"}},
  "sink": {
    "polkadot": {"endpoints": ["ws://127.0.0.1:9944"]},
    "warm-up": "0s",
    "readiness": {"max-attempts": 5, "interval": "500ms", "on-timeout": "fail"},
    "submit-attempts": 3,
    "mortal-era-period": 128
  },
  "bus": {"capacity": 16},
  "metrics": {"listen": "127.0.0.1:9090"}
}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 12*time.Second, config.Source.Ethereum.PollInterval)
	require.Equal(t, time.Duration(0), config.Sink.WarmUp)
	require.Equal(t, uint(5), config.Sink.Readiness.MaxAttempts)
	require.Equal(t, 500*time.Millisecond, config.Sink.Readiness.Interval)
	require.Equal(t, OnTimeoutFail, config.Sink.Readiness.OnTimeout)
	require.Equal(t, uint(3), config.Sink.SubmitAttempts)
	require.Equal(t, uint64(128), config.Sink.MortalEraPeriod)
	require.Equal(t, 16, config.Bus.Capacity)
	require.Equal(t, "127.0.0.1:9090", config.Metrics.Listen)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing source endpoint": `{"sink": {"polkadot": {"endpoints": ["ws://127.0.0.1:9944"]}}}`,
		"missing sink endpoints":  `{"source": {"ethereum": {"endpoint": "ws://127.0.0.1:8546"}}}`,
		"bad timeout policy": `{
  "source": {"ethereum": {"endpoint": "ws://127.0.0.1:8546"}},
  "sink": {"polkadot": {"endpoints": ["ws://127.0.0.1:9944"]}, "readiness": {"on-timeout": "retry"}}
}`,
		"zero probe attempts": `{
  "source": {"ethereum": {"endpoint": "ws://127.0.0.1:8546"}},
  "sink": {"polkadot": {"endpoints": ["ws://127.0.0.1:9944"]}, "readiness": {"max-attempts": 0}}
}`,
		"bad era period": `{
  "source": {"ethereum": {"endpoint": "ws://127.0.0.1:8546"}},
  "sink": {"polkadot": {"endpoints": ["ws://127.0.0.1:9944"]}, "mortal-era-period": 100}
}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
