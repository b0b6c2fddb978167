package finality

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/blockdeep/exbrid/chain/relaychain"
	"github.com/blockdeep/exbrid/config"
	"github.com/blockdeep/exbrid/relays/finality/bus"
)

const (
	OnTimeoutStop = "stop"
	OnTimeoutFail = "fail"
)

type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Bus     BusConfig     `mapstructure:"bus"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type SourceConfig struct {
	Ethereum config.EthereumConfig `mapstructure:"ethereum"`
}

type SinkConfig struct {
	Polkadot config.PolkadotConfig `mapstructure:"polkadot"`
	// Unconditional delay between connecting and building the writer.
	WarmUp    time.Duration   `mapstructure:"warm-up"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	// Mustache template rendered with {{number}} and {{hash}}.
	RemarkTemplate string `mapstructure:"remark-template"`
	// 1 means a record is submitted at most once.
	SubmitAttempts   uint          `mapstructure:"submit-attempts"`
	SubmitRetryDelay time.Duration `mapstructure:"submit-retry-delay"`
	MortalEraPeriod  uint64        `mapstructure:"mortal-era-period"`
}

type ReadinessConfig struct {
	MaxAttempts uint          `mapstructure:"max-attempts"`
	Interval    time.Duration `mapstructure:"interval"`
	// "stop" ends the relay task quietly, "fail" ends the process.
	OnTimeout string `mapstructure:"on-timeout"`
}

type BusConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type MetricsConfig struct {
	// Address for the status and metrics listener. Empty disables it.
	Listen string `mapstructure:"listen"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("sink.warm-up", "60s")
	v.SetDefault("sink.readiness.max-attempts", 30)
	v.SetDefault("sink.readiness.interval", "2s")
	v.SetDefault("sink.readiness.on-timeout", OnTimeoutStop)
	v.SetDefault("sink.remark-template", DefaultRemarkTemplate)
	v.SetDefault("sink.submit-attempts", 1)
	v.SetDefault("sink.submit-retry-delay", "6s")
	v.SetDefault("sink.mortal-era-period", relaychain.DefaultMortalEraPeriod)
	v.SetDefault("bus.capacity", bus.DefaultCapacity)
}

func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// LoadConfig reads a config file, applies defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &config, nil
}

func (c Config) Validate() error {
	if err := c.Source.Ethereum.Validate(); err != nil {
		return fmt.Errorf("source ethereum config: %w", err)
	}
	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink config: %w", err)
	}
	if c.Bus.Capacity <= 0 {
		return errors.New("bus config: [capacity] must be positive")
	}
	return nil
}

func (c SinkConfig) Validate() error {
	if err := c.Polkadot.Validate(); err != nil {
		return fmt.Errorf("polkadot config: %w", err)
	}
	if c.WarmUp < 0 {
		return errors.New("[warm-up] must not be negative")
	}
	if c.Readiness.MaxAttempts == 0 {
		return errors.New("readiness config: [max-attempts] must be at least 1")
	}
	if c.Readiness.Interval < 0 {
		return errors.New("readiness config: [interval] must not be negative")
	}
	switch c.Readiness.OnTimeout {
	case OnTimeoutStop, OnTimeoutFail:
	default:
		return fmt.Errorf("readiness config: [on-timeout] must be %q or %q", OnTimeoutStop, OnTimeoutFail)
	}
	if c.SubmitAttempts == 0 {
		return errors.New("[submit-attempts] must be at least 1")
	}
	if c.RemarkTemplate == "" {
		return errors.New("[remark-template] is not set")
	}
	if err := relaychain.ValidateMortalEraPeriod(c.MortalEraPeriod); err != nil {
		return fmt.Errorf("[mortal-era-period]: %w", err)
	}
	return nil
}
