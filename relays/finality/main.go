package finality

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/blockdeep/exbrid/chain"
	"github.com/blockdeep/exbrid/chain/ethereum"
	"github.com/blockdeep/exbrid/chain/relaychain"
	"github.com/blockdeep/exbrid/crypto/sr25519"
	"github.com/blockdeep/exbrid/relays/finality/bus"

	log "github.com/sirupsen/logrus"
)

// SourceConnection is a head source with a connection lifecycle.
type SourceConnection interface {
	HeadSource
	Connect(ctx context.Context) error
	Close()
}

type Relay struct {
	config    *Config
	keypair   *sr25519.Keypair
	source    SourceConnection
	bus       *bus.Bus
	gate      *ReadinessGate
	formatter *RemarkFormatter
	metrics   *Metrics
}

func NewRelay(
	config *Config,
	keypair *sr25519.Keypair,
	metrics *Metrics,
) (*Relay, error) {
	formatter, err := NewRemarkFormatter(config.Sink.RemarkTemplate)
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

	relayconn := relaychain.NewConnection(config.Sink.Polkadot.Endpoints, spec, keypair.AsKeyringPair())
	destination := &relaychainDestination{
		conn:            relayconn,
		mortalEraPeriod: config.Sink.MortalEraPeriod,
	}

	return &Relay{
		config:    config,
		keypair:   keypair,
		source:    ethereum.NewConnection(&config.Source.Ethereum),
		bus:       bus.New(config.Bus.Capacity),
		gate:      NewReadinessGate(destination, config.Sink.WarmUp, config.Sink.Readiness, metrics),
		formatter: formatter,
		metrics:   metrics,
	}, nil
}

// Start connects to the source chain and launches the watcher and the
// gated submitter on eg.
func (r *Relay) Start(ctx context.Context, eg *errgroup.Group) error {
	err := r.source.Connect(ctx)
	if err != nil {
		return fmt.Errorf("create ethereum connection: %w", err)
	}

	// Subscribed before the gate opens so records seen during warm-up are
	// delivered once the destination is ready.
	rx := r.bus.Subscribe()

	relayDone := make(chan struct{})

	watcher := NewSourceWatcher(r.source, r.bus, r.config.Source.Ethereum.PollInterval, r.metrics)
	eg.Go(func() error {
		defer r.source.Close()
		err := watcher.Run(ctx)
		if err != nil {
			// The bus is closed by now. Let the submitter drain what it
			// already holds before the error tears the process down.
			log.WithError(err).Error("Source watcher stopped")
			select {
			case <-relayDone:
			case <-ctx.Done():
			}
		}
		return err
	})

	eg.Go(func() error {
		defer close(relayDone)
		defer rx.Close()
		return r.relay(ctx, rx)
	})

	return nil
}

func (r *Relay) relay(ctx context.Context, rx *bus.Receiver) error {
	writer, err := r.gate.Wait(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, ErrDestinationNotReady) && r.config.Sink.Readiness.OnTimeout == OnTimeoutFail:
		return err
	default:
		log.WithError(err).Error("Destination chain unavailable, remarks will not be submitted")
		return nil
	}

	submitter := NewSubmitter(
		writer,
		r.formatter,
		r.config.Sink.SubmitAttempts,
		r.config.Sink.SubmitRetryDelay,
		r.metrics,
	)
	return submitter.Run(ctx, rx)
}

func (r *Relay) Latest() (chain.BlockRecord, bool) {
	return r.bus.Latest()
}

func (r *Relay) GateState() GateState {
	return r.gate.State()
}

type relaychainDestination struct {
	conn            *relaychain.Connection
	mortalEraPeriod uint64
}

func (d *relaychainDestination) Connect(ctx context.Context) error {
	return d.conn.Connect(ctx)
}

func (d *relaychainDestination) NewWriter(ctx context.Context) (Writer, error) {
	writer := relaychain.NewRemarkWriter(d.conn, d.mortalEraPeriod)
	err := writer.Start(ctx)
	if err != nil {
		return nil, err
	}
	return writer, nil
}
