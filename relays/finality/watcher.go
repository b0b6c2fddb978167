package finality

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	goEthereum "github.com/ethereum/go-ethereum"
	gethTypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/blockdeep/exbrid/chain/ethereum"
	"github.com/blockdeep/exbrid/relays/finality/bus"

	log "github.com/sirupsen/logrus"
)

// ErrSourceClosed is returned when the node stops delivering head notifications.
var ErrSourceClosed = errors.New("source notification stream closed")

type HeadSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *gethTypes.Header) (goEthereum.Subscription, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethTypes.Header, error)
}

// SourceWatcher publishes the source chain's finalized block to the bus each
// time the chain's state advances.
type SourceWatcher struct {
	source       HeadSource
	bus          *bus.Bus
	pollInterval time.Duration
	metrics      *Metrics
}

func NewSourceWatcher(source HeadSource, b *bus.Bus, pollInterval time.Duration, metrics *Metrics) *SourceWatcher {
	return &SourceWatcher{
		source:       source,
		bus:          b,
		pollInterval: pollInterval,
		metrics:      metrics,
	}
}

// Run blocks until ctx is cancelled or the notification stream ends. The bus
// is closed on return.
func (w *SourceWatcher) Run(ctx context.Context) error {
	defer w.bus.Close()

	if w.pollInterval > 0 {
		return w.poll(ctx)
	}
	return w.subscribe(ctx)
}

func (w *SourceWatcher) subscribe(ctx context.Context) error {
	heads := make(chan *gethTypes.Header, 16)
	sub, err := w.source.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("subscribe to new heads: %w", err)
	}
	defer sub.Unsubscribe()

	log.Info("Watching source chain for finalized blocks")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Err():
			if !ok || err == nil {
				return ErrSourceClosed
			}
			return fmt.Errorf("new head subscription: %w", err)
		case head := <-heads:
			log.WithField("head", head.Number).Trace("Source chain advanced")
			w.observe(ctx)
		}
	}
}

func (w *SourceWatcher) poll(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	log.WithField("interval", w.pollInterval).Info("Polling source chain for finalized blocks")

	for {
		w.observe(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// observe queries the current finalized block and publishes it. Query
// failures are logged and skipped.
func (w *SourceWatcher) observe(ctx context.Context) {
	record, ok, err := ethereum.FinalizedBlock(ctx, w.source)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("Failed to query finalized block")
		}
		return
	}
	if !ok {
		log.Debug("No finalized block information available")
		return
	}

	w.metrics.recordObserved(record)
	receivers := w.bus.Publish(record)

	log.WithFields(log.Fields{
		"number":    record.Number,
		"hash":      record.Hash.Hex(),
		"receivers": receivers,
	}).Info("Finalized block")
}
