package finality

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"

	"github.com/blockdeep/exbrid/chain/relaychain"

	log "github.com/sirupsen/logrus"
)

var (
	ErrDestinationUnreachable = errors.New("destination unreachable")
	ErrDestinationNotReady    = errors.New("destination not ready")

	errAccountAbsent = errors.New("relay account not found on destination")
)

type GateState int32

const (
	GateConnecting GateState = iota
	GateWarmingUp
	GateProbing
	GateReady
	GateTimedOut
	GateFailed
)

func (s GateState) String() string {
	switch s {
	case GateConnecting:
		return "connecting"
	case GateWarmingUp:
		return "warming-up"
	case GateProbing:
		return "probing"
	case GateReady:
		return "ready"
	case GateTimedOut:
		return "timed-out"
	case GateFailed:
		return "failed"
	}
	return "unknown"
}

type Writer interface {
	AccountExists(ctx context.Context) (bool, error)
	WriteRemarkAndWatch(ctx context.Context, remark []byte) (relaychain.SubmissionOutcome, error)
}

type Destination interface {
	Connect(ctx context.Context) error
	NewWriter(ctx context.Context) (Writer, error)
}

// ReadinessGate connects to the destination chain and withholds a writer
// until the relay account is visible in its state.
type ReadinessGate struct {
	destination Destination
	warmUp      time.Duration
	maxAttempts uint
	interval    time.Duration
	metrics     *Metrics
	state       atomic.Int32
}

func NewReadinessGate(destination Destination, warmUp time.Duration, readiness ReadinessConfig, metrics *Metrics) *ReadinessGate {
	return &ReadinessGate{
		destination: destination,
		warmUp:      warmUp,
		maxAttempts: readiness.MaxAttempts,
		interval:    readiness.Interval,
		metrics:     metrics,
	}
}

func (g *ReadinessGate) State() GateState {
	return GateState(g.state.Load())
}

func (g *ReadinessGate) setState(state GateState) {
	g.state.Store(int32(state))
	log.WithField("state", state).Debug("Readiness gate transition")
}

// Wait runs the gate to completion. At most maxAttempts account probes are
// issued, spaced by the configured interval.
func (g *ReadinessGate) Wait(ctx context.Context) (Writer, error) {
	g.setState(GateConnecting)
	err := g.destination.Connect(ctx)
	if err != nil {
		g.setState(GateFailed)
		return nil, fmt.Errorf("%w: %w", ErrDestinationUnreachable, err)
	}

	g.setState(GateWarmingUp)
	if g.warmUp > 0 {
		log.WithField("duration", g.warmUp).Info("Waiting for destination chain to sync")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.warmUp):
		}
	}

	writer, err := g.destination.NewWriter(ctx)
	if err != nil {
		g.setState(GateFailed)
		return nil, fmt.Errorf("%w: create writer: %w", ErrDestinationUnreachable, err)
	}

	g.setState(GateProbing)
	var attempts uint
	err = retry.Do(
		func() error {
			attempts++
			g.metrics.recordProbe()
			exists, err := writer.AccountExists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return errAccountAbsent
			}
			return nil
		},
		retry.Attempts(g.maxAttempts),
		retry.Delay(g.interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.WithFields(log.Fields{
				"attempt":     n + 1,
				"maxAttempts": g.maxAttempts,
			}).WithError(err).Debug("Destination not ready")
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.setState(GateTimedOut)
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrDestinationNotReady, attempts, err)
	}

	g.setState(GateReady)
	log.WithField("attempts", attempts).Info("Destination chain ready")

	return writer, nil
}
