package finality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"github.com/blockdeep/exbrid/chain"
	"github.com/blockdeep/exbrid/chain/relaychain"
	"github.com/blockdeep/exbrid/relays/finality/bus"

	log "github.com/sirupsen/logrus"
)

// Submitter turns bus records into remark transactions, one at a time.
type Submitter struct {
	writer     Writer
	formatter  *RemarkFormatter
	attempts   uint
	retryDelay time.Duration
	metrics    *Metrics
}

func NewSubmitter(writer Writer, formatter *RemarkFormatter, attempts uint, retryDelay time.Duration, metrics *Metrics) *Submitter {
	if attempts == 0 {
		attempts = 1
	}
	return &Submitter{
		writer:     writer,
		formatter:  formatter,
		attempts:   attempts,
		retryDelay: retryDelay,
		metrics:    metrics,
	}
}

// Run consumes rx until the bus closes or ctx is cancelled. Submission
// failures never end the loop.
func (s *Submitter) Run(ctx context.Context, rx *bus.Receiver) error {
	for {
		record, err := rx.Recv(ctx)
		if err != nil {
			var lagged *bus.LaggedError
			switch {
			case errors.As(err, &lagged):
				s.metrics.recordLagged(lagged.Missed)
				log.WithField("missed", lagged.Missed).Warn("Submitter lagged behind, skipping records")
				continue
			case errors.Is(err, bus.ErrClosed):
				log.Info("Event bus closed, stopping submitter")
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("receive block record: %w", err)
			}
		}

		s.submit(ctx, record)
	}
}

func (s *Submitter) submit(ctx context.Context, record chain.BlockRecord) {
	logger := log.WithFields(log.Fields{
		"number": record.Number,
		"hash":   record.Hash.Hex(),
	})

	remark, err := s.formatter.Format(record)
	if err != nil {
		s.metrics.recordRemark(resultError)
		logger.WithError(err).Error("Failed to format remark")
		return
	}

	var outcome relaychain.SubmissionOutcome
	err = retry.Do(
		func() error {
			var err error
			outcome, err = s.writer.WriteRemarkAndWatch(ctx, remark)
			return err
		},
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			// A finalized extrinsic must not be sent again.
			return !errors.Is(err, relaychain.ErrEventsUnavailable)
		}),
		retry.OnRetry(func(n uint, err error) {
			if n+1 < s.attempts {
				logger.WithError(err).WithField("attempt", n+1).Warn("Remark submission failed, retrying")
			}
		}),
	)

	logger = logger.WithFields(log.Fields{
		"nonce": outcome.Nonce,
		"block": outcome.BlockHash.Hex(),
	})

	switch {
	case errors.Is(err, relaychain.ErrEventsUnavailable):
		s.metrics.recordRemark(resultNoSuccessEvent)
		logger.WithError(err).Warn("Remark finalized but its events could not be verified")
	case err != nil:
		s.metrics.recordRemark(resultError)
		logger.WithError(err).WithField("stage", outcome.Error).Error("Failed to submit remark")
	case outcome.Succeeded:
		s.metrics.recordRemark(resultSuccess)
		logger.Info("Remark finalized with ExtrinsicSuccess")
	case outcome.Failed:
		s.metrics.recordRemark(resultFailed)
		logger.Error("Remark extrinsic failed")
	default:
		s.metrics.recordRemark(resultNoSuccessEvent)
		logger.Warn("Remark finalized without ExtrinsicSuccess event")
	}
}
