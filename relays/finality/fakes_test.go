package finality

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	goEthereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blockdeep/exbrid/chain"
	"github.com/blockdeep/exbrid/chain/relaychain"
)

func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func testRecord(n uint64) chain.BlockRecord {
	return chain.NewBlockRecord(n, common.BigToHash(new(big.Int).SetUint64(n)))
}

// testSource serves head notifications pushed by the test and reports a
// finalized header the test can change between notifications.
type testSource struct {
	notifications chan *gethTypes.Header
	streamErr     chan error
	subscribeErr  error
	connectErr    error

	mu           sync.Mutex
	finalized    *gethTypes.Header
	finalizedErr error
	queries      int
	closed       bool
}

func newTestSource() *testSource {
	return &testSource{
		notifications: make(chan *gethTypes.Header),
		streamErr:     make(chan error, 1),
	}
}

func (s *testSource) setFinalized(header *gethTypes.Header, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = header
	s.finalizedErr = err
}

func (s *testSource) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// pushHead hands a head notification to the subscription served by source.
func pushHead(t *testing.T, source *testSource, head *gethTypes.Header) {
	t.Helper()
	select {
	case source.notifications <- head:
	case <-time.After(time.Second):
		t.Fatal("source subscription did not accept notification")
	}
}

func (s *testSource) Connect(_ context.Context) error {
	return s.connectErr
}

func (s *testSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *testSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *testSource) SubscribeNewHead(_ context.Context, ch chan<- *gethTypes.Header) (goEthereum.Subscription, error) {
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		for {
			select {
			case <-quit:
				return nil
			case err := <-s.streamErr:
				return err
			case head := <-s.notifications:
				select {
				case ch <- head:
				case <-quit:
					return nil
				}
			}
		}
	}), nil
}

func (s *testSource) HeaderByNumber(_ context.Context, _ *big.Int) (*gethTypes.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.finalizedErr != nil {
		return nil, s.finalizedErr
	}
	if s.finalized == nil {
		return nil, goEthereum.NotFound
	}
	return s.finalized, nil
}

// testWriter stands in for the destination's remark writer.
type testWriter struct {
	mu sync.Mutex
	// AccountExists reports true once more than readyAfter probes have been
	// made. Negative means never.
	readyAfter int
	probeErr   error
	probes     []time.Time
	write      func(call int, remark []byte) (relaychain.SubmissionOutcome, error)
	remarks    []string
}

func (w *testWriter) AccountExists(_ context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.probes = append(w.probes, time.Now())
	if w.probeErr != nil {
		return false, w.probeErr
	}
	return w.readyAfter >= 0 && len(w.probes) > w.readyAfter, nil
}

func (w *testWriter) WriteRemarkAndWatch(_ context.Context, remark []byte) (relaychain.SubmissionOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.remarks = append(w.remarks, string(remark))
	if w.write == nil {
		return relaychain.SubmissionOutcome{Accepted: true, Finalized: true, Succeeded: true}, nil
	}
	return w.write(len(w.remarks), remark)
}

func (w *testWriter) probeTimes() []time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Time(nil), w.probes...)
}

func (w *testWriter) submitted() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.remarks...)
}

type testDestination struct {
	connectErr error
	writerErr  error
	writer     *testWriter
	connected  time.Time
	writers    int
}

func (d *testDestination) Connect(_ context.Context) error {
	d.connected = time.Now()
	return d.connectErr
}

func (d *testDestination) NewWriter(_ context.Context) (Writer, error) {
	d.writers++
	if d.writerErr != nil {
		return nil, d.writerErr
	}
	return d.writer, nil
}

var errTestRPC = errors.New("rpc unavailable")
