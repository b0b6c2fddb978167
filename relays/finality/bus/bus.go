// Package bus is a bounded broadcast channel of finalized block records.
//
// Publishing never blocks. Each receiver reads at its own pace; a receiver
// that falls more than the capacity behind loses the overwritten records,
// gets a *LaggedError, and continues from the oldest record still buffered.
// The bus also keeps the most recently published record as a last-value view.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockdeep/exbrid/chain"
)

const DefaultCapacity = 100

var ErrClosed = errors.New("bus closed")

type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("receiver lagged, %d records missed", e.Missed)
}

type Bus struct {
	mu        sync.Mutex
	buf       []chain.BlockRecord
	head      uint64
	latest    *chain.BlockRecord
	closed    bool
	receivers int
	// closed and replaced on every publish to wake waiting receivers
	notify chan struct{}
}

func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		buf:    make([]chain.BlockRecord, capacity),
		notify: make(chan struct{}),
	}
}

func (b *Bus) Capacity() int {
	return len(b.buf)
}

// Publish appends record and makes it the latest value. It returns the
// number of receivers subscribed at the time of publishing, which may be 0.
// Publishing to a closed bus only updates the latest value.
func (b *Bus) Publish(record chain.BlockRecord) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = &record
	if b.closed {
		return 0
	}

	b.buf[b.head%uint64(len(b.buf))] = record
	b.head++

	close(b.notify)
	b.notify = make(chan struct{})

	return b.receivers
}

// Latest returns the most recently published record.
func (b *Bus) Latest() (chain.BlockRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.latest == nil {
		return chain.BlockRecord{}, false
	}
	return *b.latest, true
}

// Close wakes every receiver. Receivers drain what is still buffered and
// then get ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// Subscribe returns a receiver positioned after the last published record.
func (b *Bus) Subscribe() *Receiver {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.receivers++
	return &Receiver{bus: b, next: b.head}
}

type Receiver struct {
	bus      *Bus
	next     uint64
	released bool
}

// Recv blocks until a record is available, the bus is closed, or ctx is done.
func (r *Receiver) Recv(ctx context.Context) (chain.BlockRecord, error) {
	b := r.bus
	for {
		b.mu.Lock()
		capacity := uint64(len(b.buf))
		var oldest uint64
		if b.head > capacity {
			oldest = b.head - capacity
		}

		if r.next < oldest {
			missed := oldest - r.next
			r.next = oldest
			b.mu.Unlock()
			return chain.BlockRecord{}, &LaggedError{Missed: missed}
		}

		if r.next < b.head {
			record := b.buf[r.next%capacity]
			r.next++
			b.mu.Unlock()
			return record, nil
		}

		if b.closed {
			b.mu.Unlock()
			return chain.BlockRecord{}, ErrClosed
		}

		notify := b.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return chain.BlockRecord{}, ctx.Err()
		case <-notify:
		}
	}
}

// Close unsubscribes the receiver. It does not affect other receivers.
func (r *Receiver) Close() {
	r.bus.mu.Lock()
	defer r.bus.mu.Unlock()

	if !r.released {
		r.released = true
		r.bus.receivers--
	}
}
