package bus

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdeep/exbrid/chain"
)

func record(n uint64) chain.BlockRecord {
	return chain.NewBlockRecord(n, common.BigToHash(new(big.Int).SetUint64(n)))
}

func TestPublishWithoutReceivers(t *testing.T) {
	b := New(4)

	assert.Equal(t, 0, b.Publish(record(1)))

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, record(1), latest)
}

func TestLatestEmptyBeforeFirstPublish(t *testing.T) {
	b := New(4)

	_, ok := b.Latest()
	assert.False(t, ok)
}

func TestLatestTracksMostRecent(t *testing.T) {
	b := New(2)

	for i := uint64(1); i <= 10; i++ {
		b.Publish(record(i))
	}

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, record(10), latest)
}

func TestReceiverPreservesOrder(t *testing.T) {
	const total = 500
	b := New(total)
	rx := b.Subscribe()
	defer rx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		for i := uint64(1); i <= total; i++ {
			b.Publish(record(i))
		}
	}()

	for i := uint64(1); i <= total; i++ {
		got, err := rx.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, record(i), got)
	}
}

func TestReceiverStartsAfterSubscribe(t *testing.T) {
	b := New(8)
	b.Publish(record(1))
	b.Publish(record(2))

	rx := b.Subscribe()
	b.Publish(record(3))

	got, err := rx.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record(3), got)
}

func TestReceiverLag(t *testing.T) {
	b := New(100)
	rx := b.Subscribe()
	ctx := context.Background()

	for i := uint64(1); i <= 150; i++ {
		b.Publish(record(i))
	}

	_, err := rx.Recv(ctx)
	var lagged *LaggedError
	require.True(t, errors.As(err, &lagged))
	assert.Equal(t, uint64(50), lagged.Missed)

	for i := uint64(51); i <= 150; i++ {
		got, err := rx.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, record(i), got)
	}
}

func TestIndependentReceivers(t *testing.T) {
	b := New(2)
	fast := b.Subscribe()
	slow := b.Subscribe()
	ctx := context.Background()

	assert.Equal(t, 2, b.Publish(record(1)))
	got, err := fast.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, record(1), got)

	b.Publish(record(2))
	got, err = fast.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, record(2), got)

	b.Publish(record(3))
	got, err = fast.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, record(3), got)

	_, err = slow.Recv(ctx)
	var lagged *LaggedError
	require.ErrorAs(t, err, &lagged)
	assert.Equal(t, uint64(1), lagged.Missed)

	got, err = slow.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, record(2), got)

	slow.Close()
	slow.Close()
	assert.Equal(t, 1, b.Publish(record(4)))
}

func TestDuplicatesAreDelivered(t *testing.T) {
	b := New(4)
	rx := b.Subscribe()
	ctx := context.Background()

	b.Publish(record(7))
	b.Publish(record(7))

	for i := 0; i < 2; i++ {
		got, err := rx.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, record(7), got)
	}
}

func TestCloseDrainsThenFails(t *testing.T) {
	b := New(4)
	rx := b.Subscribe()
	ctx := context.Background()

	b.Publish(record(1))
	b.Close()
	b.Close()

	got, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, record(1), got)

	_, err = rx.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	assert.Equal(t, 0, b.Publish(record(2)))
	latest, _ := b.Latest()
	assert.Equal(t, record(2), latest)
}

func TestCloseWakesWaitingReceiver(t *testing.T) {
	b := New(4)
	rx := b.Subscribe()

	done := make(chan error, 1)
	go func() {
		_, err := rx.Recv(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken by Close")
	}
}

func TestRecvHonoursContext(t *testing.T) {
	b := New(4)
	rx := b.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := rx.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Capacity())
	assert.Equal(t, 3, New(3).Capacity())
}
