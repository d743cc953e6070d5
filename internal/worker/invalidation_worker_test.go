package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
)

type scriptedConsumer struct {
	mu    sync.Mutex
	calls int
	msgs  []*amqp.TransactionChangedMessage
	err   error
}

func (c *scriptedConsumer) ConsumeTransactionChanged(ctx context.Context, handler amqp.Handler) error {
	c.mu.Lock()
	c.calls++
	msgs := c.msgs
	c.msgs = nil
	c.mu.Unlock()
	for _, m := range msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *scriptedConsumer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHandleChangeMessage_InvalidatesOwner(t *testing.T) {
	c := cache.New(10, time.Minute)
	c.Set(cache.OwnerPrefix("u1")+"a", 1, 0)
	c.Set(cache.OwnerPrefix("u1")+"b", 2, 0)
	c.Set(cache.OwnerPrefix("u2")+"a", 3, 0)

	w := NewInvalidationWorker(nil, c, quietLogger())
	require.NoError(t, w.HandleChangeMessage(context.Background(), amqp.NewTransactionChangedMessage("u1", amqp.OpCreated)))

	assert.Equal(t, 1, c.Size())
	_, ok := c.Get(cache.OwnerPrefix("u2") + "a")
	assert.True(t, ok)
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	c := cache.New(10, time.Minute)
	c.Set(cache.OwnerPrefix("u1")+"k", 1, 0)
	consumer := &scriptedConsumer{msgs: []*amqp.TransactionChangedMessage{amqp.NewTransactionChangedMessage("u1", amqp.OpDeleted)}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewInvalidationWorker(consumer, c, quietLogger()).Run(ctx) }()

	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, consumer.Calls())
}

func TestRun_RestartsBrokenSubscription(t *testing.T) {
	consumer := &scriptedConsumer{err: errors.New("channel closed")}
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	err := NewInvalidationWorker(consumer, cache.New(1, time.Minute), quietLogger()).Run(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, consumer.Calls())
}
