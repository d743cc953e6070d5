package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
)

const (
	minRestartDelay = time.Second
	maxRestartDelay = 30 * time.Second
)

// Invalidator drops cached responses of an owner.
type Invalidator interface {
	InvalidateOwner(ownerID string) int
}

// Consumer delivers transaction change events to a handler until ctx is
// done or the subscription breaks.
type Consumer interface {
	ConsumeTransactionChanged(ctx context.Context, handler amqp.Handler) error
}

// InvalidationWorker keeps this replica's response cache consistent with
// writes made on other replicas.
type InvalidationWorker struct {
	consumer Consumer
	cache    Invalidator
	logger   *slog.Logger
}

func NewInvalidationWorker(consumer Consumer, cache Invalidator, logger *slog.Logger) *InvalidationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidationWorker{consumer: consumer, cache: cache, logger: logger}
}

// HandleChangeMessage drops the cached responses of the message's owner.
func (w *InvalidationWorker) HandleChangeMessage(ctx context.Context, msg *amqp.TransactionChangedMessage) error {
	n := w.cache.InvalidateOwner(msg.OwnerID)
	w.logger.DebugContext(ctx, "Invalidated cache from change event",
		"user_id", msg.OwnerID,
		"operation", msg.Operation,
		"origin", msg.Origin,
		"entries", n)
	return nil
}

// Run consumes until ctx is cancelled, restarting the subscription with a
// growing delay when it breaks.
func (w *InvalidationWorker) Run(ctx context.Context) error {
	delay := minRestartDelay
	for {
		err := w.consumer.ConsumeTransactionChanged(ctx, w.HandleChangeMessage)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil || errors.Is(err, context.Canceled) {
			err = errors.New("subscription ended")
		}
		w.logger.WarnContext(ctx, "Change event subscription stopped, restarting", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRestartDelay)
	}
}
