package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	dialAttempts   = 5
	dialDelay      = time.Second
)

// Client publishes and consumes transaction change events on a fanout
// exchange. Every consumer gets its own exclusive queue, so each replica
// sees every event.
type Client struct {
	url          string
	exchangeName string
	origin       string
	logger       *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	closed  bool

	// dial opens conn and channel. Redials are serialized by redialMu.
	dial         func() error
	dialAttempts uint
	dialDelay    time.Duration
	redialMu     sync.Mutex

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials the broker, retrying connection errors, and declares the
// exchange.
func NewClient(url, exchangeName string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		origin:       uuid.NewString(),
		logger:       logger,
		dialAttempts: dialAttempts,
		dialDelay:    dialDelay,
	}
	c.dial = c.connect

	if err := c.redial(c.dialAttempts); err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	return c, nil
}

func (c *Client) redial(attempts uint) error {
	return retry.Do(
		c.dial,
		retry.RetryIf(isConnectionError),
		retry.Attempts(attempts),
		retry.Delay(c.dialDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("AMQP dial failed, retrying", "attempt", n+1, "error", err)
		}),
	)
}

// ensureChannel returns the open channel, dialing again when the broker
// dropped the previous one. It fails with ErrClosed after Close.
func (c *Client) ensureChannel(attempts uint) (*amqp091.Channel, error) {
	c.redialMu.Lock()
	defer c.redialMu.Unlock()

	c.mu.Lock()
	channel, closed := c.channel, c.closed
	c.mu.Unlock()
	if closed {
		return nil, amqp091.ErrClosed
	}
	if channel != nil && !channel.IsClosed() {
		return channel, nil
	}

	c.logger.Warn("AMQP channel is closed, reconnecting", "exchange", c.exchangeName)
	c.dropConnection()
	if err := c.redial(attempts); err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}

	c.mu.Lock()
	channel = c.channel
	c.mu.Unlock()
	if channel == nil {
		return nil, amqp091.ErrClosed
	}
	c.logger.Info("AMQP connection restored", "exchange", c.exchangeName)
	return channel, nil
}

// dropConnection releases a dead connection before a redial.
func (c *Client) dropConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
	c.conn, c.channel = nil, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

// Origin identifies this client on the events it publishes.
func (c *Client) Origin() string { return c.origin }

// PublishTransactionChanged publishes msg, stamping it with this client's
// origin.
func (c *Client) PublishTransactionChanged(ctx context.Context, msg *TransactionChangedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish message: circuit breaker is open")
	}

	msg.Origin = c.origin
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	// One dial per publish; the circuit breaker handles a broker that stays down.
	channel, err := c.ensureChannel(1)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key, ignored by fanout
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published transaction change",
		"user_id", msg.OwnerID,
		"operation", msg.Operation,
		"exchange", c.exchangeName)
	return nil
}

// Handler processes one decoded change event.
type Handler func(ctx context.Context, msg *TransactionChangedMessage) error

// ConsumeTransactionChanged binds an exclusive queue to the exchange and
// feeds events to handler until ctx is done. A dropped connection is dialed
// again first. Events published by this client are acknowledged without
// being handled.
func (c *Client) ConsumeTransactionChanged(ctx context.Context, handler Handler) error {
	channel, err := c.ensureChannel(c.dialAttempts)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	q, err := channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := channel.QueueBind(q.Name, "", c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := channel.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming transaction changes", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery acks handled and foreign messages, drops undecodable ones
// and requeues the ones the handler failed on.
func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	msg, err := TransactionChangedMessageFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		d.Nack(false, false)
		return
	}
	if msg.Origin == c.origin {
		d.Ack(false)
		return
	}
	if err := handler(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"user_id", msg.OwnerID,
			"operation", msg.Operation)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		expired := time.Since(c.lastFailure) > openTimeout
		c.mu.Unlock()
		if expired {
			atomic.StoreInt32(&c.state, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "connection reset", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
