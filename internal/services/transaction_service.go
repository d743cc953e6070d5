package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// ChangePublisher announces transaction mutations to other replicas.
type ChangePublisher interface {
	PublishTransactionChanged(ctx context.Context, msg *amqp.TransactionChangedMessage) error
}

// Invalidator drops cached responses of an owner.
type Invalidator interface {
	InvalidateOwner(ownerID string) int
}

// Page is one page of a transaction listing.
type Page struct {
	Items []core.Transaction `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Pages int                `json:"pages"`
}

// TransactionService owns transaction writes. Every successful mutation
// invalidates the owner's cached dashboard responses before returning and
// then publishes a change event.
type TransactionService struct {
	store     storage.TransactionStore
	cache     Invalidator
	publisher ChangePublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewTransactionService(store storage.TransactionStore, cache Invalidator, publisher ChangePublisher, logger *slog.Logger) *TransactionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *TransactionService) Create(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error) {
	t, err := core.NewTransaction(ownerID, in, s.now())
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.changed(ctx, ownerID, amqp.OpCreated, t.ID)
	return t, nil
}

// CreateMany validates every input first and then stores all of them in one
// batch. Nothing is stored when any input is invalid.
func (s *TransactionService) CreateMany(ctx context.Context, ownerID string, ins []core.TransactionInput) ([]core.Transaction, error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("%w: no transactions to save", core.ErrInvalidArgument)
	}
	now := s.now()
	ts := make([]core.Transaction, 0, len(ins))
	ids := make([]string, 0, len(ins))
	for i, in := range ins {
		t, err := core.NewTransaction(ownerID, in, now)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i+1, err)
		}
		ts = append(ts, t)
		ids = append(ids, t.ID)
	}
	if err := s.store.CreateTransactions(ctx, ts); err != nil {
		return nil, fmt.Errorf("create transactions: %w", err)
	}
	s.changed(ctx, ownerID, amqp.OpImported, ids...)
	return ts, nil
}

func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	if ownerID == "" {
		return core.Transaction{}, core.ErrMissingOwner
	}
	t, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *TransactionService) Update(ctx context.Context, ownerID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if patch.Empty() {
		return core.Transaction{}, core.ErrNoFieldsToUpdate
	}
	current, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	updated, err := patch.Apply(current, s.now())
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.changed(ctx, ownerID, amqp.OpUpdated, id)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return core.ErrMissingOwner
	}
	if err := s.store.DeleteTransaction(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.changed(ctx, ownerID, amqp.OpDeleted, id)
	return nil
}

func (s *TransactionService) List(ctx context.Context, q storage.ListQuery) (Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return Page{}, err
	}
	items, total, err := s.store.ListTransactions(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("list transactions: %w", err)
	}
	if items == nil {
		items = []core.Transaction{}
	}
	return Page{
		Items: items,
		Total: total,
		Page:  q.Page,
		Limit: q.Limit,
		Pages: int((total + int64(q.Limit) - 1) / int64(q.Limit)),
	}, nil
}

func (s *TransactionService) changed(ctx context.Context, ownerID, op string, ids ...string) {
	if s.cache != nil {
		n := s.cache.InvalidateOwner(ownerID)
		s.logger.DebugContext(ctx, "Invalidated cached responses", "user_id", ownerID, "entries", n)
	}
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping change event")
		return
	}
	if err := s.publisher.PublishTransactionChanged(ctx, amqp.NewTransactionChangedMessage(ownerID, op, ids...)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change event",
			"user_id", ownerID,
			"operation", op,
			"error", err)
	}
}
