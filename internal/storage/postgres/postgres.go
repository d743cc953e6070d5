// Package postgres is the PostgreSQL store adapter built on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/pipeline"
	"fintrack/internal/storage"
	"fintrack/internal/storage/sqlquery"
)

var dialect = sqlquery.Postgres{}

// Config holds the connection settings. DSN, when set, wins over the
// individual fields.
type Config struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

func (c Config) connString() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// New connects, pings and migrates.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("connected to PostgreSQL", "database", poolConfig.ConnConfig.Database, "host", poolConfig.ConnConfig.Host)
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storage.Unavailable("ping", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, op string, q sqlquery.Query) (int64, error) {
	tag, err := s.pool.Exec(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, classify(op, err)
	}
	return tag.RowsAffected(), nil
}

func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, core.ErrConflict)
	}
	return storage.Unavailable(op, err)
}

func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := s.exec(ctx, "create transaction", sqlquery.InsertTransaction(dialect, t))
	return err
}

// CreateTransactions queues every insert in one batch inside a transaction.
func (s *Store) CreateTransactions(ctx context.Context, ts []core.Transaction) error {
	if len(ts) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.Unavailable("begin import", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range ts {
		q := sqlquery.InsertTransaction(dialect, t)
		batch.Queue(q.SQL, q.Args...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return classify("import transactions", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storage.Unavailable("commit import", err)
	}
	s.logger.InfoContext(ctx, "imported transaction batch", "count", len(ts))
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	q := sqlquery.GetTransaction(dialect, ownerID, id)
	t, err := sqlquery.ScanTransaction(s.pool.QueryRow(ctx, q.SQL, q.Args...), dialect)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, storage.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, storage.Unavailable("get transaction", err)
	}
	return t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	n, err := s.exec(ctx, "update transaction", sqlquery.UpdateTransaction(dialect, t))
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound("transaction", t.ID)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	n, err := s.exec(ctx, "delete transaction", sqlquery.DeleteTransaction(dialect, ownerID, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound("transaction", id)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, q storage.ListQuery) ([]core.Transaction, int64, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, 0, err
	}
	page, count := sqlquery.List(dialect, q)

	var total int64
	if err := s.pool.QueryRow(ctx, count.SQL, count.Args...).Scan(&total); err != nil {
		return nil, 0, storage.Unavailable("count transactions", err)
	}
	out, err := s.queryTransactions(ctx, "list transactions", page)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) Aggregate(ctx context.Context, p pipeline.Pipeline) ([]pipeline.Row, error) {
	q, err := sqlquery.Aggregate(dialect, p)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, storage.Unavailable(p.Name, err)
	}
	defer rows.Close()

	var out []pipeline.Row
	for rows.Next() {
		row, err := sqlquery.ScanRow(rows, p.Group)
		if err != nil {
			return nil, storage.Unavailable(p.Name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable(p.Name, err)
	}
	return out, nil
}

func (s *Store) Find(ctx context.Context, p pipeline.Pipeline) ([]core.Transaction, error) {
	q, err := sqlquery.Find(dialect, p)
	if err != nil {
		return nil, err
	}
	return s.queryTransactions(ctx, p.Name, q)
}

func (s *Store) queryTransactions(ctx context.Context, op string, q sqlquery.Query) ([]core.Transaction, error) {
	rows, err := s.pool.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, storage.Unavailable(op, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := sqlquery.ScanTransaction(rows, dialect)
		if err != nil {
			return nil, storage.Unavailable(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable(op, err)
	}
	return out, nil
}

func (s *Store) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := s.exec(ctx, "create budget", sqlquery.InsertBudget(dialect, b))
	return err
}

func (s *Store) GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error) {
	q := sqlquery.GetBudget(dialect, ownerID, id)
	b, err := sqlquery.ScanBudget(s.pool.QueryRow(ctx, q.SQL, q.Args...), dialect)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Budget{}, storage.NotFound("budget", id)
	}
	if err != nil {
		return core.Budget{}, storage.Unavailable("get budget", err)
	}
	return b, nil
}

func (s *Store) UpdateBudget(ctx context.Context, b core.Budget) error {
	n, err := s.exec(ctx, "update budget", sqlquery.UpdateBudget(dialect, b))
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound("budget", b.ID)
	}
	return nil
}

func (s *Store) DeleteBudget(ctx context.Context, ownerID, id string) error {
	n, err := s.exec(ctx, "delete budget", sqlquery.DeleteBudget(dialect, ownerID, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound("budget", id)
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context, ownerID string, year, month int) ([]core.Budget, error) {
	q := sqlquery.ListBudgets(dialect, ownerID, year, month)
	rows, err := s.pool.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, storage.Unavailable("list budgets", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := sqlquery.ScanBudget(rows, dialect)
		if err != nil {
			return nil, storage.Unavailable("list budgets", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("list budgets", err)
	}
	return out, nil
}
