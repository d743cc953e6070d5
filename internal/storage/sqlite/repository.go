// Package sqlite is the embedded store adapter built on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
	"fintrack/internal/pipeline"
	"fintrack/internal/storage"
	"fintrack/internal/storage/sqlquery"
)

var dialect = sqlquery.SQLite{}

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Repository)(nil)

// DSN adds the pragmas the repository relies on to a database path.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewRepository opens (creating if needed) the database at dbPath and
// applies migrations.
func NewRepository(dbPath string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("SQLite store ready", "path", dbPath)
	return &Repository{db: db, logger: logger}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storage.Unavailable("ping", err)
	}
	return nil
}

func (r *Repository) exec(ctx context.Context, op string, q sqlquery.Query) (int64, error) {
	res, err := r.db.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storage.Unavailable(op, err)
	}
	return n, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if _, err := r.exec(ctx, "create transaction", sqlquery.InsertTransaction(dialect, t)); err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID, "kind", t.Kind, "amount_cents", t.Amount.Cents())
	return nil
}

func (r *Repository) CreateTransactions(ctx context.Context, ts []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable("begin import", err)
	}
	defer tx.Rollback()

	for _, t := range ts {
		q := sqlquery.InsertTransaction(dialect, t)
		if _, err := tx.ExecContext(ctx, q.SQL, q.Args...); err != nil {
			return classify("import transaction", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storage.Unavailable("commit import", err)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	q := sqlquery.GetTransaction(dialect, ownerID, id)
	t, err := sqlquery.ScanTransaction(r.db.QueryRowContext(ctx, q.SQL, q.Args...), dialect)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, storage.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, storage.Unavailable("get transaction", err)
	}
	return t, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	n, err := r.exec(ctx, "update transaction", sqlquery.UpdateTransaction(dialect, t))
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound("transaction", t.ID)
	}
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	n, err := r.exec(ctx, "delete transaction", sqlquery.DeleteTransaction(dialect, ownerID, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound("transaction", id)
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, q storage.ListQuery) ([]core.Transaction, int64, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, 0, err
	}
	page, count := sqlquery.List(dialect, q)

	var total int64
	if err := r.db.QueryRowContext(ctx, count.SQL, count.Args...).Scan(&total); err != nil {
		return nil, 0, storage.Unavailable("count transactions", err)
	}
	out, err := r.queryTransactions(ctx, "list transactions", page)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repository) Aggregate(ctx context.Context, p pipeline.Pipeline) ([]pipeline.Row, error) {
	q, err := sqlquery.Aggregate(dialect, p)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, q.SQL, q.Args...)
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

func (r *Repository) Find(ctx context.Context, p pipeline.Pipeline) ([]core.Transaction, error) {
	q, err := sqlquery.Find(dialect, p)
	if err != nil {
		return nil, err
	}
	return r.queryTransactions(ctx, p.Name, q)
}

func (r *Repository) queryTransactions(ctx context.Context, op string, q sqlquery.Query) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, q.SQL, q.Args...)
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

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.exec(ctx, "create budget", sqlquery.InsertBudget(dialect, b))
	return err
}

func (r *Repository) GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error) {
	q := sqlquery.GetBudget(dialect, ownerID, id)
	b, err := sqlquery.ScanBudget(r.db.QueryRowContext(ctx, q.SQL, q.Args...), dialect)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, storage.NotFound("budget", id)
	}
	if err != nil {
		return core.Budget{}, storage.Unavailable("get budget", err)
	}
	return b, nil
}

func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) error {
	n, err := r.exec(ctx, "update budget", sqlquery.UpdateBudget(dialect, b))
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound("budget", b.ID)
	}
	return nil
}

func (r *Repository) DeleteBudget(ctx context.Context, ownerID, id string) error {
	n, err := r.exec(ctx, "delete budget", sqlquery.DeleteBudget(dialect, ownerID, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound("budget", id)
	}
	return nil
}

func (r *Repository) ListBudgets(ctx context.Context, ownerID string, year, month int) ([]core.Budget, error) {
	q := sqlquery.ListBudgets(dialect, ownerID, year, month)
	rows, err := r.db.QueryContext(ctx, q.SQL, q.Args...)
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

// classify maps key collisions to ErrConflict and anything else to
// ErrStoreUnavailable.
func classify(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, core.ErrConflict)
	}
	return storage.Unavailable(op, err)
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
