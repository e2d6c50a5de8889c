package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/habitline/internal/storage"
)

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Repo implements storage.Repository on top of database/sql
type Repo struct {
	q      Querier
	db     *sql.DB // nil when q is a transaction
	d      Dialect
	txOpts *sql.TxOptions
}

var _ storage.Repository = (*Repo)(nil)

// New returns a Repo that issues statements on db and opens transactions
// with txOpts when a multi-statement operation needs one.
func New(db *sql.DB, d Dialect, txOpts *sql.TxOptions) *Repo {
	return &Repo{q: db, db: db, d: d, txOpts: txOpts}
}

func (r *Repo) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.d.Rebind(query), args...)
}

func (r *Repo) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.d.Rebind(query), args...)
}

func (r *Repo) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.d.Rebind(query), args...)
}

// WithTx runs fn in a transaction. Inside an existing transaction fn simply
// joins it.
func (r *Repo) WithTx(ctx context.Context, fn func(tx storage.Repository) error) error {
	return r.atomic(ctx, func(tx *Repo) error { return fn(tx) })
}

func (r *Repo) atomic(ctx context.Context, fn func(tx *Repo) error) (err error) {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, r.txOpts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Repo{q: tx, d: r.d}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
