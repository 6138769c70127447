package cashbox

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentique-erp/rentique-erp/internal/platform/db"
)

var ErrNotFound = errors.New("cashbox not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Cashbox, error)
	ListIDs(ctx context.Context) ([]int64, error)
	UpdateBalance(ctx context.Context, id int64, balance float64) error
	InsertTransaction(ctx context.Context, t Transaction) (int64, error)
	ListTransactions(ctx context.Context, cashboxID int64, page, perPage int) ([]Transaction, int, error)
	// StreamTransactions walks the full log oldest-first; the recalculation
	// fold depends on that ordering.
	StreamTransactions(ctx context.Context, cashboxID int64, fn func(Transaction) error) (int, error)
	DayTotals(ctx context.Context, cashboxID int64, day time.Time) (income, expense float64, count int, err error)
	BalanceBefore(ctx context.Context, cashboxID int64, day time.Time) (float64, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (*Cashbox, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, branch_id, name, initial_balance, current_balance, created_at, updated_at
		FROM cashboxes WHERE id = $1
	`, id)
	var c Cashbox
	err := row.Scan(&c.ID, &c.BranchID, &c.Name, &c.InitialBalance, &c.CurrentBalance, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM cashboxes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *repository) UpdateBalance(ctx context.Context, id int64, balance float64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE cashboxes SET current_balance = $1, updated_at = NOW() WHERE id = $2
	`, balance, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO cashbox_transactions (cashbox_id, type, amount, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, t.CashboxID, t.Type, t.Amount, t.Reference, t.Description).Scan(&id)
	return id, err
}

func (r *repository) ListTransactions(ctx context.Context, cashboxID int64, page, perPage int) ([]Transaction, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM cashbox_transactions WHERE cashbox_id = $1
	`, cashboxID).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, cashbox_id, type, amount, reference, description, created_at
		FROM cashbox_transactions WHERE cashbox_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3
	`, cashboxID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.CashboxID, &t.Type, &t.Amount, &t.Reference, &t.Description, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *repository) StreamTransactions(ctx context.Context, cashboxID int64, fn func(Transaction) error) (int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, cashbox_id, type, amount, reference, description, created_at
		FROM cashbox_transactions WHERE cashbox_id = $1
		ORDER BY created_at ASC, id ASC
	`, cashboxID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.CashboxID, &t.Type, &t.Amount, &t.Reference, &t.Description, &t.CreatedAt); err != nil {
			return count, err
		}
		if err := fn(t); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}

func (r *repository) DayTotals(ctx context.Context, cashboxID int64, day time.Time) (float64, float64, int, error) {
	start := day.Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	var income, expense float64
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type IN ('income','correction') AND amount > 0 THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount
				WHEN type = 'correction' AND amount < 0 THEN -amount ELSE 0 END), 0),
			COUNT(*)
		FROM cashbox_transactions
		WHERE cashbox_id = $1 AND created_at >= $2 AND created_at < $3
	`, cashboxID, start, end).Scan(&income, &expense, &count)
	return income, expense, count, err
}

func (r *repository) BalanceBefore(ctx context.Context, cashboxID int64, day time.Time) (float64, error) {
	start := day.Truncate(24 * time.Hour)
	var initial, delta float64
	if err := r.db.QueryRow(ctx, `
		SELECT initial_balance FROM cashboxes WHERE id = $1
	`, cashboxID).Scan(&initial); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'expense' THEN -amount ELSE amount END), 0)
		FROM cashbox_transactions
		WHERE cashbox_id = $1 AND created_at < $2
	`, cashboxID, start).Scan(&delta)
	return initial + delta, err
}
