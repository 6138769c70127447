package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentique-erp/rentique-erp/internal/platform/db"
)

var ErrNotFound = errors.New("payment not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Payment, error)
	List(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error)
	Create(ctx context.Context, p Payment) (int64, error)
	InsertAllocation(ctx context.Context, alloc Allocation) (int64, error)
	// UpdateStatusCAS flips the status only when the current value matches;
	// false means the payment already left the source state.
	UpdateStatusCAS(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error)
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

const paymentColumns = `id, order_id, cashbox_id, amount, status, type, created_at, paid_at, canceled_at`

func (r *repository) Get(ctx context.Context, id int64) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.Allocations, err = r.listAllocations(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.OrderID != nil {
		conditions = append(conditions, fmt.Sprintf("order_id = $%d", argPos))
		args = append(args, *req.OrderID)
		argPos++
	}
	if req.CashboxID != nil {
		conditions = append(conditions, fmt.Sprintf("cashbox_id = $%d", argPos))
		args = append(args, *req.CashboxID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM payments "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if req.Page > 1 {
		offset = (req.Page - 1) * limit
	}

	query := fmt.Sprintf("SELECT "+paymentColumns+" FROM payments %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPaymentFromRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if out[i].Allocations, err = r.listAllocations(ctx, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *repository) Create(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, cashbox_id, amount, status, type, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, p.OrderID, p.CashboxID, p.Amount, p.Status, p.Type).Scan(&id)
	return id, err
}

func (r *repository) InsertAllocation(ctx context.Context, alloc Allocation) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO payment_allocations (payment_id, cloth_id, amount)
		VALUES ($1, $2, $3)
		RETURNING id
	`, alloc.PaymentID, alloc.ClothID, alloc.Amount).Scan(&id)
	return id, err
}

func (r *repository) UpdateStatusCAS(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	column := "paid_at"
	if to == StatusCanceled {
		column = "canceled_at"
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE payments SET status = $1, `+column+` = $2 WHERE id = $3 AND status = $4
	`, to, at, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) listAllocations(ctx context.Context, paymentID int64) ([]Allocation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, payment_id, cloth_id, amount FROM payment_allocations WHERE payment_id = $1 ORDER BY id
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.ClothID, &a.Amount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.CashboxID, &p.Amount, &p.Status, &p.Type,
		&p.CreatedAt, &p.PaidAt, &p.CanceledAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPaymentFromRows(rows pgx.Rows) (*Payment, error) {
	var p Payment
	err := rows.Scan(&p.ID, &p.OrderID, &p.CashboxID, &p.Amount, &p.Status, &p.Type,
		&p.CreatedAt, &p.PaidAt, &p.CanceledAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
