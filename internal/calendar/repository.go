package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentique-erp/rentique-erp/internal/platform/db"
)

var (
	ErrNotFound = errors.New("reservation not found")
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	ListActiveByItems(ctx context.Context, itemIDs []int64) ([]Reservation, error)
	ListByOrder(ctx context.Context, orderID int64) ([]Reservation, error)
	Insert(ctx context.Context, res Reservation) (int64, error)
	Delete(ctx context.Context, id int64) error
	DeleteByOrder(ctx context.Context, orderID int64) (int64, error)
	DeleteByOrderItemRange(ctx context.Context, orderID, itemID int64, r Range) (int64, error)
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

func (r *repository) ListActiveByItems(ctx context.Context, itemIDs []int64) ([]Reservation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, item_id, order_id, start_date, end_date, created_at
		FROM reservations
		WHERE item_id = ANY($1)
		ORDER BY item_id, start_date
	`, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *repository) ListByOrder(ctx context.Context, orderID int64) ([]Reservation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, item_id, order_id, start_date, end_date, created_at
		FROM reservations
		WHERE order_id = $1
		ORDER BY item_id, start_date
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *repository) Insert(ctx context.Context, res Reservation) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO reservations (item_id, order_id, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, res.ItemID, res.OrderID, res.Range.Start, res.Range.End, time.Now()).Scan(&id)
	return id, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteByOrder(ctx context.Context, orderID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) DeleteByOrderItemRange(ctx context.Context, orderID, itemID int64, rng Range) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM reservations
		WHERE order_id = $1 AND item_id = $2 AND start_date = $3 AND end_date = $4
	`, orderID, itemID, rng.Start, rng.End)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanReservations(rows pgx.Rows) ([]Reservation, error) {
	var out []Reservation
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.ID, &res.ItemID, &res.OrderID, &res.Range.Start, &res.Range.End, &res.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
