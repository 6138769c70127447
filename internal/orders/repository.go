package orders

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

var ErrNotFound = errors.New("order not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error)
	Create(ctx context.Context, order Order) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	DeleteItems(ctx context.Context, orderID int64) error
	Delete(ctx context.Context, id int64) error
	UpdateFinancials(ctx context.Context, id int64, total, paid, remaining float64, status Status) error
	UpdateStatusCAS(ctx context.Context, id int64, from, to Status) (bool, error)
	SetDelivered(ctx context.Context, id int64, at time.Time) (bool, error)
	UpdateDiscount(ctx context.Context, id int64, discountType DiscountType, discountValue float64) error
	UpdateItemPayment(ctx context.Context, itemID int64, paid, remaining float64) error
	SetItemReturnable(ctx context.Context, itemID int64, returnable bool) error
	SetOverdueFlag(ctx context.Context, id int64, overdue bool) error
	ListDelivered(ctx context.Context) ([]Order, error)
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

const orderColumns = `id, client_id, entity_type, entity_id, status, discount_type, discount_value,
	total_price, paid, remaining, delivered_at, created_at, updated_at`

const itemColumns = `id, order_id, cloth_id, type, price, quantity, days_of_rent, occasion_date,
	delivery_date, discount_type, discount_value, returnable, item_paid, item_remaining`

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	order.Items, err = scanItems(rows)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.EntityType != nil {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argPos))
		args = append(args, *req.EntityType)
		argPos++
	}
	if req.EntityID != nil {
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", argPos))
		args = append(args, *req.EntityID)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders "+whereClause, args...).Scan(&total); err != nil {
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

	query := fmt.Sprintf("SELECT "+orderColumns+" FROM orders %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		order, err := scanOrderFromRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) Create(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (client_id, entity_type, entity_id, status, discount_type, discount_value,
			total_price, paid, remaining, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id
	`, o.ClientID, o.EntityType, o.EntityID, o.Status, o.DiscountType, o.DiscountValue,
		o.TotalPrice, o.Paid, o.Remaining).Scan(&id)
	return id, err
}

func (r *repository) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, cloth_id, type, price, quantity, days_of_rent, occasion_date,
			delivery_date, discount_type, discount_value, returnable, item_paid, item_remaining)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, item.OrderID, item.ClothID, item.Type, item.Price, item.Quantity, item.DaysOfRent, item.OccasionDate,
		item.DeliveryDate, item.DiscountType, item.DiscountValue, item.Returnable, item.Paid, item.Remaining).Scan(&id)
	return id, err
}

func (r *repository) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	if err := r.DeleteItems(ctx, id); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

func (r *repository) UpdateFinancials(ctx context.Context, id int64, total, paid, remaining float64, status Status) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET total_price = $1, paid = $2, remaining = $3, status = $4, updated_at = NOW()
		WHERE id = $5
	`, total, paid, remaining, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatusCAS flips the status only when the current value matches.
// The false return signals a lost race or an illegal source state.
func (r *repository) UpdateStatusCAS(ctx context.Context, id int64, from, to Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) SetDelivered(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, delivered_at = $2, updated_at = NOW() WHERE id = $3 AND status = $4
	`, StatusDelivered, at, id, StatusPaid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) UpdateDiscount(ctx context.Context, id int64, discountType DiscountType, discountValue float64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE orders SET discount_type = $1, discount_value = $2, updated_at = NOW() WHERE id = $3
	`, discountType, discountValue, id)
	return err
}

func (r *repository) UpdateItemPayment(ctx context.Context, itemID int64, paid, remaining float64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE order_items SET item_paid = $1, item_remaining = $2 WHERE id = $3
	`, paid, remaining, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetItemReturnable(ctx context.Context, itemID int64, returnable bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE order_items SET returnable = $1 WHERE id = $2`, returnable, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetOverdueFlag(ctx context.Context, id int64, overdue bool) error {
	_, err := r.db.Exec(ctx, `UPDATE orders SET is_overdue = $1, updated_at = NOW() WHERE id = $2`, overdue, id)
	return err
}

func (r *repository) ListDelivered(ctx context.Context) ([]Order, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1`, StatusDelivered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		order, err := scanOrderFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		itemRows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items, err = scanItems(itemRows)
		itemRows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ClientID, &o.EntityType, &o.EntityID, &o.Status, &o.DiscountType, &o.DiscountValue,
		&o.TotalPrice, &o.Paid, &o.Remaining, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanOrderFromRows(rows pgx.Rows) (*Order, error) {
	var o Order
	err := rows.Scan(&o.ID, &o.ClientID, &o.EntityType, &o.EntityID, &o.Status, &o.DiscountType, &o.DiscountValue,
		&o.TotalPrice, &o.Paid, &o.Remaining, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanItems(rows pgx.Rows) ([]OrderItem, error) {
	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ClothID, &item.Type, &item.Price, &item.Quantity,
			&item.DaysOfRent, &item.OccasionDate, &item.DeliveryDate, &item.DiscountType, &item.DiscountValue,
			&item.Returnable, &item.Paid, &item.Remaining); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
