package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentique-erp/rentique-erp/internal/platform/db"
)

var ErrNotFound = errors.New("item not found")

type ListFilter struct {
	Status     *ItemStatus
	HolderType *HolderType
	HolderID   *int64
	Type       *string
	Limit      int
	Offset     int
}

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Item, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Item, error)
	List(ctx context.Context, filter ListFilter) ([]Item, int, error)
	UpdateStatus(ctx context.Context, id int64, from, to ItemStatus) error
	SetStatus(ctx context.Context, id int64, status ItemStatus) error
	UpdateHolder(ctx context.Context, id int64, holderType HolderType, holderID int64) error
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

const itemColumns = `id, code, name, type, status, holder_type, holder_id, rent_price, sale_price, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Item, error) {
	row := r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *repository) ListByIDs(ctx context.Context, ids []int64) ([]Item, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.HolderType != nil {
		conditions = append(conditions, fmt.Sprintf("holder_type = $%d", argPos))
		args = append(args, *filter.HolderType)
		argPos++
	}
	if filter.HolderID != nil {
		conditions = append(conditions, fmt.Sprintf("holder_id = $%d", argPos))
		args = append(args, *filter.HolderID)
		argPos++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, *filter.Type)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM inventory_items "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT "+itemColumns+" FROM inventory_items %s ORDER BY id LIMIT $%d OFFSET $%d", whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateStatus is a compare-and-set: it fails with ErrNotFound when the item
// is not in the expected status anymore.
func (r *repository) UpdateStatus(ctx context.Context, id int64, from, to ItemStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE inventory_items SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, status ItemStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE inventory_items SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateHolder(ctx context.Context, id int64, holderType HolderType, holderID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE inventory_items SET holder_type = $1, holder_id = $2, updated_at = NOW() WHERE id = $3`, holderType, holderID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Code, &item.Name, &item.Type, &item.Status, &item.HolderType, &item.HolderID,
		&item.RentPrice, &item.SalePrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Code, &item.Name, &item.Type, &item.Status, &item.HolderType, &item.HolderID,
			&item.RentPrice, &item.SalePrice, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
