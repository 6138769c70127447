package transfers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentique-erp/rentique-erp/internal/platform/db"
)

var ErrNotFound = errors.New("transfer not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Transfer, error)
	List(ctx context.Context, req ListTransfersRequest) ([]Transfer, int, error)
	Create(ctx context.Context, t Transfer) (int64, error)
	InsertItem(ctx context.Context, item TransferItem) (int64, error)
	// DecideItemCAS settles one item only while it is still pending; false
	// means another decision got there first.
	DecideItemCAS(ctx context.Context, itemID int64, to ItemStatus) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
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

const transferColumns = `id, ref_id, from_type, from_id, to_type, to_id, transfer_date, status, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Transfer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.Items, err = r.listItems(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repository) List(ctx context.Context, req ListTransfersRequest) ([]Transfer, int, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if req.Status != nil {
		where += " AND status = $1"
		args = append(args, *req.Status)
		argPos++
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM transfers "+where, args...).Scan(&total); err != nil {
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

	query := fmt.Sprintf("SELECT "+transferColumns+" FROM transfers %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		where, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		t, err := scanTransferFromRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if out[i].Items, err = r.listItems(ctx, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *repository) Create(ctx context.Context, t Transfer) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO transfers (ref_id, from_type, from_id, to_type, to_id, transfer_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id
	`, t.RefID, t.FromType, t.FromID, t.ToType, t.ToID, t.TransferDate, t.Status).Scan(&id)
	return id, err
}

func (r *repository) InsertItem(ctx context.Context, item TransferItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO transfer_items (transfer_id, cloth_id, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`, item.TransferID, item.ClothID, item.Status).Scan(&id)
	return id, err
}

func (r *repository) DecideItemCAS(ctx context.Context, itemID int64, to ItemStatus) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE transfer_items SET status = $1 WHERE id = $2 AND status = $3
	`, to, itemID, ItemPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transfers SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) listItems(ctx context.Context, transferID int64) ([]TransferItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, transfer_id, cloth_id, status FROM transfer_items WHERE transfer_id = $1 ORDER BY id
	`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransferItem
	for rows.Next() {
		var item TransferItem
		if err := rows.Scan(&item.ID, &item.TransferID, &item.ClothID, &item.Status); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanTransfer(row pgx.Row) (*Transfer, error) {
	var t Transfer
	err := row.Scan(&t.ID, &t.RefID, &t.FromType, &t.FromID, &t.ToType, &t.ToID,
		&t.TransferDate, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTransferFromRows(rows pgx.Rows) (*Transfer, error) {
	var t Transfer
	err := rows.Scan(&t.ID, &t.RefID, &t.FromType, &t.FromID, &t.ToType, &t.ToID,
		&t.TransferDate, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
