package custody

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentique-erp/rentique-erp/internal/platform/db"
)

var ErrNotFound = errors.New("custody not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Custody, error)
	ListByOrder(ctx context.Context, orderID int64) ([]Custody, error)
	Create(ctx context.Context, c Custody) (int64, error)
	// ResolveCAS stamps the terminal state only while the record is still
	// pending; false means another resolve already won.
	ResolveCAS(ctx context.Context, id int64, to Status, reason *string, ackPhotos []string, at time.Time) (bool, error)
	CountOpenByOrder(ctx context.Context, orderID int64) (int, error)
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

const custodyColumns = `id, order_id, type, amount, description, photos, status, reason_of_kept,
	ack_photos, created_at, resolved_at`

func (r *repository) Get(ctx context.Context, id int64) (*Custody, error) {
	row := r.db.QueryRow(ctx, `SELECT `+custodyColumns+` FROM custodies WHERE id = $1`, id)
	c, err := scanCustody(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID int64) ([]Custody, error) {
	rows, err := r.db.Query(ctx, `SELECT `+custodyColumns+` FROM custodies WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Custody
	for rows.Next() {
		var c Custody
		if err := rows.Scan(&c.ID, &c.OrderID, &c.Type, &c.Amount, &c.Description, &c.Photos, &c.Status,
			&c.ReasonOfKept, &c.AckPhotos, &c.CreatedAt, &c.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Custody) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO custodies (order_id, type, amount, description, photos, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id
	`, c.OrderID, c.Type, c.Amount, c.Description, c.Photos, c.Status).Scan(&id)
	return id, err
}

func (r *repository) ResolveCAS(ctx context.Context, id int64, to Status, reason *string, ackPhotos []string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE custodies SET status = $1, reason_of_kept = $2, ack_photos = $3, resolved_at = $4
		WHERE id = $5 AND status = $6
	`, to, reason, ackPhotos, at, id, StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) CountOpenByOrder(ctx context.Context, orderID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM custodies WHERE order_id = $1 AND status = $2
	`, orderID, StatusPending).Scan(&n)
	return n, err
}

func scanCustody(row pgx.Row) (*Custody, error) {
	var c Custody
	err := row.Scan(&c.ID, &c.OrderID, &c.Type, &c.Amount, &c.Description, &c.Photos, &c.Status,
		&c.ReasonOfKept, &c.AckPhotos, &c.CreatedAt, &c.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
