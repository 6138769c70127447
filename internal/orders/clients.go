package orders

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgClientDirectory struct {
	pool *pgxpool.Pool
}

// NewClientDirectory returns a ClientDirectory backed by the clients table.
// The wider client CRM lives outside this service; orders only need to mint
// an id for walk-in customers.
func NewClientDirectory(pool *pgxpool.Pool) ClientDirectory {
	return &pgClientDirectory{pool: pool}
}

func (d *pgClientDirectory) Register(ctx context.Context, details NewClientDetails) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO clients (name, phone, email, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NOW())
		RETURNING id
	`, details.Name, details.Phone, details.Email).Scan(&id)
	return id, err
}
