package store

import (
	"context"
	"errors"

	"craftmarket/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog reads sellable items. The settlement engine never mutates an item
// beyond flipping its informational sold flag.
type Catalog struct {
	Pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{Pool: pool}
}

func (c *Catalog) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	row := c.Pool.QueryRow(ctx, `
		SELECT item_id, seller_id, title, price_cents, published, sold
		FROM items WHERE item_id=$1
	`, itemID)

	var item models.Item
	err := row.Scan(
		&item.ItemID,
		&item.SellerID,
		&item.Title,
		&item.PriceCents,
		&item.Published,
		&item.Sold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// MarkItemSold is idempotent; re-selling an already sold item is allowed.
func (c *Catalog) MarkItemSold(ctx context.Context, itemID string) error {
	_, err := c.Pool.Exec(ctx, `UPDATE items SET sold=true WHERE item_id=$1`, itemID)
	return err
}
