package store

import (
	"context"
	"database/sql"
	"errors"

	"craftmarket/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict is returned when a transition's allowed-from guard
	// matches no row, i.e. the order moved on concurrently.
	ErrStateConflict = errors.New("order state conflict")
)

const orderColumns = `order_id, gateway_order_id, item_id, buyer_id, seller_id,
	currency, amount_total, platform_fee, seller_amount, status,
	capture_id, payout_batch_id, payout_item_id, cancel_reason, canceled_at,
	created_at, updated_at`

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, gateway_order_id, item_id, buyer_id, seller_id,
			currency, amount_total, platform_fee, seller_amount, status,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		order.OrderID,
		order.GatewayOrderID,
		order.ItemID,
		order.BuyerID,
		order.SellerID,
		order.Currency,
		order.AmountTotal,
		order.PlatformFee,
		order.SellerAmount,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	return err
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, orderID)
	return scanOrder(row)
}

func (s *Store) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway_order_id=$1`, gatewayOrderID)
	return scanOrder(row)
}

// FindOpenOrder returns the pending order for (buyer, item), if any.
// At most one open order per pair may exist at a time.
func (s *Store) FindOpenOrder(ctx context.Context, buyerID, itemID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE buyer_id=$1 AND item_id=$2 AND status IN ('CREATED','APPROVED')
		ORDER BY updated_at DESC
		LIMIT 1
	`, buyerID, itemID)
	return scanOrder(row)
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE buyer_id=$1
		ORDER BY created_at DESC
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *Store) AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error {
	return s.transition(ctx, `
		UPDATE orders SET gateway_order_id=$2, updated_at=now()
		WHERE order_id=$1 AND status='CREATED'
	`, orderID, gatewayOrderID)
}

func (s *Store) MarkApproved(ctx context.Context, orderID string) error {
	return s.transition(ctx, `
		UPDATE orders SET status='APPROVED', updated_at=now()
		WHERE order_id=$1 AND status='CREATED'
	`, orderID)
}

func (s *Store) MarkPaid(ctx context.Context, orderID, captureID string) error {
	return s.transition(ctx, `
		UPDATE orders SET status='PAID', capture_id=$2, updated_at=now()
		WHERE order_id=$1 AND status IN ('CREATED','APPROVED')
	`, orderID, captureID)
}

func (s *Store) MarkPayoutSent(ctx context.Context, orderID, batchID, itemID string) error {
	return s.transition(ctx, `
		UPDATE orders SET status='PAYOUT_SENT', payout_batch_id=$2, payout_item_id=$3, updated_at=now()
		WHERE order_id=$1 AND status='PAID'
	`, orderID, batchID, itemID)
}

func (s *Store) MarkPayoutFailed(ctx context.Context, orderID string) error {
	return s.transition(ctx, `
		UPDATE orders SET status='PAYOUT_FAILED', updated_at=now()
		WHERE order_id=$1 AND status='PAID'
	`, orderID)
}

func (s *Store) MarkCanceled(ctx context.Context, orderID, reason string) error {
	return s.transition(ctx, `
		UPDATE orders SET status='CANCELED', cancel_reason=$2, canceled_at=now(), updated_at=now()
		WHERE order_id=$1 AND status IN ('CREATED','APPROVED')
	`, orderID, reason)
}

func (s *Store) MarkExpired(ctx context.Context, orderID, reason string) error {
	return s.transition(ctx, `
		UPDATE orders SET status='EXPIRED', cancel_reason=$2, canceled_at=now(), updated_at=now()
		WHERE order_id=$1 AND status IN ('CREATED','APPROVED')
	`, orderID, reason)
}

func (s *Store) transition(ctx context.Context, query string, args ...any) error {
	res, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order
	var canceledAt sql.NullTime

	err := row.Scan(
		&order.OrderID,
		&order.GatewayOrderID,
		&order.ItemID,
		&order.BuyerID,
		&order.SellerID,
		&order.Currency,
		&order.AmountTotal,
		&order.PlatformFee,
		&order.SellerAmount,
		&order.Status,
		&order.CaptureID,
		&order.PayoutBatchID,
		&order.PayoutItemID,
		&order.CancelReason,
		&canceledAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if canceledAt.Valid {
		order.CanceledAt = &canceledAt.Time
	}
	return &order, nil
}
