package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"craftmarket/internal/fees"
	"craftmarket/internal/gateway"
	"craftmarket/internal/metrics"
	"craftmarket/internal/models"
	"craftmarket/internal/store"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	reasonAutoExpired   = "auto-expired, retry allowed"
	reasonGatewayCancel = "gateway-cancel"
	reasonUserCancel    = "user-cancel"
)

// OrderStore is the persistence boundary for orders. Transition methods
// enforce their allowed-from set and return store.ErrStateConflict when the
// order has already moved on.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	FindOpenOrder(ctx context.Context, buyerID, itemID string) (*models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*models.Order, error)
	AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error
	MarkApproved(ctx context.Context, orderID string) error
	MarkPaid(ctx context.Context, orderID, captureID string) error
	MarkPayoutSent(ctx context.Context, orderID, batchID, itemID string) error
	MarkPayoutFailed(ctx context.Context, orderID string) error
	MarkCanceled(ctx context.Context, orderID, reason string) error
	MarkExpired(ctx context.Context, orderID, reason string) error
}

// Catalog is the read-mostly item lookup owned by another subsystem.
type Catalog interface {
	GetItem(ctx context.Context, itemID string) (*models.Item, error)
	MarkItemSold(ctx context.Context, itemID string) error
}

// Identity resolves a user's payout destination.
type Identity interface {
	PayoutEmail(ctx context.Context, userID string) (string, error)
}

type OrderService struct {
	Store         OrderStore
	Catalog       Catalog
	Identity      Identity
	Gateway       gateway.Client
	Fees          fees.Calculator
	Metrics       *metrics.Metrics
	Currency      string
	TTL           time.Duration
	PublicBaseURL string

	// Now overrides the staleness clock in tests.
	Now func() time.Time
}

type PurchaseIntent struct {
	Order       *models.Order
	ApproveLink string
}

// CreatePurchaseIntent validates purchase eligibility, expires a stale
// predecessor if one exists, and registers a new order with the gateway.
func (s *OrderService) CreatePurchaseIntent(ctx context.Context, buyerID, itemID string) (*PurchaseIntent, error) {
	item, err := s.Catalog.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	if !item.Published {
		return nil, ErrItemNotPurchasable
	}
	if item.SellerID == buyerID {
		return nil, ErrSelfPurchase
	}

	open, err := s.Store.FindOpenOrder(ctx, buyerID, itemID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if open != nil {
		if s.now().Sub(open.UpdatedAt) > s.TTL {
			if err := s.Store.MarkExpired(ctx, open.OrderID, reasonAutoExpired); err != nil {
				return nil, err
			}
			s.Metrics.OrderExpired()
			log.WithFields(log.Fields{
				"order_id": open.OrderID,
				"buyer_id": buyerID,
				"item_id":  itemID,
			}).Info("expired stale pending order")
		} else {
			return nil, &PendingOrderError{
				OrderID:        open.OrderID,
				GatewayOrderID: open.GatewayOrderID,
				Status:         open.Status,
			}
		}
	}

	payoutEmail, err := s.Identity.PayoutEmail(ctx, item.SellerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if payoutEmail == "" {
		return nil, ErrSellerPayoutMissing
	}

	if item.PriceCents <= 0 {
		return nil, ErrInvalidPrice
	}
	fee, sellerAmount := s.Fees.Split(item.PriceCents)

	now := s.now()
	order := &models.Order{
		OrderID:      uuid.NewString(),
		ItemID:       item.ItemID,
		BuyerID:      buyerID,
		SellerID:     item.SellerID,
		Currency:     s.Currency,
		AmountTotal:  item.PriceCents,
		PlatformFee:  fee,
		SellerAmount: sellerAmount,
		Status:       models.OrderCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	// Callbacks point at this system, never at the buyer's browser URL,
	// so the gateway cannot redirect into a loop.
	intent, err := s.Gateway.CreateIntent(ctx, order.Currency, order.AmountTotal,
		s.PublicBaseURL+"/orders/gateway-return",
		s.PublicBaseURL+"/orders/gateway-cancel",
	)
	if err != nil {
		return nil, err
	}
	if err := s.Store.AttachGatewayOrder(ctx, order.OrderID, intent.OrderID); err != nil {
		return nil, err
	}
	order.GatewayOrderID = intent.OrderID

	s.Metrics.OrderCreated()
	log.WithFields(log.Fields{
		"order_id":         order.OrderID,
		"gateway_order_id": order.GatewayOrderID,
		"amount_total":     order.AmountTotal,
		"platform_fee":     order.PlatformFee,
	}).Info("purchase intent created")

	return &PurchaseIntent{Order: order, ApproveLink: intent.ApproveLink}, nil
}

// Capture settles a buyer-approved order: it captures the buyer's funds and
// then forwards the seller's share. The state guard up front is the backstop
// against double-capture; it never calls the gateway for a settled order.
func (s *OrderService) Capture(ctx context.Context, buyerID, gatewayOrderID string) (*models.Order, error) {
	order, err := s.Store.GetOrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, ErrAccessDenied
	}

	switch {
	case order.Status.Settled():
		return nil, ErrOrderAlreadyProcessed
	case order.Status == models.OrderCanceled:
		return nil, ErrOrderCanceled
	case !order.Status.Open():
		return nil, ErrInvalidOrderState
	}

	capture, err := s.Gateway.Capture(ctx, gatewayOrderID)
	if err != nil {
		s.Metrics.CaptureFailed()
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if capture.Status != gateway.CaptureCompleted {
		s.Metrics.CaptureFailed()
		return nil, fmt.Errorf("%w: gateway reported status %s", ErrCaptureFailed, capture.Status)
	}

	if err := s.Store.MarkPaid(ctx, order.OrderID, capture.CaptureID); err != nil {
		return nil, err
	}
	order.Status = models.OrderPaid
	order.CaptureID = capture.CaptureID
	s.Metrics.CaptureDone()

	// The sold flag is informational; losing it must not fail a settlement
	// whose money has already moved.
	if err := s.Catalog.MarkItemSold(ctx, order.ItemID); err != nil {
		log.WithError(err).WithField("item_id", order.ItemID).Warn("mark item sold failed")
	}

	payoutEmail, err := s.Identity.PayoutEmail(ctx, order.SellerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if payoutEmail == "" {
		// Funds are captured; the order stays PAID so the payout can be
		// retried out-of-band.
		return nil, ErrSellerPayoutMissing
	}

	note := fmt.Sprintf("Payout for order %s", order.OrderID)
	payout, err := s.Gateway.Payout(ctx, payoutEmail, order.Currency, order.SellerAmount, note)
	if err != nil {
		s.Metrics.PayoutFailed()
		s.markPayoutFailed(ctx, order, err)
		return nil, fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	if err := s.Store.MarkPayoutSent(ctx, order.OrderID, payout.BatchID, payout.ItemID); err != nil {
		return nil, err
	}
	order.Status = models.OrderPayoutSent
	order.PayoutBatchID = payout.BatchID
	order.PayoutItemID = payout.ItemID
	s.Metrics.PayoutSent()

	log.WithFields(log.Fields{
		"order_id":        order.OrderID,
		"capture_id":      order.CaptureID,
		"payout_batch_id": order.PayoutBatchID,
	}).Info("order settled")
	return order, nil
}

// markPayoutFailed is the compensating transition for a capture whose payout
// did not go through. The capture is real money movement, so the order must
// never revert; it moves PAID -> PAYOUT_FAILED and stays auditable.
func (s *OrderService) markPayoutFailed(ctx context.Context, order *models.Order, cause error) {
	if err := s.Store.MarkPayoutFailed(ctx, order.OrderID); err != nil {
		log.WithError(err).WithField("order_id", order.OrderID).
			Error("payout-failed write did not apply, order remains PAID")
		return
	}
	order.Status = models.OrderPayoutFailed
	log.WithError(cause).WithField("order_id", order.OrderID).Warn("payout failed")
}

// HandleGatewayReturn serves the gateway's browser redirect after the buyer
// approved payment on the gateway's site. No capture has necessarily happened;
// the APPROVED state is advisory, not a financial transition.
func (s *OrderService) HandleGatewayReturn(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	order, err := s.Store.GetOrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.Status != models.OrderCreated {
		return order, nil
	}
	if err := s.Store.MarkApproved(ctx, order.OrderID); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return s.Store.GetOrderByGatewayID(ctx, gatewayOrderID)
		}
		return nil, err
	}
	order.Status = models.OrderApproved
	return order, nil
}

// HandleGatewayCancel clears a pending order the buyer abandoned on the
// gateway's site so it does not block the next purchase attempt.
func (s *OrderService) HandleGatewayCancel(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	order, err := s.Store.GetOrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if !order.Status.Open() {
		return order, nil
	}
	if err := s.Store.MarkCanceled(ctx, order.OrderID, reasonGatewayCancel); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return s.Store.GetOrderByGatewayID(ctx, gatewayOrderID)
		}
		return nil, err
	}
	order.Status = models.OrderCanceled
	order.CancelReason = reasonGatewayCancel
	s.Metrics.OrderCanceled()
	return order, nil
}

// Cancel lets the order's buyer abandon a still-open order without waiting
// for TTL expiry.
func (s *OrderService) Cancel(ctx context.Context, buyerID, orderID string) (*models.Order, error) {
	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, ErrAccessDenied
	}
	if !order.Status.Open() {
		return nil, ErrInvalidOrderState
	}

	if err := s.Store.MarkCanceled(ctx, order.OrderID, reasonUserCancel); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return nil, ErrInvalidOrderState
		}
		return nil, err
	}
	order.Status = models.OrderCanceled
	order.CancelReason = reasonUserCancel
	s.Metrics.OrderCanceled()
	log.WithFields(log.Fields{"order_id": orderID, "buyer_id": buyerID}).Info("order canceled by buyer")
	return order, nil
}

// GetOrder returns the buyer's own order.
func (s *OrderService) GetOrder(ctx context.Context, buyerID, orderID string) (*models.Order, error) {
	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, ErrAccessDenied
	}
	return order, nil
}

// ListOrders returns all of the buyer's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, buyerID string) ([]*models.Order, error) {
	return s.Store.ListOrdersByBuyer(ctx, buyerID)
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
