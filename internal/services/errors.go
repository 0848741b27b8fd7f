package services

import (
	"errors"
	"fmt"

	"craftmarket/internal/models"
)

// Validation errors: terminal, never retried.
var (
	ErrItemNotFound       = errors.New("item not found")
	ErrItemNotPurchasable = errors.New("item is not purchasable")
	ErrSelfPurchase       = errors.New("cannot purchase own item")
	ErrInvalidPrice       = errors.New("item price is invalid")
)

// State-conflict errors: terminal, the caller should resume, not retry.
var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrAccessDenied          = errors.New("access denied")
	ErrOrderAlreadyProcessed = errors.New("order already processed")
	ErrOrderCanceled         = errors.New("order is canceled")
	ErrInvalidOrderState     = errors.New("invalid order state")
)

// Gateway errors: the order is left in its last consistent state and the
// caller may retry.
var (
	ErrSellerPayoutMissing = errors.New("seller payout destination missing")
	ErrCaptureFailed       = errors.New("capture failed")
	ErrPayoutFailed        = errors.New("payout failed")
)

// PendingOrderError carries the existing open order so the caller can resume
// the pending purchase instead of creating a duplicate.
type PendingOrderError struct {
	OrderID        string
	GatewayOrderID string
	Status         models.OrderStatus
}

func (e *PendingOrderError) Error() string {
	return fmt.Sprintf("order %s already pending in state %s", e.OrderID, e.Status)
}
