package models

import "time"

type OrderStatus string

const (
	OrderCreated      OrderStatus = "CREATED"
	OrderApproved     OrderStatus = "APPROVED"
	OrderPaid         OrderStatus = "PAID"
	OrderPayoutSent   OrderStatus = "PAYOUT_SENT"
	OrderPayoutFailed OrderStatus = "PAYOUT_FAILED"
	OrderCanceled     OrderStatus = "CANCELED"
	OrderExpired      OrderStatus = "EXPIRED"
)

// Open reports whether the order still awaits capture.
func (s OrderStatus) Open() bool {
	return s == OrderCreated || s == OrderApproved
}

// Settled reports whether buyer money has already been captured.
func (s OrderStatus) Settled() bool {
	return s == OrderPaid || s == OrderPayoutSent || s == OrderPayoutFailed
}

type Order struct {
	OrderID        string
	GatewayOrderID string
	ItemID         string
	BuyerID        string
	SellerID       string
	Currency       string
	AmountTotal    int64
	PlatformFee    int64
	SellerAmount   int64
	Status         OrderStatus
	CaptureID      string
	PayoutBatchID  string
	PayoutItemID   string
	CancelReason   string
	CanceledAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Item struct {
	ItemID     string
	SellerID   string
	Title      string
	PriceCents int64
	Published  bool
	Sold       bool
}
