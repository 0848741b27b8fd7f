package gateway

import (
	"context"
	"errors"
	"fmt"
)

// CaptureCompleted is the only capture status treated as success.
const CaptureCompleted = "COMPLETED"

// ErrAuthFailed reports a failed client-credentials token exchange.
var ErrAuthFailed = errors.New("gateway auth failed")

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gateway http status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gateway http status %d", e.StatusCode)
}

type Intent struct {
	OrderID     string
	ApproveLink string
}

type CaptureResult struct {
	Status    string
	CaptureID string
}

type PayoutResult struct {
	BatchID string
	ItemID  string
}

// Client abstracts the remote payment provider. The concrete provider is
// interchangeable; amounts are integer cents.
type Client interface {
	CreateIntent(ctx context.Context, currency string, amount int64, returnURL, cancelURL string) (*Intent, error)
	Capture(ctx context.Context, gatewayOrderID string) (*CaptureResult, error)
	Payout(ctx context.Context, receiver, currency string, amount int64, note string) (*PayoutResult, error)
}
