package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type gatewayStub struct {
	mux        *http.ServeMux
	tokenCalls int
}

func newGatewayStub(t *testing.T) (*gatewayStub, *httptest.Server) {
	t.Helper()
	stub := &gatewayStub{mux: http.NewServeMux()}

	stub.mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		stub.tokenCalls++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})

	srv := httptest.NewServer(stub.mux)
	t.Cleanup(srv.Close)
	return stub, srv
}

func newTestPayPal(srv *httptest.Server) *PayPal {
	return &PayPal{
		baseURL:      srv.URL,
		clientID:     "client-id",
		clientSecret: "client-secret",
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
}

func TestCreateIntent(t *testing.T) {
	stub, srv := newGatewayStub(t)
	stub.mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)

		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "CAPTURE", req.Intent)
		require.Len(t, req.PurchaseUnits, 1)
		require.Equal(t, "USD", req.PurchaseUnits[0].Amount.CurrencyCode)
		require.Equal(t, "100.00", req.PurchaseUnits[0].Amount.Value)
		require.Equal(t, "https://market.test/orders/gateway-return", req.ApplicationContext.ReturnURL)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "GW-123",
			"status": "CREATED",
			"links": []map[string]string{
				{"href": "https://gateway.test/self", "rel": "self"},
				{"href": "https://gateway.test/approve/GW-123", "rel": "approve"},
			},
		})
	})

	p := newTestPayPal(srv)
	intent, err := p.CreateIntent(context.Background(), "USD", 10000,
		"https://market.test/orders/gateway-return", "https://market.test/orders/gateway-cancel")
	require.NoError(t, err)
	require.Equal(t, "GW-123", intent.OrderID)
	require.Equal(t, "https://gateway.test/approve/GW-123", intent.ApproveLink)
}

func TestCapture(t *testing.T) {
	stub, srv := newGatewayStub(t)
	stub.mux.HandleFunc("POST /v2/checkout/orders/GW-123/capture", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "GW-123",
			"status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]string{{"id": "CAP-9", "status": "COMPLETED"}},
				},
			}},
		})
	})

	p := newTestPayPal(srv)
	result, err := p.Capture(context.Background(), "GW-123")
	require.NoError(t, err)
	require.Equal(t, CaptureCompleted, result.Status)
	require.Equal(t, "CAP-9", result.CaptureID)
}

func TestPayout(t *testing.T) {
	stub, srv := newGatewayStub(t)
	stub.mux.HandleFunc("POST /v1/payments/payouts", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)

		var req payoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.SenderBatchHeader.SenderBatchID)
		require.Len(t, req.Items, 1)
		require.Equal(t, "EMAIL", req.Items[0].RecipientType)
		require.Equal(t, "seller@example.com", req.Items[0].Receiver)
		require.Equal(t, "90.50", req.Items[0].Amount.Value)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"batch_header": map[string]string{"payout_batch_id": "BATCH-7"},
			"items":        []map[string]string{{"payout_item_id": "PITEM-3"}},
		})
	})

	p := newTestPayPal(srv)
	result, err := p.Payout(context.Background(), "seller@example.com", "USD", 9050, "Payout for order x")
	require.NoError(t, err)
	require.Equal(t, "BATCH-7", result.BatchID)
	require.Equal(t, "PITEM-3", result.ItemID)
}

func TestTokenIsCached(t *testing.T) {
	stub, srv := newGatewayStub(t)
	stub.mux.HandleFunc("POST /v2/checkout/orders/GW-1/capture", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "GW-1", "status": "COMPLETED"})
	})

	p := newTestPayPal(srv)
	ctx := context.Background()
	_, err := p.Capture(ctx, "GW-1")
	require.NoError(t, err)
	_, err = p.Capture(ctx, "GW-1")
	require.NoError(t, err)
	require.Equal(t, 1, stub.tokenCalls)
}

func TestTokenFailure(t *testing.T) {
	_, srv := newGatewayStub(t)

	p := newTestPayPal(srv)
	p.clientSecret = "wrong"
	_, err := p.Capture(context.Background(), "GW-1")
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestAPIErrorSurfacesStatus(t *testing.T) {
	stub, srv := newGatewayStub(t)
	stub.mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
	})

	p := newTestPayPal(srv)
	_, err := p.CreateIntent(context.Background(), "USD", 100, "https://r", "https://c")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "0.05", formatAmount(5))
	require.Equal(t, "1.00", formatAmount(100))
	require.Equal(t, "99.99", formatAmount(9999))
	require.Equal(t, "100.00", formatAmount(10000))
}
