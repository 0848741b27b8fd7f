package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"craftmarket/internal/fees"
	"craftmarket/internal/gateway"
	"craftmarket/internal/metrics"
	"craftmarket/internal/models"
	"craftmarket/internal/services"
	"craftmarket/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	created int
}

func (g *stubGateway) CreateIntent(_ context.Context, currency string, amount int64, returnURL, cancelURL string) (*gateway.Intent, error) {
	g.created++
	id := fmt.Sprintf("GW-%d", g.created)
	return &gateway.Intent{OrderID: id, ApproveLink: "https://gateway.test/approve/" + id}, nil
}

func (g *stubGateway) Capture(_ context.Context, gatewayOrderID string) (*gateway.CaptureResult, error) {
	return &gateway.CaptureResult{Status: gateway.CaptureCompleted, CaptureID: "CAP-1"}, nil
}

func (g *stubGateway) Payout(_ context.Context, receiver, currency string, amount int64, note string) (*gateway.PayoutResult, error) {
	return &gateway.PayoutResult{BatchID: "BATCH-1", ItemID: "PITEM-1"}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	catalog := store.NewMemoryCatalog()
	catalog.PutItem(models.Item{
		ItemID:     "item-1",
		SellerID:   "seller-1",
		Title:      "Icon pack",
		PriceCents: 4900,
		Published:  true,
	})
	identity := store.NewMemoryIdentity()
	identity.SetPayoutEmail("seller-1", "seller@example.com")

	svc := &services.OrderService{
		Store:         store.NewMemory(),
		Catalog:       catalog,
		Identity:      identity,
		Gateway:       &stubGateway{},
		Fees:          fees.Calculator{Percent: 10},
		Metrics:       metrics.NewWithRegisterer(prometheus.NewRegistry()),
		Currency:      "USD",
		TTL:           30 * time.Minute,
		PublicBaseURL: "https://market.test",
	}
	return NewServer(NewHandler(svc))
}

func doRequest(t *testing.T, srv *Server, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateOrderEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/orders/create", "buyer-1", `{"itemId":"item-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "GW-1", body["gatewayOrderId"])
	require.Equal(t, "https://gateway.test/approve/GW-1", body["approveLink"])
	require.Equal(t, float64(4900), body["amountTotal"])
	require.Equal(t, "USD", body["currency"])
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/orders/create", "", `{"itemId":"item-1"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrderConflictCarriesResumePayload(t *testing.T) {
	srv := newTestServer(t)

	first := doRequest(t, srv, http.MethodPost, "/orders/create", "buyer-1", `{"itemId":"item-1"}`)
	require.Equal(t, http.StatusOK, first.Code)
	firstBody := decodeBody(t, first)

	second := doRequest(t, srv, http.MethodPost, "/orders/create", "buyer-1", `{"itemId":"item-1"}`)
	require.Equal(t, http.StatusConflict, second.Code)

	body := decodeBody(t, second)
	require.Equal(t, firstBody["orderId"], body["orderId"])
	require.Equal(t, "GW-1", body["gatewayOrderId"])
	require.Equal(t, "CREATED", body["status"])
}

func TestCaptureEndpoint(t *testing.T) {
	srv := newTestServer(t)

	create := doRequest(t, srv, http.MethodPost, "/orders/create", "buyer-1", `{"itemId":"item-1"}`)
	require.Equal(t, http.StatusOK, create.Code)

	rec := doRequest(t, srv, http.MethodPost, "/orders/capture", "buyer-1", `{"gatewayOrderId":"GW-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "PAYOUT_SENT", body["status"])
	require.Equal(t, "CAP-1", body["gatewayCaptureId"])

	again := doRequest(t, srv, http.MethodPost, "/orders/capture", "buyer-1", `{"gatewayOrderId":"GW-1"}`)
	require.Equal(t, http.StatusConflict, again.Code)
}

func TestGatewayRedirectEndpoints(t *testing.T) {
	srv := newTestServer(t)

	create := doRequest(t, srv, http.MethodPost, "/orders/create", "buyer-1", `{"itemId":"item-1"}`)
	require.Equal(t, http.StatusOK, create.Code)

	// Redirect endpoints carry no auth header.
	rec := doRequest(t, srv, http.MethodGet, "/orders/gateway-return?token=GW-1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "APPROVED", decodeBody(t, rec)["status"])

	rec = doRequest(t, srv, http.MethodGet, "/orders/gateway-cancel?token=GW-1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "CANCELED", decodeBody(t, rec)["status"])

	rec = doRequest(t, srv, http.MethodGet, "/orders/gateway-return?token=unknown", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	srv := newTestServer(t)

	create := doRequest(t, srv, http.MethodPost, "/orders/create", "buyer-1", `{"itemId":"item-1"}`)
	orderID := decodeBody(t, create)["orderId"].(string)

	rec := doRequest(t, srv, http.MethodPost, "/orders/"+orderID+"/cancel", "buyer-2", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/orders/"+orderID+"/cancel", "buyer-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "CANCELED", decodeBody(t, rec)["status"])
}

func TestGetAndListOrders(t *testing.T) {
	srv := newTestServer(t)

	create := doRequest(t, srv, http.MethodPost, "/orders/create", "buyer-1", `{"itemId":"item-1"}`)
	orderID := decodeBody(t, create)["orderId"].(string)

	rec := doRequest(t, srv, http.MethodGet, "/orders/"+orderID, "buyer-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, float64(490), body["platformFee"])
	require.Equal(t, float64(4410), body["sellerAmount"])

	rec = doRequest(t, srv, http.MethodGet, "/orders/"+orderID, "buyer-2", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/orders", "buyer-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
}
