package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"craftmarket/internal/gateway"
	"craftmarket/internal/models"
	"craftmarket/internal/services"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Orders *services.OrderService
}

func NewHandler(orders *services.OrderService) *Handler {
	return &Handler{Orders: orders}
}

type createOrderRequest struct {
	ItemID string `json:"itemId"`
}

type createOrderResponse struct {
	OrderID        string `json:"orderId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	ApproveLink    string `json:"approveLink"`
	AmountTotal    int64  `json:"amountTotal"`
	Currency       string `json:"currency"`
}

type pendingOrderResponse struct {
	OrderID        string `json:"orderId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	Status         string `json:"status"`
}

type captureOrderRequest struct {
	GatewayOrderID string `json:"gatewayOrderId"`
}

type captureOrderResponse struct {
	OrderID          string `json:"orderId"`
	Status           string `json:"status"`
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayCaptureID string `json:"gatewayCaptureId"`
}

type orderStatusResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type orderResponse struct {
	OrderID        string `json:"orderId"`
	GatewayOrderID string `json:"gatewayOrderId,omitempty"`
	ItemID         string `json:"itemId"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	AmountTotal    int64  `json:"amountTotal"`
	PlatformFee    int64  `json:"platformFee"`
	SellerAmount   int64  `json:"sellerAmount"`
	CancelReason   string `json:"cancelReason,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	buyerID := r.Header.Get("X-User-Id")
	if buyerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	intent, err := h.Orders.CreatePurchaseIntent(r.Context(), buyerID, req.ItemID)
	if err != nil {
		var pending *services.PendingOrderError
		if errors.As(err, &pending) {
			writeJSON(w, http.StatusConflict, pendingOrderResponse{
				OrderID:        pending.OrderID,
				GatewayOrderID: pending.GatewayOrderID,
				Status:         string(pending.Status),
			})
			return
		}
		h.writeServiceError(w, err, "create order failed")
		return
	}

	writeJSON(w, http.StatusOK, createOrderResponse{
		OrderID:        intent.Order.OrderID,
		GatewayOrderID: intent.Order.GatewayOrderID,
		ApproveLink:    intent.ApproveLink,
		AmountTotal:    intent.Order.AmountTotal,
		Currency:       intent.Order.Currency,
	})
}

func (h *Handler) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	buyerID := r.Header.Get("X-User-Id")
	if buyerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	var req captureOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GatewayOrderID == "" {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	order, err := h.Orders.Capture(r.Context(), buyerID, req.GatewayOrderID)
	if err != nil {
		h.writeServiceError(w, err, "capture failed")
		return
	}

	writeJSON(w, http.StatusOK, captureOrderResponse{
		OrderID:          order.OrderID,
		Status:           string(order.Status),
		GatewayOrderID:   order.GatewayOrderID,
		GatewayCaptureID: order.CaptureID,
	})
}

// GatewayReturn is the gateway's browser redirect target; it carries no auth
// header, only the gateway order id as a token.
func (h *Handler) GatewayReturn(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	order, err := h.Orders.HandleGatewayReturn(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, err, "gateway return failed")
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: order.OrderID, Status: string(order.Status)})
}

func (h *Handler) GatewayCancel(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	order, err := h.Orders.HandleGatewayCancel(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, err, "gateway cancel failed")
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: order.OrderID, Status: string(order.Status)})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	buyerID := r.Header.Get("X-User-Id")
	if buyerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	orderID := chi.URLParam(r, "orderId")
	order, err := h.Orders.Cancel(r.Context(), buyerID, orderID)
	if err != nil {
		h.writeServiceError(w, err, "cancel failed")
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: order.OrderID, Status: string(order.Status)})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	buyerID := r.Header.Get("X-User-Id")
	if buyerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	orderID := chi.URLParam(r, "orderId")
	order, err := h.Orders.GetOrder(r.Context(), buyerID, orderID)
	if err != nil {
		h.writeServiceError(w, err, "get order failed")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	buyerID := r.Header.Get("X-User-Id")
	if buyerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	orders, err := h.Orders.ListOrders(r.Context(), buyerID)
	if err != nil {
		h.writeServiceError(w, err, "list orders failed")
		return
	}
	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps domain error kinds to transport status codes. The
// mapping lives here so business logic never sees HTTP.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrItemNotFound), errors.Is(err, services.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrSelfPurchase), errors.Is(err, services.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrItemNotPurchasable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidPrice):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrSellerPayoutMissing):
		writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, services.ErrOrderAlreadyProcessed),
		errors.Is(err, services.ErrOrderCanceled),
		errors.Is(err, services.ErrInvalidOrderState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrCaptureFailed),
		errors.Is(err, services.ErrPayoutFailed),
		errors.Is(err, gateway.ErrAuthFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, "gateway request failed")
			return
		}
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func toOrderResponse(order *models.Order) orderResponse {
	return orderResponse{
		OrderID:        order.OrderID,
		GatewayOrderID: order.GatewayOrderID,
		ItemID:         order.ItemID,
		Status:         string(order.Status),
		Currency:       order.Currency,
		AmountTotal:    order.AmountTotal,
		PlatformFee:    order.PlatformFee,
		SellerAmount:   order.SellerAmount,
		CancelReason:   order.CancelReason,
		CreatedAt:      order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      order.UpdatedAt.Format(time.RFC3339),
	}
}
