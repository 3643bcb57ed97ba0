package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kapetayo/api/internal/database"
	"github.com/kapetayo/api/internal/service"
	"github.com/kapetayo/api/internal/status"
	"github.com/kapetayo/api/internal/ws"
)

// CheckoutServicer defines the service methods needed by the storefront.
// Satisfied by *service.OrderService; narrow interface for testability.
type CheckoutServicer interface {
	CreateDeliveryOrder(ctx context.Context, req service.CreateDeliveryOrderRequest) (*service.CreateOrderResult, error)
	TransitionOrder(ctx context.Context, req service.TransitionOrderRequest) (database.Order, error)
}

// CheckoutHandler handles the public storefront endpoints. No authentication:
// customers check out and track orders anonymously by order ID.
type CheckoutHandler struct {
	svc   CheckoutServicer
	store OrderStore
	hub   Broadcaster
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(svc CheckoutServicer, store OrderStore, hub Broadcaster) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers storefront endpoints on the given Chi router.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", h.Checkout)
	r.Get("/track/{id}", h.Track)
	r.Delete("/track/{id}", h.Cancel)
}

// --- Request types ---

type checkoutRequest struct {
	CustomerName         string                   `json:"customer_name"`
	CustomerPhone        string                   `json:"customer_phone"`
	PaymentMethod        string                   `json:"payment_method"`
	DeliveryAddress      string                   `json:"delivery_address"`
	DeliveryContact      string                   `json:"delivery_contact"`
	DeliveryInstructions string                   `json:"delivery_instructions"`
	Notes                string                   `json:"notes"`
	Items                []createOrderItemRequest `json:"items"`
}

// --- Handlers ---

// Checkout handles POST /checkout: places a delivery order.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.CustomerName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_name is required"})
		return
	}
	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "product_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	result, err := h.svc.CreateDeliveryOrder(r.Context(), service.CreateDeliveryOrderRequest{
		CustomerName:         req.CustomerName,
		CustomerPhone:        req.CustomerPhone,
		PaymentMethod:        req.PaymentMethod,
		DeliveryAddress:      req.DeliveryAddress,
		DeliveryContact:      req.DeliveryContact,
		DeliveryInstructions: req.DeliveryInstructions,
		Notes:                req.Notes,
		Items:                toServiceItems(req.Items),
	})
	if err != nil {
		if isOrderValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: checkout: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(result)
	if raw, err := json.Marshal(resp); err == nil {
		h.hub.BroadcastToChannel(status.ChannelOnline, ws.Event{Type: "order.created", Payload: raw})
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Track handles GET /track/{id}: the customer's order tracking view.
func (h *CheckoutHandler) Track(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	detail, ok := loadOrderDetail(w, r.Context(), h.store, orderID)
	if !ok {
		return
	}
	// Counter orders are not exposed on the public tracking endpoint.
	if detail.Channel != string(status.ChannelOnline) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Cancel handles DELETE /track/{id}: customer-initiated cancellation.
// The transition table only permits it before preparation starts.
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for cancel: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// The public endpoint only reaches storefront orders; counter orders are
	// cancelled by staff through the back office.
	if order.Channel != status.ChannelOnline {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	updated, err := h.svc.TransitionOrder(r.Context(), service.TransitionOrderRequest{
		OrderID:   orderID,
		ToStatus:  status.Cancelled,
		ChangedBy: "storefront",
	})
	if err != nil {
		writeTransitionError(w, err)
		return
	}

	resp := dbOrderToResponse(updated)
	if raw, err := json.Marshal(resp); err == nil {
		h.hub.BroadcastToChannel(status.ChannelOnline, ws.Event{Type: "order.status_changed", Payload: raw})
	}
	writeJSON(w, http.StatusOK, resp)
}
