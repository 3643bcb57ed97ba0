package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kapetayo/api/internal/database"
	"github.com/kapetayo/api/internal/middleware"
	"github.com/kapetayo/api/internal/service"
	"github.com/kapetayo/api/internal/status"
	"github.com/kapetayo/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreatePOSOrder(ctx context.Context, req service.CreatePOSOrderRequest) (*service.CreateOrderResult, error)
	TransitionOrder(ctx context.Context, req service.TransitionOrderRequest) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemOptionsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemOption, error)
	ListStatusLogsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.StatusLog, error)
}

// Broadcaster pushes order events to connected dashboards.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToChannel(channel status.Channel, event ws.Event)
}

// OrderHandler handles back-office order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside the authenticated subrouter: /orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type createPOSOrderRequest struct {
	CustomerName    string                   `json:"customer_name"`
	CustomerPhone   string                   `json:"customer_phone"`
	Notes           string                   `json:"notes"`
	DiscountPercent string                   `json:"discount_percent"`
	DiscountReason  string                   `json:"discount_reason"`
	PaymentMethod   string                   `json:"payment_method"`
	Items           []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string   `json:"product_id"`
	Quantity  int32    `json:"quantity"`
	OptionIDs []string `json:"option_ids"`
}

type orderResponse struct {
	ID                   uuid.UUID           `json:"id"`
	OrderNumber          string              `json:"order_number"`
	Channel              string              `json:"channel"`
	Status               string              `json:"status"`
	ShiftID              *string             `json:"shift_id"`
	CustomerName         *string             `json:"customer_name"`
	CustomerPhone        *string             `json:"customer_phone"`
	Notes                *string             `json:"notes"`
	Subtotal             string              `json:"subtotal"`
	DiscountPercent      string              `json:"discount_percent"`
	DiscountReason       *string             `json:"discount_reason"`
	DiscountAmount       string              `json:"discount_amount"`
	DeliveryFee          string              `json:"delivery_fee"`
	TaxAmount            string              `json:"tax_amount"`
	TotalAmount          string              `json:"total_amount"`
	PaymentMethod        string              `json:"payment_method"`
	DeliveryAddress      *string             `json:"delivery_address"`
	DeliveryContact      *string             `json:"delivery_contact"`
	DeliveryInstructions *string             `json:"delivery_instructions"`
	FailureReason        *string             `json:"failure_reason"`
	ValidTransitions     []string            `json:"valid_transitions"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	Items                []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID          uuid.UUID                 `json:"id"`
	ProductID   uuid.UUID                 `json:"product_id"`
	ProductName string                    `json:"product_name"`
	Quantity    int32                     `json:"quantity"`
	UnitPrice   string                    `json:"unit_price"`
	LineTotal   string                    `json:"line_total"`
	Options     []orderItemOptionResponse `json:"options"`
}

type orderItemOptionResponse struct {
	ID         uuid.UUID `json:"id"`
	OptionID   uuid.UUID `json:"option_id"`
	Name       string    `json:"name"`
	PriceDelta string    `json:"price_delta"`
}

type statusLogResponse struct {
	FromStatus *string   `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ChangedBy  string    `json:"changed_by"`
	Notes      *string   `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// orderDetailResponse extends orderResponse with the status history.
type orderDetailResponse struct {
	orderResponse
	StatusLogs []statusLogResponse `json:"status_logs"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// --- Handlers ---

// Create handles POST /orders (counter sale).
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createPOSOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
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

	result, err := h.svc.CreatePOSOrder(r.Context(), service.CreatePOSOrderRequest{
		CreatedBy:       claims.UserID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Notes:           req.Notes,
		DiscountPercent: req.DiscountPercent,
		DiscountReason:  req.DiscountReason,
		PaymentMethod:   req.PaymentMethod,
		Items:           toServiceItems(req.Items),
	})
	if err != nil {
		if errors.Is(err, service.ErrNoActiveShift) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		if isOrderValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create pos order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(result)
	h.broadcastOrderEvent("order.created", result.Order.Channel, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("channel"); s != "" {
		if !status.ValidChannel(status.Channel(s)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid channel"})
			return
		}
		params.Channel = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	detail, ok := loadOrderDetail(w, r.Context(), h.store, orderID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	h.transition(w, r, service.TransitionOrderRequest{
		OrderID:   orderID,
		ToStatus:  status.Status(req.Status),
		Reason:    req.Reason,
		ChangedBy: claims.Email,
	})
}

// Cancel handles DELETE /orders/{id}. Cancellation is a plain transition, so
// the same per-channel table decides whether it is still allowed.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	h.transition(w, r, service.TransitionOrderRequest{
		OrderID:   orderID,
		ToStatus:  status.Cancelled,
		ChangedBy: claims.Email,
	})
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, req service.TransitionOrderRequest) {
	updated, err := h.svc.TransitionOrder(r.Context(), req)
	if err != nil {
		writeTransitionError(w, err)
		return
	}

	resp := dbOrderToResponse(updated)
	h.broadcastOrderEvent("order.status_changed", updated.Channel, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) broadcastOrderEvent(eventType string, channel status.Channel, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.BroadcastToChannel(channel, ws.Event{Type: eventType, Payload: raw})
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// isOrderValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidOptionID) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrProductUnavailable) ||
		errors.Is(err, service.ErrOptionNotFound) ||
		errors.Is(err, service.ErrInvalidDiscountPercent) ||
		errors.Is(err, service.ErrDiscountReasonRequired) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrDeliveryAddress) ||
		errors.Is(err, service.ErrDeliveryContact)
}

// writeTransitionError maps transition failures onto HTTP statuses: bad input
// is 400, unknown orders 404, and anything the state machine or a concurrent
// writer rejected is 409.
func writeTransitionError(w http.ResponseWriter, err error) {
	var invalid *status.InvalidTransitionError
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, status.ErrMissingReason):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, map[string]string{"error": invalid.Error()})
	case errors.Is(err, service.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrShiftAlreadyClosed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: transition order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// loadOrderDetail assembles the full order view. On failure it writes the
// error response and returns ok=false.
func loadOrderDetail(w http.ResponseWriter, ctx context.Context, store OrderStore, orderID uuid.UUID) (orderDetailResponse, bool) {
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return orderDetailResponse{}, false
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return orderDetailResponse{}, false
	}

	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return orderDetailResponse{}, false
	}

	itemResponses := make([]orderItemResponse, len(items))
	for i, item := range items {
		opts, err := store.ListOrderItemOptionsByOrderItem(ctx, item.ID)
		if err != nil {
			log.Printf("ERROR: list order item options: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return orderDetailResponse{}, false
		}
		itemResponses[i] = dbOrderItemToResponse(item, opts)
	}

	logs, err := store.ListStatusLogsByOrder(ctx, orderID)
	if err != nil {
		log.Printf("ERROR: list status logs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return orderDetailResponse{}, false
	}

	logResponses := make([]statusLogResponse, len(logs))
	for i, l := range logs {
		logResponses[i] = statusLogResponse{
			ToStatus:  string(l.ToStatus),
			ChangedBy: l.ChangedBy,
			CreatedAt: l.CreatedAt,
		}
		if l.FromStatus.Valid {
			logResponses[i].FromStatus = &l.FromStatus.String
		}
		if l.Notes.Valid {
			logResponses[i].Notes = &l.Notes.String
		}
	}

	orderResp := dbOrderToResponse(order)
	orderResp.Items = itemResponses

	return orderDetailResponse{
		orderResponse: orderResp,
		StatusLogs:    logResponses,
	}, true
}

func toServiceItems(items []createOrderItemRequest) []service.CreateOrderItemRequest {
	out := make([]service.CreateOrderItemRequest, len(items))
	for i, item := range items {
		out[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			OptionIDs: item.OptionIDs,
		}
	}
	return out
}

func toOrderResponse(result *service.CreateOrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, ir := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(ir.Item, ir.Options)
	}
	return resp
}

func dbOrderToResponse(o database.Order) orderResponse {
	next := status.ValidTransitions(o.Channel, o.Status)
	transitions := make([]string, len(next))
	for i, s := range next {
		transitions[i] = string(s)
	}

	resp := orderResponse{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		Channel:          string(o.Channel),
		Status:           string(o.Status),
		Subtotal:         numericToString(o.Subtotal),
		DiscountPercent:  numericToString(o.DiscountPercent),
		DiscountAmount:   numericToString(o.DiscountAmount),
		DeliveryFee:      numericToString(o.DeliveryFee),
		TaxAmount:        numericToString(o.TaxAmount),
		TotalAmount:      numericToString(o.TotalAmount),
		PaymentMethod:    o.PaymentMethod,
		ValidTransitions: transitions,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            []orderItemResponse{},
	}

	if o.ShiftID.Valid {
		s := uuid.UUID(o.ShiftID.Bytes).String()
		resp.ShiftID = &s
	}
	if o.CustomerName.Valid {
		resp.CustomerName = &o.CustomerName.String
	}
	if o.CustomerPhone.Valid {
		resp.CustomerPhone = &o.CustomerPhone.String
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.DiscountReason.Valid {
		resp.DiscountReason = &o.DiscountReason.String
	}
	if o.DeliveryAddress.Valid {
		resp.DeliveryAddress = &o.DeliveryAddress.String
	}
	if o.DeliveryContact.Valid {
		resp.DeliveryContact = &o.DeliveryContact.String
	}
	if o.DeliveryInstructions.Valid {
		resp.DeliveryInstructions = &o.DeliveryInstructions.String
	}
	if o.FailureReason.Valid {
		resp.FailureReason = &o.FailureReason.String
	}

	return resp
}

func dbOrderItemToResponse(item database.OrderItem, opts []database.OrderItemOption) orderItemResponse {
	resp := orderItemResponse{
		ID:          item.ID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   numericToString(item.UnitPrice),
		LineTotal:   numericToString(item.LineTotal),
		Options:     make([]orderItemOptionResponse, len(opts)),
	}
	for i, opt := range opts {
		resp.Options[i] = orderItemOptionResponse{
			ID:         opt.ID,
			OptionID:   opt.OptionID,
			Name:       opt.Name,
			PriceDelta: numericToString(opt.PriceDelta),
		}
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	return val.(string)
}
