package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kapetayo/api/internal/auth"
	"github.com/kapetayo/api/internal/database"
	"github.com/kapetayo/api/internal/enum"
	"github.com/kapetayo/api/internal/handler"
	"github.com/kapetayo/api/internal/middleware"
	"github.com/kapetayo/api/internal/service"
	"github.com/kapetayo/api/internal/status"
	"github.com/kapetayo/api/internal/ws"
)

// --- Mock OrderServicer ---

type mockOrderService struct {
	createPOSFn  func(ctx context.Context, req service.CreatePOSOrderRequest) (*service.CreateOrderResult, error)
	transitionFn func(ctx context.Context, req service.TransitionOrderRequest) (database.Order, error)
}

func (m *mockOrderService) CreatePOSOrder(ctx context.Context, req service.CreatePOSOrderRequest) (*service.CreateOrderResult, error) {
	return m.createPOSFn(ctx, req)
}

func (m *mockOrderService) TransitionOrder(ctx context.Context, req service.TransitionOrderRequest) (database.Order, error) {
	return m.transitionFn(ctx, req)
}

// --- Mock OrderStore ---

type mockOrderReadStore struct {
	getOrderFn              func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrdersFn            func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listOrderItemsFn        func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listOrderItemOptionsFn  func(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemOption, error)
	listStatusLogsByOrderFn func(ctx context.Context, orderID uuid.UUID) ([]database.StatusLog, error)
}

func (m *mockOrderReadStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderReadStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderReadStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsFn != nil {
		return m.listOrderItemsFn(ctx, orderID)
	}
	return []database.OrderItem{}, nil
}

func (m *mockOrderReadStore) ListOrderItemOptionsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemOption, error) {
	if m.listOrderItemOptionsFn != nil {
		return m.listOrderItemOptionsFn(ctx, orderItemID)
	}
	return []database.OrderItemOption{}, nil
}

func (m *mockOrderReadStore) ListStatusLogsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.StatusLog, error) {
	if m.listStatusLogsByOrderFn != nil {
		return m.listStatusLogsByOrderFn(ctx, orderID)
	}
	return []database.StatusLog{}, nil
}

// --- Mock Broadcaster ---

type mockBroadcaster struct {
	mu     sync.Mutex
	events []broadcastCall
}

type broadcastCall struct {
	channel status.Channel
	event   ws.Event
}

func (m *mockBroadcaster) BroadcastToChannel(channel status.Channel, event ws.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, broadcastCall{channel: channel, event: event})
}

func (m *mockBroadcaster) calls() []broadcastCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]broadcastCall(nil), m.events...)
}

// --- Test helpers ---

const testOrderSecret = "test-secret-for-orders"

func setupOrderRouter(svc *mockOrderService, store *mockOrderReadStore, hub *mockBroadcaster) *chi.Mux {
	if store == nil {
		store = &mockOrderReadStore{}
	}
	if hub == nil {
		hub = &mockBroadcaster{}
	}
	h := handler.NewOrderHandler(svc, store, hub)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testOrderSecret))
	r.Route("/orders", h.RegisterRoutes)
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testOrderSecret, claims.UserID, claims.Email, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func cashierClaims() *auth.Claims {
	return &auth.Claims{
		UserID: uuid.New(),
		Email:  "cashier@test.com",
		Role:   enum.UserRoleCashier,
	}
}

func makeText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func makeTestNumeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		t.Fatalf("scan numeric %q: %v", s, err)
	}
	return n
}

func testPOSOrder(t *testing.T, st status.Status) database.Order {
	t.Helper()
	now := time.Now()
	return database.Order{
		ID:             uuid.New(),
		OrderNumber:    "KPT-007",
		OrderSeq:       7,
		Channel:        status.ChannelPOS,
		Status:         st,
		ShiftID:        pgtype.UUID{Bytes: uuid.New(), Valid: true},
		CustomerName:   makeText("Walk-in"),
		Subtotal:       makeTestNumeric(t, "200.00"),
		DiscountAmount: makeTestNumeric(t, "0.00"),
		DeliveryFee:    makeTestNumeric(t, "0.00"),
		TaxAmount:      makeTestNumeric(t, "0.00"),
		TotalAmount:    makeTestNumeric(t, "200.00"),
		PaymentMethod:  enum.PaymentMethodCash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func testOrderResult(t *testing.T) *service.CreateOrderResult {
	t.Helper()
	order := testPOSOrder(t, status.Pending)
	item := database.OrderItem{
		ID:          uuid.New(),
		OrderID:     order.ID,
		ProductID:   uuid.New(),
		ProductName: "Caramel Latte",
		Quantity:    2,
		UnitPrice:   makeTestNumeric(t, "100.00"),
		LineTotal:   makeTestNumeric(t, "200.00"),
	}
	return &service.CreateOrderResult{
		Order: order,
		Items: []service.OrderItemResult{{Item: item}},
	}
}

func basicCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"payment_method": "CASH",
		"items": []map[string]interface{}{
			{"product_id": uuid.New().String(), "quantity": 2},
		},
	}
}

// --- Create tests ---

func TestCreateOrder_Success(t *testing.T) {
	result := testOrderResult(t)
	svc := &mockOrderService{
		createPOSFn: func(_ context.Context, req service.CreatePOSOrderRequest) (*service.CreateOrderResult, error) {
			return result, nil
		},
	}
	hub := &mockBroadcaster{}
	router := setupOrderRouter(svc, nil, hub)

	rr := doAuthRequest(t, router, "POST", "/orders", basicCreateBody(), cashierClaims())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["order_number"] != "KPT-007" {
		t.Errorf("order_number: got %v, want KPT-007", resp["order_number"])
	}
	if resp["status"] != "PENDING" {
		t.Errorf("status: got %v, want PENDING", resp["status"])
	}
	if resp["total_amount"] != "200.00" {
		t.Errorf("total_amount: got %v, want 200.00", resp["total_amount"])
	}

	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 item in response, got %v", resp["items"])
	}

	calls := hub.calls()
	if len(calls) != 1 {
		t.Fatalf("broadcast calls: got %d, want 1", len(calls))
	}
	if calls[0].channel != status.ChannelPOS {
		t.Errorf("broadcast channel: got %v, want POS", calls[0].channel)
	}
	if calls[0].event.Type != "order.created" {
		t.Errorf("event type: got %v, want order.created", calls[0].event.Type)
	}
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	svc := &mockOrderService{}
	router := setupOrderRouter(svc, nil, nil)

	b, _ := json.Marshal(basicCreateBody())
	req := httptest.NewRequest("POST", "/orders", bytes.NewReader(b))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestCreateOrder_MissingPaymentMethod(t *testing.T) {
	svc := &mockOrderService{}
	router := setupOrderRouter(svc, nil, nil)

	body := basicCreateBody()
	delete(body, "payment_method")
	rr := doAuthRequest(t, router, "POST", "/orders", body, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc := &mockOrderService{}
	router := setupOrderRouter(svc, nil, nil)

	body := basicCreateBody()
	body["items"] = []map[string]interface{}{}
	rr := doAuthRequest(t, router, "POST", "/orders", body, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateOrder_ZeroQuantity(t *testing.T) {
	svc := &mockOrderService{}
	router := setupOrderRouter(svc, nil, nil)

	body := basicCreateBody()
	body["items"] = []map[string]interface{}{
		{"product_id": uuid.New().String(), "quantity": 0},
	}
	rr := doAuthRequest(t, router, "POST", "/orders", body, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateOrder_NoActiveShift(t *testing.T) {
	svc := &mockOrderService{
		createPOSFn: func(_ context.Context, _ service.CreatePOSOrderRequest) (*service.CreateOrderResult, error) {
			return nil, service.ErrNoActiveShift
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, "POST", "/orders", basicCreateBody(), cashierClaims())

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	svc := &mockOrderService{
		createPOSFn: func(_ context.Context, _ service.CreatePOSOrderRequest) (*service.CreateOrderResult, error) {
			return nil, service.ErrProductNotFound
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, "POST", "/orders", basicCreateBody(), cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateOrder_PassesClaimsUserID(t *testing.T) {
	claims := cashierClaims()
	var gotCreatedBy uuid.UUID
	svc := &mockOrderService{
		createPOSFn: func(_ context.Context, req service.CreatePOSOrderRequest) (*service.CreateOrderResult, error) {
			gotCreatedBy = req.CreatedBy
			return testOrderResult(t), nil
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, "POST", "/orders", basicCreateBody(), claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusCreated)
	}
	if gotCreatedBy != claims.UserID {
		t.Errorf("created_by: got %v, want %v", gotCreatedBy, claims.UserID)
	}
}

func TestCreateOrder_PassesCustomerPhone(t *testing.T) {
	var gotReq service.CreatePOSOrderRequest
	svc := &mockOrderService{
		createPOSFn: func(_ context.Context, req service.CreatePOSOrderRequest) (*service.CreateOrderResult, error) {
			gotReq = req
			return testOrderResult(t), nil
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	body := basicCreateBody()
	body["customer_name"] = "Pedro Reyes"
	body["customer_phone"] = "+639181234567"
	rr := doAuthRequest(t, router, "POST", "/orders", body, cashierClaims())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusCreated)
	}
	if gotReq.CustomerName != "Pedro Reyes" {
		t.Errorf("customer_name: got %q, want %q", gotReq.CustomerName, "Pedro Reyes")
	}
	if gotReq.CustomerPhone != "+639181234567" {
		t.Errorf("customer_phone: got %q, want %q", gotReq.CustomerPhone, "+639181234567")
	}
}

// --- List tests ---

func TestListOrders_PassesFilters(t *testing.T) {
	var gotParams database.ListOrdersParams
	store := &mockOrderReadStore{
		listOrdersFn: func(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			gotParams = arg
			return []database.Order{}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, nil)

	rr := doAuthRequest(t, router, "GET", "/orders?status=PENDING&channel=POS&limit=5&offset=10", nil, cashierClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !gotParams.Status.Valid || gotParams.Status.String != "PENDING" {
		t.Errorf("status filter: got %+v, want PENDING", gotParams.Status)
	}
	if !gotParams.Channel.Valid || gotParams.Channel.String != "POS" {
		t.Errorf("channel filter: got %+v, want POS", gotParams.Channel)
	}
	if gotParams.Limit != 5 {
		t.Errorf("limit: got %d, want 5", gotParams.Limit)
	}
	if gotParams.Offset != 10 {
		t.Errorf("offset: got %d, want 10", gotParams.Offset)
	}
}

func TestListOrders_InvalidChannel(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderReadStore{}, nil)

	rr := doAuthRequest(t, router, "GET", "/orders?channel=DRIVE_THRU", nil, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestListOrders_InvalidDate(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderReadStore{}, nil)

	rr := doAuthRequest(t, router, "GET", "/orders?start_date=01-02-2026", nil, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestListOrders_CapsLimit(t *testing.T) {
	var gotParams database.ListOrdersParams
	store := &mockOrderReadStore{
		listOrdersFn: func(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			gotParams = arg
			return []database.Order{}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, nil)

	rr := doAuthRequest(t, router, "GET", "/orders?limit=5000", nil, cashierClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if gotParams.Limit != 100 {
		t.Errorf("limit: got %d, want capped at 100", gotParams.Limit)
	}
}

// --- Get tests ---

func TestGetOrder_Success(t *testing.T) {
	order := testPOSOrder(t, status.Pending)
	item := database.OrderItem{
		ID:          uuid.New(),
		OrderID:     order.ID,
		ProductID:   uuid.New(),
		ProductName: "Spanish Latte",
		Quantity:    1,
		UnitPrice:   makeTestNumeric(t, "130.00"),
		LineTotal:   makeTestNumeric(t, "130.00"),
	}
	log := database.StatusLog{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ToStatus:  status.Pending,
		ChangedBy: "cashier@test.com",
		CreatedAt: time.Now(),
	}

	store := &mockOrderReadStore{
		getOrderFn: func(_ context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
		listOrderItemsFn: func(_ context.Context, _ uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{item}, nil
		},
		listStatusLogsByOrderFn: func(_ context.Context, _ uuid.UUID) ([]database.StatusLog, error) {
			return []database.StatusLog{log}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, nil)

	rr := doAuthRequest(t, router, "GET", "/orders/"+order.ID.String(), nil, cashierClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["order_number"] != "KPT-007" {
		t.Errorf("order_number: got %v", resp["order_number"])
	}
	logs, ok := resp["status_logs"].([]interface{})
	if !ok || len(logs) != 1 {
		t.Fatalf("expected 1 status log, got %v", resp["status_logs"])
	}

	// PENDING POS orders can go to CONFIRMED or CANCELLED.
	transitions, ok := resp["valid_transitions"].([]interface{})
	if !ok || len(transitions) != 2 {
		t.Fatalf("expected 2 valid transitions, got %v", resp["valid_transitions"])
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderReadStore{}, nil)

	rr := doAuthRequest(t, router, "GET", "/orders/"+uuid.New().String(), nil, cashierClaims())

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetOrder_InvalidID(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderReadStore{}, nil)

	rr := doAuthRequest(t, router, "GET", "/orders/not-a-uuid", nil, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- UpdateStatus tests ---

func TestUpdateStatus_Success(t *testing.T) {
	updated := testPOSOrder(t, status.Confirmed)
	claims := cashierClaims()

	var gotReq service.TransitionOrderRequest
	svc := &mockOrderService{
		transitionFn: func(_ context.Context, req service.TransitionOrderRequest) (database.Order, error) {
			gotReq = req
			return updated, nil
		},
	}
	hub := &mockBroadcaster{}
	router := setupOrderRouter(svc, nil, hub)

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+updated.ID.String()+"/status",
		map[string]string{"status": "CONFIRMED"}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if gotReq.ToStatus != status.Confirmed {
		t.Errorf("to status: got %v, want CONFIRMED", gotReq.ToStatus)
	}
	if gotReq.ChangedBy != claims.Email {
		t.Errorf("changed by: got %v, want %v", gotReq.ChangedBy, claims.Email)
	}

	calls := hub.calls()
	if len(calls) != 1 || calls[0].event.Type != "order.status_changed" {
		t.Fatalf("expected one order.status_changed broadcast, got %+v", calls)
	}
}

func TestUpdateStatus_MissingStatus(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, nil, nil)

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+uuid.New().String()+"/status",
		map[string]string{}, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(_ context.Context, _ service.TransitionOrderRequest) (database.Order, error) {
			return database.Order{}, &status.InvalidTransitionError{
				Channel: status.ChannelPOS,
				From:    status.Pending,
				To:      status.Delivered,
			}
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "DELIVERED"}, cashierClaims())

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestUpdateStatus_MissingFailureReason(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(_ context.Context, _ service.TransitionOrderRequest) (database.Order, error) {
			return database.Order{}, status.ErrMissingReason
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "FAILED"}, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateStatus_OrderNotFound(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(_ context.Context, _ service.TransitionOrderRequest) (database.Order, error) {
			return database.Order{}, service.ErrOrderNotFound
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "CONFIRMED"}, cashierClaims())

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUpdateStatus_ConcurrentConflict(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(_ context.Context, _ service.TransitionOrderRequest) (database.Order, error) {
			return database.Order{}, service.ErrStatusConflict
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "CONFIRMED"}, cashierClaims())

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

// --- Cancel tests ---

func TestCancelOrder_Success(t *testing.T) {
	cancelled := testPOSOrder(t, status.Cancelled)

	var gotReq service.TransitionOrderRequest
	svc := &mockOrderService{
		transitionFn: func(_ context.Context, req service.TransitionOrderRequest) (database.Order, error) {
			gotReq = req
			return cancelled, nil
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, "DELETE", "/orders/"+cancelled.ID.String(), nil, cashierClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if gotReq.ToStatus != status.Cancelled {
		t.Errorf("to status: got %v, want CANCELLED", gotReq.ToStatus)
	}
}

func TestCancelOrder_PastCancelWindow(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(_ context.Context, _ service.TransitionOrderRequest) (database.Order, error) {
			return database.Order{}, &status.InvalidTransitionError{
				Channel: status.ChannelOnline,
				From:    status.Preparing,
				To:      status.Cancelled,
			}
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, "DELETE", "/orders/"+uuid.New().String(), nil, cashierClaims())

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}
