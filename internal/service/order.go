package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kapetayo/api/internal/database"
	"github.com/kapetayo/api/internal/enum"
	"github.com/kapetayo/api/internal/pricing"
	"github.com/kapetayo/api/internal/status"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems             = errors.New("items are required")
	ErrInvalidQuantity        = errors.New("quantity must be > 0")
	ErrInvalidProductID       = errors.New("invalid product_id")
	ErrInvalidOptionID        = errors.New("invalid option_id")
	ErrProductNotFound        = errors.New("product not found")
	ErrProductUnavailable     = errors.New("product is not available")
	ErrOptionNotFound         = errors.New("option not found for product")
	ErrInvalidDiscountPercent = errors.New("discount_percent must be between 0 and 100")
	ErrDiscountReasonRequired = errors.New("discount_reason is required when a discount is applied")
	ErrInvalidPaymentMethod   = errors.New("invalid payment_method")
	ErrDeliveryAddress        = errors.New("delivery_address is required")
	ErrDeliveryContact        = errors.New("delivery_contact is required")
	ErrOrderNotFound          = errors.New("order not found")
	ErrStatusConflict         = errors.New("order status changed, please retry")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderSeq(ctx context.Context) (int32, error)
	GetActiveShift(ctx context.Context) (database.Shift, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetOptionForProduct(ctx context.Context, productID, optionID uuid.UUID) (database.ProductOption, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemOption(ctx context.Context, arg database.CreateOrderItemOptionParams) (database.OrderItemOption, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CreateStatusLog(ctx context.Context, arg database.CreateStatusLogParams) (database.StatusLog, error)
	AddShiftSale(ctx context.Context, arg database.AddShiftSaleParams) (database.Shift, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderItemRequest is a single line in an order.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
	OptionIDs []string
}

// CreatePOSOrderRequest is the validated input for a counter sale.
type CreatePOSOrderRequest struct {
	CreatedBy       uuid.UUID
	CustomerName    string
	CustomerPhone   string
	Notes           string
	DiscountPercent string
	DiscountReason  string
	PaymentMethod   string
	Items           []CreateOrderItemRequest
}

// CreateDeliveryOrderRequest is the validated input for a storefront order.
type CreateDeliveryOrderRequest struct {
	CustomerName         string
	CustomerPhone        string
	PaymentMethod        string
	DeliveryAddress      string
	DeliveryContact      string
	DeliveryInstructions string
	Notes                string
	Items                []CreateOrderItemRequest
}

// CreateOrderResult is the full created order with items.
type CreateOrderResult struct {
	Order database.Order
	Items []OrderItemResult
}

// OrderItemResult is an item with its selected options.
type OrderItemResult struct {
	Item    database.OrderItem
	Options []database.OrderItemOption
}

// TransitionOrderRequest moves an order to a new status.
type TransitionOrderRequest struct {
	OrderID   uuid.UUID
	ToStatus  status.Status
	Reason    string // required when ToStatus is FAILED
	ChangedBy string // actor identity recorded in the status log
}

// OrderService handles order business logic.
type OrderService struct {
	pool        TxBeginner
	newStore    NewOrderStore
	taxRate     decimal.Decimal
	deliveryFee decimal.Decimal
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, taxRate, deliveryFee decimal.Decimal) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, taxRate: taxRate, deliveryFee: deliveryFee}
}

// processedItem holds a prepared order item and its option snapshots.
type processedItem struct {
	params  database.CreateOrderItemParams
	options []database.CreateOrderItemOptionParams
}

// CreatePOSOrder validates, prices, and creates a counter sale atomically.
// Requires an active shift. Retries on order_seq unique violations (race
// where concurrent transactions read the same MAX).
func (s *OrderService) CreatePOSOrder(ctx context.Context, req CreatePOSOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	discountPercent := decimal.Zero
	if req.DiscountPercent != "" {
		dp, err := decimal.NewFromString(req.DiscountPercent)
		if err != nil {
			return nil, ErrInvalidDiscountPercent
		}
		discountPercent = dp
	}
	if discountPercent.IsPositive() && req.DiscountReason == "" {
		return nil, ErrDiscountReasonRequired
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createPOSOrderTx(ctx, req, discountPercent)
		if err == nil {
			return result, nil
		}
		if isOrderSeqConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) createPOSOrderTx(ctx context.Context, req CreatePOSOrderRequest, discountPercent decimal.Decimal) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Counter sales can only exist inside an open drawer.
	shift, err := store.GetActiveShift(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveShift
		}
		return nil, fmt.Errorf("get active shift: %w", err)
	}

	orderNumber, orderSeq, err := s.nextOrderNumber(ctx, store)
	if err != nil {
		return nil, err
	}

	items, subtotal, err := s.processItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	discountAmount, err := pricing.DiscountAmount(subtotal, discountPercent)
	if err != nil {
		return nil, ErrInvalidDiscountPercent
	}
	totalAmount := pricing.POSTotal(subtotal, discountAmount)

	discountReason := pgtype.Text{}
	if req.DiscountReason != "" {
		discountReason = pgtype.Text{String: req.DiscountReason, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:     orderNumber,
		OrderSeq:        orderSeq,
		Channel:         status.ChannelPOS,
		Status:          status.Pending,
		ShiftID:         pgtype.UUID{Bytes: shift.ID, Valid: true},
		CustomerName:    optionalText(req.CustomerName),
		CustomerPhone:   optionalText(req.CustomerPhone),
		Notes:           optionalText(req.Notes),
		Subtotal:        decimalToNumeric(subtotal),
		DiscountPercent: decimalToNumeric(discountPercent),
		DiscountReason:  discountReason,
		DiscountAmount:  decimalToNumeric(discountAmount),
		DeliveryFee:     decimalToNumeric(decimal.Zero),
		TaxAmount:       decimalToNumeric(decimal.Zero),
		TotalAmount:     decimalToNumeric(totalAmount),
		PaymentMethod:   req.PaymentMethod,
		CreatedBy:       pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	itemResults, err := insertItems(ctx, store, order.ID, items)
	if err != nil {
		return nil, err
	}

	if _, err := store.CreateStatusLog(ctx, database.CreateStatusLogParams{
		OrderID:   order.ID,
		ToStatus:  status.Pending,
		ChangedBy: req.CreatedBy.String(),
	}); err != nil {
		return nil, fmt.Errorf("create status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: itemResults}, nil
}

// CreateDeliveryOrder validates, prices, and creates a storefront delivery
// order atomically. No shift is involved; online orders settle outside the
// cash drawer.
func (s *OrderService) CreateDeliveryOrder(ctx context.Context, req CreateDeliveryOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.DeliveryAddress == "" {
		return nil, ErrDeliveryAddress
	}
	if req.DeliveryContact == "" {
		return nil, ErrDeliveryContact
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createDeliveryOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderSeqConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) createDeliveryOrderTx(ctx context.Context, req CreateDeliveryOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	orderNumber, orderSeq, err := s.nextOrderNumber(ctx, store)
	if err != nil {
		return nil, err
	}

	items, subtotal, err := s.processItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	taxAmount := pricing.TaxAmount(subtotal, s.taxRate)
	totalAmount := pricing.DeliveryTotal(subtotal, taxAmount, s.deliveryFee)

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:          orderNumber,
		OrderSeq:             orderSeq,
		Channel:              status.ChannelOnline,
		Status:               status.Pending,
		CustomerName:         optionalText(req.CustomerName),
		CustomerPhone:        optionalText(req.CustomerPhone),
		Notes:                optionalText(req.Notes),
		Subtotal:             decimalToNumeric(subtotal),
		DiscountPercent:      decimalToNumeric(decimal.Zero),
		DiscountAmount:       decimalToNumeric(decimal.Zero),
		DeliveryFee:          decimalToNumeric(s.deliveryFee),
		TaxAmount:            decimalToNumeric(taxAmount),
		TotalAmount:          decimalToNumeric(totalAmount),
		PaymentMethod:        req.PaymentMethod,
		DeliveryAddress:      optionalText(req.DeliveryAddress),
		DeliveryContact:      optionalText(req.DeliveryContact),
		DeliveryInstructions: optionalText(req.DeliveryInstructions),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	itemResults, err := insertItems(ctx, store, order.ID, items)
	if err != nil {
		return nil, err
	}

	if _, err := store.CreateStatusLog(ctx, database.CreateStatusLogParams{
		OrderID:   order.ID,
		ToStatus:  status.Pending,
		ChangedBy: "storefront",
	}); err != nil {
		return nil, fmt.Errorf("create status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: itemResults}, nil
}

// TransitionOrder applies a status change atomically: validates the move
// against the order's channel, swaps the status guarded on the value just
// read, appends a status log entry, and folds completed counter sales into
// the shift totals.
func (s *OrderService) TransitionOrder(ctx context.Context, req TransitionOrderRequest) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := status.Check(order.Channel, order.Status, req.ToStatus, req.Reason); err != nil {
		return database.Order{}, err
	}

	failureReason := pgtype.Text{}
	if req.ToStatus == status.Failed {
		failureReason = pgtype.Text{String: req.Reason, Valid: true}
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:            order.ID,
		ToStatus:      req.ToStatus,
		FromStatus:    order.Status,
		FailureReason: failureReason,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	logNotes := pgtype.Text{}
	if req.Reason != "" {
		logNotes = pgtype.Text{String: req.Reason, Valid: true}
	}
	if _, err := store.CreateStatusLog(ctx, database.CreateStatusLogParams{
		OrderID:    order.ID,
		FromStatus: pgtype.Text{String: string(order.Status), Valid: true},
		ToStatus:   req.ToStatus,
		ChangedBy:  req.ChangedBy,
		Notes:      logNotes,
	}); err != nil {
		return database.Order{}, fmt.Errorf("create status log: %w", err)
	}

	// A delivered counter sale is a completed sale: record it on the shift
	// in the same transaction so totals and status can never disagree.
	if updated.Channel == status.ChannelPOS && req.ToStatus == status.Delivered && updated.ShiftID.Valid {
		cash, ewallet := decimal.Zero, decimal.Zero
		total := numericToDecimal(updated.TotalAmount)
		if updated.PaymentMethod == enum.PaymentMethodCash {
			cash = total
		} else {
			ewallet = total
		}
		if _, err := store.AddShiftSale(ctx, database.AddShiftSaleParams{
			ID:            updated.ShiftID.Bytes,
			CashAmount:    decimalToNumeric(cash),
			EwalletAmount: decimalToNumeric(ewallet),
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, ErrShiftAlreadyClosed
			}
			return database.Order{}, fmt.Errorf("add shift sale: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	return updated, nil
}

// --- Internals ---

// nextOrderNumber allocates the next human-readable order number.
func (s *OrderService) nextOrderNumber(ctx context.Context, store OrderStore) (string, int32, error) {
	seq, err := store.GetNextOrderSeq(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("get next order seq: %w", err)
	}
	return fmt.Sprintf("KPT-%03d", seq), seq, nil
}

// processItems validates every line against the catalog and prices it.
func (s *OrderService) processItems(ctx context.Context, store OrderStore, reqs []CreateOrderItemRequest) ([]processedItem, decimal.Decimal, error) {
	subtotal := decimal.Zero
	var items []processedItem

	for i, item := range reqs {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}

		product, err := store.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("item[%d]: get product: %w", i, err)
		}
		if !product.IsAvailable {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrProductUnavailable)
		}

		unitPrice := numericToDecimal(product.BasePrice)

		var deltas []decimal.Decimal
		var optParams []database.CreateOrderItemOptionParams
		for j, rawID := range item.OptionIDs {
			optionID, err := uuid.Parse(rawID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("item[%d].options[%d]: %w", i, j, ErrInvalidOptionID)
			}
			opt, err := store.GetOptionForProduct(ctx, productID, optionID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, fmt.Errorf("item[%d].options[%d]: %w", i, j, ErrOptionNotFound)
				}
				return nil, decimal.Zero, fmt.Errorf("item[%d].options[%d]: get option: %w", i, j, err)
			}
			delta := numericToDecimal(opt.PriceDelta)
			deltas = append(deltas, delta)
			optParams = append(optParams, database.CreateOrderItemOptionParams{
				OptionID:   opt.ID,
				Name:       opt.Name,
				PriceDelta: decimalToNumeric(delta),
			})
		}

		lineTotal := pricing.LineTotal(unitPrice, deltas, item.Quantity)
		subtotal = subtotal.Add(lineTotal)

		items = append(items, processedItem{
			params: database.CreateOrderItemParams{
				ProductID:   productID,
				ProductName: product.Name,
				Quantity:    item.Quantity,
				UnitPrice:   decimalToNumeric(unitPrice),
				LineTotal:   decimalToNumeric(lineTotal),
			},
			options: optParams,
		})
	}

	return items, subtotal, nil
}

func insertItems(ctx context.Context, store OrderStore, orderID uuid.UUID, items []processedItem) ([]OrderItemResult, error) {
	var results []OrderItemResult
	for _, pi := range items {
		pi.params.OrderID = orderID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		var opts []database.OrderItemOption
		for _, op := range pi.options {
			op.OrderItemID = item.ID
			oio, err := store.CreateOrderItemOption(ctx, op)
			if err != nil {
				return nil, fmt.Errorf("create order item option: %w", err)
			}
			opts = append(opts, oio)
		}

		results = append(results, OrderItemResult{Item: item, Options: opts})
	}
	return results, nil
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodGCash:
		return true
	}
	return false
}

// isOrderSeqConflict checks if the error is a unique constraint violation on
// the order sequence (pgconn error code 23505).
func isOrderSeqConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_seq_key"
	}
	return false
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
