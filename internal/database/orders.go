package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kapetayo/api/internal/status"
)

const orderColumns = `id, order_number, order_seq, channel, status, shift_id,
	customer_name, customer_phone, notes,
	subtotal, discount_percent, discount_reason, discount_amount,
	delivery_fee, tax_amount, total_amount, payment_method,
	delivery_address, delivery_contact, delivery_instructions,
	confirmed_at, preparing_at, out_for_delivery_at, delivered_at,
	failed_at, cancelled_at, failure_reason,
	created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.OrderSeq, &o.Channel, &o.Status, &o.ShiftID,
		&o.CustomerName, &o.CustomerPhone, &o.Notes,
		&o.Subtotal, &o.DiscountPercent, &o.DiscountReason, &o.DiscountAmount,
		&o.DeliveryFee, &o.TaxAmount, &o.TotalAmount, &o.PaymentMethod,
		&o.DeliveryAddress, &o.DeliveryContact, &o.DeliveryInstructions,
		&o.ConfirmedAt, &o.PreparingAt, &o.OutForDeliveryAt, &o.DeliveredAt,
		&o.FailedAt, &o.CancelledAt, &o.FailureReason,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// GetNextOrderSeq returns MAX(order_seq)+1. Two concurrent transactions can
// read the same value; the unique constraint on order_seq plus the service
// retry loop resolve the race.
func (q *Queries) GetNextOrderSeq(ctx context.Context) (int32, error) {
	const sql = `SELECT COALESCE(MAX(order_seq), 0) + 1 FROM orders`
	var next int32
	err := q.db.QueryRow(ctx, sql).Scan(&next)
	return next, err
}

type CreateOrderParams struct {
	OrderNumber          string
	OrderSeq             int32
	Channel              status.Channel
	Status               status.Status
	ShiftID              pgtype.UUID
	CustomerName         pgtype.Text
	CustomerPhone        pgtype.Text
	Notes                pgtype.Text
	Subtotal             pgtype.Numeric
	DiscountPercent      pgtype.Numeric
	DiscountReason       pgtype.Text
	DiscountAmount       pgtype.Numeric
	DeliveryFee          pgtype.Numeric
	TaxAmount            pgtype.Numeric
	TotalAmount          pgtype.Numeric
	PaymentMethod        string
	DeliveryAddress      pgtype.Text
	DeliveryContact      pgtype.Text
	DeliveryInstructions pgtype.Text
	CreatedBy            pgtype.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	const sql = `INSERT INTO orders (
		order_number, order_seq, channel, status, shift_id,
		customer_name, customer_phone, notes,
		subtotal, discount_percent, discount_reason, discount_amount,
		delivery_fee, tax_amount, total_amount, payment_method,
		delivery_address, delivery_contact, delivery_instructions, created_by
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.OrderNumber, arg.OrderSeq, arg.Channel, arg.Status, arg.ShiftID,
		arg.CustomerName, arg.CustomerPhone, arg.Notes,
		arg.Subtotal, arg.DiscountPercent, arg.DiscountReason, arg.DiscountAmount,
		arg.DeliveryFee, arg.TaxAmount, arg.TotalAmount, arg.PaymentMethod,
		arg.DeliveryAddress, arg.DeliveryContact, arg.DeliveryInstructions, arg.CreatedBy,
	))
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(q.db.QueryRow(ctx, sql, id))
}

type ListOrdersParams struct {
	Status    pgtype.Text
	Channel   pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders
	WHERE ($1::text IS NULL OR status = $1)
	  AND ($2::text IS NULL OR channel = $2)
	  AND ($3::timestamptz IS NULL OR created_at >= $3)
	  AND ($4::timestamptz IS NULL OR created_at < $4 + interval '1 day')
	ORDER BY created_at DESC
	LIMIT $5 OFFSET $6`
	rows, err := q.db.Query(ctx, sql, arg.Status, arg.Channel, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListInFlightOrdersByShift returns the shift's POS orders that are still in
// a non-terminal status. A non-empty result vetoes shift closure.
func (q *Queries) ListInFlightOrdersByShift(ctx context.Context, shiftID uuid.UUID) ([]Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders
	WHERE shift_id = $1
	  AND channel = 'POS'
	  AND status IN ('PENDING', 'CONFIRMED', 'PREPARING')
	ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID            uuid.UUID
	ToStatus      status.Status
	FromStatus    status.Status // compare-and-swap guard
	FailureReason pgtype.Text
}

// UpdateOrderStatus applies a transition guarded on the current status and
// stamps the timestamp column matching the target. Returns pgx.ErrNoRows
// when a concurrent transition won the race.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	const sql = `UPDATE orders SET
		status = $2,
		confirmed_at        = CASE WHEN $2 = 'CONFIRMED' THEN now() ELSE confirmed_at END,
		preparing_at        = CASE WHEN $2 = 'PREPARING' THEN now() ELSE preparing_at END,
		out_for_delivery_at = CASE WHEN $2 = 'OUT_FOR_DELIVERY' THEN now() ELSE out_for_delivery_at END,
		delivered_at        = CASE WHEN $2 = 'DELIVERED' THEN now() ELSE delivered_at END,
		failed_at           = CASE WHEN $2 = 'FAILED' THEN now() ELSE failed_at END,
		cancelled_at        = CASE WHEN $2 = 'CANCELLED' THEN now() ELSE cancelled_at END,
		failure_reason      = COALESCE($4, failure_reason),
		updated_at          = now()
	WHERE id = $1 AND status = $3
	RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.ToStatus, arg.FromStatus, arg.FailureReason))
}

type CreateOrderItemParams struct {
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int32
	UnitPrice   pgtype.Numeric
	LineTotal   pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	const sql = `INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, line_total)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, order_id, product_id, product_name, quantity, unit_price, line_total`
	var i OrderItem
	err := q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.ProductID, arg.ProductName, arg.Quantity, arg.UnitPrice, arg.LineTotal,
	).Scan(&i.ID, &i.OrderID, &i.ProductID, &i.ProductName, &i.Quantity, &i.UnitPrice, &i.LineTotal)
	return i, err
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `SELECT id, order_id, product_id, product_name, quantity, unit_price, line_total
	FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.ProductName, &i.Quantity, &i.UnitPrice, &i.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type CreateOrderItemOptionParams struct {
	OrderItemID uuid.UUID
	OptionID    uuid.UUID
	Name        string
	PriceDelta  pgtype.Numeric
}

func (q *Queries) CreateOrderItemOption(ctx context.Context, arg CreateOrderItemOptionParams) (OrderItemOption, error) {
	const sql = `INSERT INTO order_item_options (order_item_id, option_id, name, price_delta)
	VALUES ($1, $2, $3, $4)
	RETURNING id, order_item_id, option_id, name, price_delta`
	var o OrderItemOption
	err := q.db.QueryRow(ctx, sql, arg.OrderItemID, arg.OptionID, arg.Name, arg.PriceDelta).
		Scan(&o.ID, &o.OrderItemID, &o.OptionID, &o.Name, &o.PriceDelta)
	return o, err
}

func (q *Queries) ListOrderItemOptionsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]OrderItemOption, error) {
	const sql = `SELECT id, order_item_id, option_id, name, price_delta
	FROM order_item_options WHERE order_item_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, sql, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opts []OrderItemOption
	for rows.Next() {
		var o OrderItemOption
		if err := rows.Scan(&o.ID, &o.OrderItemID, &o.OptionID, &o.Name, &o.PriceDelta); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

type CreateStatusLogParams struct {
	OrderID    uuid.UUID
	FromStatus pgtype.Text
	ToStatus   status.Status
	ChangedBy  string
	Notes      pgtype.Text
}

func (q *Queries) CreateStatusLog(ctx context.Context, arg CreateStatusLogParams) (StatusLog, error) {
	const sql = `INSERT INTO order_status_logs (order_id, from_status, to_status, changed_by, notes)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, order_id, from_status, to_status, changed_by, notes, created_at`
	var l StatusLog
	err := q.db.QueryRow(ctx, sql, arg.OrderID, arg.FromStatus, arg.ToStatus, arg.ChangedBy, arg.Notes).
		Scan(&l.ID, &l.OrderID, &l.FromStatus, &l.ToStatus, &l.ChangedBy, &l.Notes, &l.CreatedAt)
	return l, err
}

func (q *Queries) ListStatusLogsByOrder(ctx context.Context, orderID uuid.UUID) ([]StatusLog, error) {
	const sql = `SELECT id, order_id, from_status, to_status, changed_by, notes, created_at
	FROM order_status_logs WHERE order_id = $1 ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []StatusLog
	for rows.Next() {
		var l StatusLog
		if err := rows.Scan(&l.ID, &l.OrderID, &l.FromStatus, &l.ToStatus, &l.ChangedBy, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
