package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kapetayo/api/internal/status"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Category    string
	BasePrice   pgtype.Numeric
	ImageUrl    pgtype.Text
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ProductOption struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	Name       string
	PriceDelta pgtype.Numeric
	SortOrder  int32
	CreatedAt  time.Time
}

type Shift struct {
	ID                uuid.UUID
	Status            string
	OpenedBy          uuid.UUID
	ClosedBy          pgtype.UUID
	OpeningCashFloat  pgtype.Numeric
	CashSalesTotal    pgtype.Numeric
	EwalletSalesTotal pgtype.Numeric
	GrossSalesTotal   pgtype.Numeric
	ActualCashCount   pgtype.Numeric
	ExpectedCash      pgtype.Numeric
	Variance          pgtype.Numeric
	IsDiscrepant      pgtype.Bool
	Notes             pgtype.Text
	OpenedAt          time.Time
	ClosedAt          pgtype.Timestamptz
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Order struct {
	ID                   uuid.UUID
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
	ConfirmedAt          pgtype.Timestamptz
	PreparingAt          pgtype.Timestamptz
	OutForDeliveryAt     pgtype.Timestamptz
	DeliveredAt          pgtype.Timestamptz
	FailedAt             pgtype.Timestamptz
	CancelledAt          pgtype.Timestamptz
	FailureReason        pgtype.Text
	CreatedBy            pgtype.UUID
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int32
	UnitPrice   pgtype.Numeric
	LineTotal   pgtype.Numeric
}

type OrderItemOption struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
	OptionID    uuid.UUID
	Name        string
	PriceDelta  pgtype.Numeric
}

// StatusLog rows are append-only; there is no update or delete query for them.
type StatusLog struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	FromStatus pgtype.Text
	ToStatus   status.Status
	ChangedBy  string
	Notes      pgtype.Text
	CreatedAt  time.Time
}
