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
	"github.com/shopspring/decimal"
)

// Errors returned by the shift service.
var (
	ErrShiftAlreadyActive  = errors.New("a shift is already active")
	ErrShiftAlreadyClosed  = errors.New("shift is already closed")
	ErrShiftNotFound       = errors.New("shift not found")
	ErrNoActiveShift       = errors.New("no active shift")
	ErrInvalidOpeningFloat = errors.New("invalid opening_cash_float")
	ErrInvalidCashCount    = errors.New("invalid actual_cash_count")
)

// InFlightOrdersError vetoes a shift close while counter orders are still
// being worked. It carries the blocking orders so the caller can show them.
type InFlightOrdersError struct {
	Orders []database.Order
}

func (e *InFlightOrdersError) Error() string {
	return fmt.Sprintf("cannot close shift: %d order(s) still in flight", len(e.Orders))
}

// ShiftStore defines the DB methods needed by the shift service.
// Satisfied by *database.Queries (and its WithTx variant).
type ShiftStore interface {
	CreateShift(ctx context.Context, arg database.CreateShiftParams) (database.Shift, error)
	GetActiveShift(ctx context.Context) (database.Shift, error)
	GetShift(ctx context.Context, id uuid.UUID) (database.Shift, error)
	GetShiftForUpdate(ctx context.Context, id uuid.UUID) (database.Shift, error)
	ListInFlightOrdersByShift(ctx context.Context, shiftID uuid.UUID) ([]database.Order, error)
	CloseShift(ctx context.Context, arg database.CloseShiftParams) (database.Shift, error)
	ListShifts(ctx context.Context, arg database.ListShiftsParams) ([]database.Shift, error)
}

// NewShiftStore creates a ShiftStore from a DBTX (pool or tx).
type NewShiftStore func(db database.DBTX) ShiftStore

// OpenShiftRequest is the validated input for opening a shift.
type OpenShiftRequest struct {
	OpenedBy         uuid.UUID
	OpeningCashFloat string
	Notes            string
}

// CloseShiftRequest is the validated input for closing a shift. The cashier
// counts the drawer blind: the expected figure is never shown before the
// count is submitted.
type CloseShiftRequest struct {
	ShiftID         uuid.UUID
	ClosedBy        uuid.UUID
	ActualCashCount string
	Notes           string
}

// ShiftService handles cash drawer lifecycle logic.
type ShiftService struct {
	pool                 TxBeginner
	newStore             NewShiftStore
	openingFloatMax      decimal.Decimal
	discrepancyThreshold decimal.Decimal
}

// NewShiftService creates a new ShiftService.
func NewShiftService(pool TxBeginner, newStore NewShiftStore, openingFloatMax, discrepancyThreshold decimal.Decimal) *ShiftService {
	return &ShiftService{
		pool:                 pool,
		newStore:             newStore,
		openingFloatMax:      openingFloatMax,
		discrepancyThreshold: discrepancyThreshold,
	}
}

// OpenShift opens a new drawer. At most one shift may be active at a time;
// the partial unique index on active shifts enforces this under concurrency.
func (s *ShiftService) OpenShift(ctx context.Context, store ShiftStore, req OpenShiftRequest) (database.Shift, error) {
	openingFloat, err := decimal.NewFromString(req.OpeningCashFloat)
	if err != nil {
		return database.Shift{}, ErrInvalidOpeningFloat
	}
	if openingFloat.IsNegative() || openingFloat.GreaterThan(s.openingFloatMax) {
		return database.Shift{}, ErrInvalidOpeningFloat
	}

	shift, err := store.CreateShift(ctx, database.CreateShiftParams{
		OpenedBy:         req.OpenedBy,
		OpeningCashFloat: decimalToNumeric(openingFloat),
		Notes:            optionalText(req.Notes),
	})
	if err != nil {
		if isActiveShiftConflict(err) {
			return database.Shift{}, ErrShiftAlreadyActive
		}
		return database.Shift{}, fmt.Errorf("create shift: %w", err)
	}
	return shift, nil
}

// CloseShift performs the blind count reconciliation atomically: locks the
// shift, vetoes the close if counter orders are still in flight, then
// derives expected cash, variance, and the discrepancy flag.
func (s *ShiftService) CloseShift(ctx context.Context, req CloseShiftRequest) (database.Shift, error) {
	actualCount, err := decimal.NewFromString(req.ActualCashCount)
	if err != nil || actualCount.IsNegative() {
		return database.Shift{}, ErrInvalidCashCount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Shift{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	shift, err := store.GetShiftForUpdate(ctx, req.ShiftID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Shift{}, ErrShiftNotFound
		}
		return database.Shift{}, fmt.Errorf("get shift: %w", err)
	}
	if shift.Status == enum.ShiftStatusClosed {
		return database.Shift{}, ErrShiftAlreadyClosed
	}

	inFlight, err := store.ListInFlightOrdersByShift(ctx, shift.ID)
	if err != nil {
		return database.Shift{}, fmt.Errorf("list in-flight orders: %w", err)
	}
	if len(inFlight) > 0 {
		return database.Shift{}, &InFlightOrdersError{Orders: inFlight}
	}

	// expected = opening float + cash sales. E-wallet sales never enter the
	// drawer, so they do not count toward expected cash.
	expected := numericToDecimal(shift.OpeningCashFloat).Add(numericToDecimal(shift.CashSalesTotal))
	variance := actualCount.Sub(expected)
	isDiscrepant := variance.Abs().GreaterThan(s.discrepancyThreshold)

	closed, err := store.CloseShift(ctx, database.CloseShiftParams{
		ID:              shift.ID,
		ClosedBy:        pgtype.UUID{Bytes: req.ClosedBy, Valid: true},
		ActualCashCount: decimalToNumeric(actualCount),
		ExpectedCash:    decimalToNumeric(expected),
		Variance:        decimalToNumeric(variance),
		IsDiscrepant:    pgtype.Bool{Bool: isDiscrepant, Valid: true},
		Notes:           optionalText(req.Notes),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Shift{}, ErrShiftAlreadyClosed
		}
		return database.Shift{}, fmt.Errorf("close shift: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Shift{}, fmt.Errorf("commit tx: %w", err)
	}
	return closed, nil
}

// GetActiveShift returns the current open drawer, if any.
func (s *ShiftService) GetActiveShift(ctx context.Context, store ShiftStore) (database.Shift, error) {
	shift, err := store.GetActiveShift(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Shift{}, ErrNoActiveShift
		}
		return database.Shift{}, fmt.Errorf("get active shift: %w", err)
	}
	return shift, nil
}

// isActiveShiftConflict checks if the error is a unique violation on the
// single-active-shift partial index.
func isActiveShiftConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "shifts_single_active_idx"
	}
	return false
}
