package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const shiftColumns = `id, status, opened_by, closed_by,
	opening_cash_float, cash_sales_total, ewallet_sales_total, gross_sales_total,
	actual_cash_count, expected_cash, variance, is_discrepant, notes,
	opened_at, closed_at, created_at, updated_at`

func scanShift(row pgx.Row) (Shift, error) {
	var s Shift
	err := row.Scan(
		&s.ID, &s.Status, &s.OpenedBy, &s.ClosedBy,
		&s.OpeningCashFloat, &s.CashSalesTotal, &s.EwalletSalesTotal, &s.GrossSalesTotal,
		&s.ActualCashCount, &s.ExpectedCash, &s.Variance, &s.IsDiscrepant, &s.Notes,
		&s.OpenedAt, &s.ClosedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

type CreateShiftParams struct {
	OpenedBy         uuid.UUID
	OpeningCashFloat pgtype.Numeric
	Notes            pgtype.Text
}

// CreateShift opens a new active shift. The partial unique index on active
// shifts makes a second concurrent open fail with a unique violation.
func (q *Queries) CreateShift(ctx context.Context, arg CreateShiftParams) (Shift, error) {
	const sql = `INSERT INTO shifts (status, opened_by, opening_cash_float, notes)
	VALUES ('ACTIVE', $1, $2, $3)
	RETURNING ` + shiftColumns
	return scanShift(q.db.QueryRow(ctx, sql, arg.OpenedBy, arg.OpeningCashFloat, arg.Notes))
}

func (q *Queries) GetActiveShift(ctx context.Context) (Shift, error) {
	const sql = `SELECT ` + shiftColumns + ` FROM shifts WHERE status = 'ACTIVE'`
	return scanShift(q.db.QueryRow(ctx, sql))
}

func (q *Queries) GetShift(ctx context.Context, id uuid.UUID) (Shift, error) {
	const sql = `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1`
	return scanShift(q.db.QueryRow(ctx, sql, id))
}

// GetShiftForUpdate locks the shift row for the duration of the transaction
// so close and sale recording cannot interleave.
func (q *Queries) GetShiftForUpdate(ctx context.Context, id uuid.UUID) (Shift, error) {
	const sql = `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1 FOR UPDATE`
	return scanShift(q.db.QueryRow(ctx, sql, id))
}

type AddShiftSaleParams struct {
	ID            uuid.UUID
	CashAmount    pgtype.Numeric
	EwalletAmount pgtype.Numeric
}

// AddShiftSale folds a completed sale into the shift accumulators. Guarded on
// ACTIVE so a sale can never land on a closed shift.
func (q *Queries) AddShiftSale(ctx context.Context, arg AddShiftSaleParams) (Shift, error) {
	const sql = `UPDATE shifts SET
		cash_sales_total    = cash_sales_total + $2,
		ewallet_sales_total = ewallet_sales_total + $3,
		gross_sales_total   = gross_sales_total + $2 + $3,
		updated_at          = now()
	WHERE id = $1 AND status = 'ACTIVE'
	RETURNING ` + shiftColumns
	return scanShift(q.db.QueryRow(ctx, sql, arg.ID, arg.CashAmount, arg.EwalletAmount))
}

type CloseShiftParams struct {
	ID              uuid.UUID
	ClosedBy        pgtype.UUID
	ActualCashCount pgtype.Numeric
	ExpectedCash    pgtype.Numeric
	Variance        pgtype.Numeric
	IsDiscrepant    pgtype.Bool
	Notes           pgtype.Text
}

func (q *Queries) CloseShift(ctx context.Context, arg CloseShiftParams) (Shift, error) {
	const sql = `UPDATE shifts SET
		status            = 'CLOSED',
		closed_by         = $2,
		actual_cash_count = $3,
		expected_cash     = $4,
		variance          = $5,
		is_discrepant     = $6,
		notes             = COALESCE($7, notes),
		closed_at         = now(),
		updated_at        = now()
	WHERE id = $1 AND status = 'ACTIVE'
	RETURNING ` + shiftColumns
	return scanShift(q.db.QueryRow(ctx, sql,
		arg.ID, arg.ClosedBy, arg.ActualCashCount, arg.ExpectedCash, arg.Variance, arg.IsDiscrepant, arg.Notes,
	))
}

type ListShiftsParams struct {
	Status pgtype.Text
	From   pgtype.Timestamptz
	To     pgtype.Timestamptz
	Limit  int32
	Offset int32
}

func (q *Queries) ListShifts(ctx context.Context, arg ListShiftsParams) ([]Shift, error) {
	const sql = `SELECT ` + shiftColumns + ` FROM shifts
	WHERE ($1::text IS NULL OR status = $1)
	  AND ($2::timestamptz IS NULL OR opened_at >= $2)
	  AND ($3::timestamptz IS NULL OR opened_at < $3 + interval '1 day')
	ORDER BY opened_at DESC
	LIMIT $4 OFFSET $5`
	rows, err := q.db.Query(ctx, sql, arg.Status, arg.From, arg.To, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}
