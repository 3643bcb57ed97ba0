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
	"github.com/kapetayo/api/internal/enum"
	"github.com/kapetayo/api/internal/middleware"
	"github.com/kapetayo/api/internal/service"
)

// ShiftServicer defines the service methods needed by shift handlers.
// Satisfied by *service.ShiftService; narrow interface for testability.
type ShiftServicer interface {
	OpenShift(ctx context.Context, store service.ShiftStore, req service.OpenShiftRequest) (database.Shift, error)
	CloseShift(ctx context.Context, req service.CloseShiftRequest) (database.Shift, error)
	GetActiveShift(ctx context.Context, store service.ShiftStore) (database.Shift, error)
}

// ShiftStore defines the database methods needed by shift handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ShiftStore interface {
	CreateShift(ctx context.Context, arg database.CreateShiftParams) (database.Shift, error)
	GetActiveShift(ctx context.Context) (database.Shift, error)
	GetShift(ctx context.Context, id uuid.UUID) (database.Shift, error)
	GetShiftForUpdate(ctx context.Context, id uuid.UUID) (database.Shift, error)
	ListInFlightOrdersByShift(ctx context.Context, shiftID uuid.UUID) ([]database.Order, error)
	CloseShift(ctx context.Context, arg database.CloseShiftParams) (database.Shift, error)
	ListShifts(ctx context.Context, arg database.ListShiftsParams) ([]database.Shift, error)
}

// ShiftHandler handles cash drawer endpoints.
type ShiftHandler struct {
	svc   ShiftServicer
	store ShiftStore
}

// NewShiftHandler creates a new ShiftHandler.
func NewShiftHandler(svc ShiftServicer, store ShiftStore) *ShiftHandler {
	return &ShiftHandler{svc: svc, store: store}
}

// RegisterRoutes registers shift endpoints on the given Chi router.
// Expected to be mounted inside the authenticated subrouter: /shifts
func (h *ShiftHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.List)
	r.Get("/active", h.Active)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/close", h.Close)
}

// --- Request / Response types ---

type openShiftRequest struct {
	OpeningCashFloat string `json:"opening_cash_float"`
	Notes            string `json:"notes"`
}

type closeShiftRequest struct {
	ActualCashCount string `json:"actual_cash_count"`
	Notes           string `json:"notes"`
}

type shiftResponse struct {
	ID                uuid.UUID  `json:"id"`
	Status            string     `json:"status"`
	OpenedBy          uuid.UUID  `json:"opened_by"`
	ClosedBy          *string    `json:"closed_by"`
	OpeningCashFloat  string     `json:"opening_cash_float"`
	CashSalesTotal    string     `json:"cash_sales_total"`
	EwalletSalesTotal string     `json:"ewallet_sales_total"`
	GrossSalesTotal   string     `json:"gross_sales_total"`
	ActualCashCount   *string    `json:"actual_cash_count"`
	ExpectedCash      *string    `json:"expected_cash"`
	Variance          *string    `json:"variance"`
	IsDiscrepant      *bool      `json:"is_discrepant"`
	Notes             *string    `json:"notes"`
	OpenedAt          time.Time  `json:"opened_at"`
	ClosedAt          *time.Time `json:"closed_at"`
}

// shiftListResponse wraps a list of shifts with pagination metadata.
type shiftListResponse struct {
	Shifts []shiftResponse `json:"shifts"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Open handles POST /shifts.
func (h *ShiftHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req openShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OpeningCashFloat == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "opening_cash_float is required"})
		return
	}

	shift, err := h.svc.OpenShift(r.Context(), h.store, service.OpenShiftRequest{
		OpenedBy:         claims.UserID,
		OpeningCashFloat: req.OpeningCashFloat,
		Notes:            req.Notes,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidOpeningFloat) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, service.ErrShiftAlreadyActive) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: open shift: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbShiftToResponse(shift))
}

// Close handles POST /shifts/{id}/close: the blind count submission.
func (h *ShiftHandler) Close(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	shiftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift ID"})
		return
	}

	var req closeShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ActualCashCount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "actual_cash_count is required"})
		return
	}

	shift, err := h.svc.CloseShift(r.Context(), service.CloseShiftRequest{
		ShiftID:         shiftID,
		ClosedBy:        claims.UserID,
		ActualCashCount: req.ActualCashCount,
		Notes:           req.Notes,
	})
	if err != nil {
		var inFlight *service.InFlightOrdersError
		switch {
		case errors.Is(err, service.ErrInvalidCashCount):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrShiftNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "shift not found"})
		case errors.Is(err, service.ErrShiftAlreadyClosed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.As(err, &inFlight):
			blocking := make([]orderResponse, len(inFlight.Orders))
			for i, o := range inFlight.Orders {
				blocking[i] = dbOrderToResponse(o)
			}
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error":  inFlight.Error(),
				"orders": blocking,
			})
		default:
			log.Printf("ERROR: close shift: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dbShiftToResponse(shift))
}

// Active handles GET /shifts/active.
func (h *ShiftHandler) Active(w http.ResponseWriter, r *http.Request) {
	shift, err := h.svc.GetActiveShift(r.Context(), h.store)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveShift) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active shift"})
			return
		}
		log.Printf("ERROR: get active shift: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbShiftToResponse(shift))
}

// Get handles GET /shifts/{id}.
func (h *ShiftHandler) Get(w http.ResponseWriter, r *http.Request) {
	shiftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift ID"})
		return
	}

	shift, err := h.store.GetShift(r.Context(), shiftID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "shift not found"})
			return
		}
		log.Printf("ERROR: get shift: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbShiftToResponse(shift))
}

// List handles GET /shifts.
func (h *ShiftHandler) List(w http.ResponseWriter, r *http.Request) {
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

	params := database.ListShiftsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		if s != enum.ShiftStatusActive && s != enum.ShiftStatusClosed {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from format, use YYYY-MM-DD"})
			return
		}
		params.From = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to format, use YYYY-MM-DD"})
			return
		}
		params.To = pgtype.Timestamptz{Time: t, Valid: true}
	}

	shifts, err := h.store.ListShifts(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list shifts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]shiftResponse, len(shifts))
	for i, s := range shifts {
		resp[i] = dbShiftToResponse(s)
	}

	writeJSON(w, http.StatusOK, shiftListResponse{
		Shifts: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// --- Helpers ---

func dbShiftToResponse(s database.Shift) shiftResponse {
	resp := shiftResponse{
		ID:                s.ID,
		Status:            s.Status,
		OpenedBy:          s.OpenedBy,
		OpeningCashFloat:  numericToString(s.OpeningCashFloat),
		CashSalesTotal:    numericToString(s.CashSalesTotal),
		EwalletSalesTotal: numericToString(s.EwalletSalesTotal),
		GrossSalesTotal:   numericToString(s.GrossSalesTotal),
		OpenedAt:          s.OpenedAt,
	}

	if s.ClosedBy.Valid {
		v := uuid.UUID(s.ClosedBy.Bytes).String()
		resp.ClosedBy = &v
	}
	if s.ActualCashCount.Valid {
		v := numericToString(s.ActualCashCount)
		resp.ActualCashCount = &v
	}
	if s.ExpectedCash.Valid {
		v := numericToString(s.ExpectedCash)
		resp.ExpectedCash = &v
	}
	if s.Variance.Valid {
		v := numericToString(s.Variance)
		resp.Variance = &v
	}
	if s.IsDiscrepant.Valid {
		resp.IsDiscrepant = &s.IsDiscrepant.Bool
	}
	if s.Notes.Valid {
		resp.Notes = &s.Notes.String
	}
	if s.ClosedAt.Valid {
		resp.ClosedAt = &s.ClosedAt.Time
	}

	return resp
}
