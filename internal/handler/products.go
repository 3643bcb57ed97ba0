package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kapetayo/api/internal/cache"
	"github.com/kapetayo/api/internal/database"
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	CreateProductOption(ctx context.Context, arg database.CreateProductOptionParams) (database.ProductOption, error)
	ListOptionsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductOption, error)
}

// ProductHandler handles catalog management endpoints.
type ProductHandler struct {
	store ProductStore
	cache cache.Cache
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, c cache.Cache) *ProductHandler {
	return &ProductHandler{store: store, cache: c}
}

// RegisterRoutes registers product endpoints on the given Chi router.
// Expected to be mounted inside the manager-only subrouter: /products
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Get("/{id}/options", h.ListOptions)
	r.Post("/{id}/options", h.CreateOption)
}

// --- Request / Response types ---

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	BasePrice   string `json:"base_price"`
	ImageUrl    string `json:"image_url"`
	IsAvailable *bool  `json:"is_available"`
}

type productOptionRequest struct {
	Name       string `json:"name"`
	PriceDelta string `json:"price_delta"`
	SortOrder  int32  `json:"sort_order"`
}

type productResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Category    string    `json:"category"`
	BasePrice   string    `json:"base_price"`
	ImageUrl    *string   `json:"image_url"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type productOptionResponse struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	PriceDelta string    `json:"price_delta"`
	SortOrder  int32     `json:"sort_order"`
}

// --- Handlers ---

// List handles GET /products. Unlike the public menu, it includes
// unavailable products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = dbProductToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbProductToResponse(product))
}

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, ok := h.validateProduct(w, req)
	if !ok {
		return
	}

	product, err := h.store.CreateProduct(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.cache.Delete(r.Context(), menuCacheKey)
	writeJSON(w, http.StatusCreated, dbProductToResponse(product))
}

// Update handles PUT /products/{id}.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, ok := h.validateProduct(w, req)
	if !ok {
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:          productID,
		Name:        params.Name,
		Description: params.Description,
		Category:    params.Category,
		BasePrice:   params.BasePrice,
		ImageUrl:    params.ImageUrl,
		IsAvailable: params.IsAvailable,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.cache.Delete(r.Context(), menuCacheKey)
	writeJSON(w, http.StatusOK, dbProductToResponse(product))
}

// ListOptions handles GET /products/{id}/options.
func (h *ProductHandler) ListOptions(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	opts, err := h.store.ListOptionsByProduct(r.Context(), productID)
	if err != nil {
		log.Printf("ERROR: list product options: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productOptionResponse, len(opts))
	for i, o := range opts {
		resp[i] = dbOptionToResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateOption handles POST /products/{id}/options.
func (h *ProductHandler) CreateOption(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req productOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	delta, err := decimal.NewFromString(req.PriceDelta)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price_delta"})
		return
	}

	// The product must exist; a dangling option would surface as a pricing
	// failure much later at checkout.
	if _, err := h.store.GetProduct(r.Context(), productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product for option: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	opt, err := h.store.CreateProductOption(r.Context(), database.CreateProductOptionParams{
		ProductID:  productID,
		Name:       req.Name,
		PriceDelta: decimalToNumeric(delta),
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		log.Printf("ERROR: create product option: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.cache.Delete(r.Context(), menuCacheKey)
	writeJSON(w, http.StatusCreated, dbOptionToResponse(opt))
}

// --- Helpers ---

func (h *ProductHandler) validateProduct(w http.ResponseWriter, req productRequest) (database.CreateProductParams, bool) {
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return database.CreateProductParams{}, false
	}
	if req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category is required"})
		return database.CreateProductParams{}, false
	}
	price, err := decimal.NewFromString(req.BasePrice)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid base_price"})
		return database.CreateProductParams{}, false
	}

	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}

	params := database.CreateProductParams{
		Name:        req.Name,
		Category:    req.Category,
		BasePrice:   decimalToNumeric(price),
		IsAvailable: isAvailable,
	}
	if req.Description != "" {
		params.Description = pgtype.Text{String: req.Description, Valid: true}
	}
	if req.ImageUrl != "" {
		params.ImageUrl = pgtype.Text{String: req.ImageUrl, Valid: true}
	}
	return params, true
}

func dbProductToResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		BasePrice:   numericToString(p.BasePrice),
		IsAvailable: p.IsAvailable,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	if p.ImageUrl.Valid {
		resp.ImageUrl = &p.ImageUrl.String
	}
	return resp
}

func dbOptionToResponse(o database.ProductOption) productOptionResponse {
	return productOptionResponse{
		ID:         o.ID,
		ProductID:  o.ProductID,
		Name:       o.Name,
		PriceDelta: numericToString(o.PriceDelta),
		SortOrder:  o.SortOrder,
	}
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
