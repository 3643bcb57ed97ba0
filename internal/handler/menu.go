package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kapetayo/api/internal/cache"
	"github.com/kapetayo/api/internal/database"
)

// menuCacheKey is bumped whenever the rendered shape changes.
const menuCacheKey = "menu:v1"

// MenuStore defines the database methods needed by the menu handler.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListAvailableProducts(ctx context.Context) ([]database.Product, error)
	ListOptionsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductOption, error)
}

// MenuHandler serves the public storefront menu. Responses are cached as
// rendered JSON; catalog mutations invalidate the key.
type MenuHandler struct {
	store MenuStore
	cache cache.Cache
	ttl   time.Duration
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore, c cache.Cache, ttl time.Duration) *MenuHandler {
	return &MenuHandler{store: store, cache: c, ttl: ttl}
}

// RegisterRoutes registers the menu endpoint on the given Chi router.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.Get)
}

// --- Response types ---

type menuResponse struct {
	Products []menuProductResponse `json:"products"`
}

type menuProductResponse struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	Description *string              `json:"description"`
	Category    string               `json:"category"`
	BasePrice   string               `json:"base_price"`
	ImageUrl    *string              `json:"image_url"`
	Options     []menuOptionResponse `json:"options"`
}

type menuOptionResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PriceDelta string    `json:"price_delta"`
}

// --- Handlers ---

// Get handles GET /menu.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	if raw, ok := h.cache.Get(r.Context(), menuCacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(raw)
		return
	}

	products, err := h.store.ListAvailableProducts(r.Context())
	if err != nil {
		log.Printf("ERROR: list available products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := menuResponse{Products: make([]menuProductResponse, len(products))}
	for i, p := range products {
		opts, err := h.store.ListOptionsByProduct(r.Context(), p.ID)
		if err != nil {
			log.Printf("ERROR: list product options: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp.Products[i] = toMenuProductResponse(p, opts)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		log.Printf("ERROR: marshal menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.cache.Set(r.Context(), menuCacheKey, raw, h.ttl)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// --- Helpers ---

func toMenuProductResponse(p database.Product, opts []database.ProductOption) menuProductResponse {
	resp := menuProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		BasePrice: numericToString(p.BasePrice),
		Options:   make([]menuOptionResponse, len(opts)),
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	if p.ImageUrl.Valid {
		resp.ImageUrl = &p.ImageUrl.String
	}
	for i, o := range opts {
		resp.Options[i] = menuOptionResponse{
			ID:         o.ID,
			Name:       o.Name,
			PriceDelta: numericToString(o.PriceDelta),
		}
	}
	return resp
}
