package cart

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

// Store is the cart persistence surface the handler needs. *Repository
// implements it.
type Store interface {
	Lines(ctx context.Context, userID string) ([]domain.CartLine, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
	Merge(ctx context.Context, userID string, items []domain.CartItem) error
}

type Handler struct {
	store  Store
	pricer *pricing.Calculator
	logger *slog.Logger
}

func NewHandler(store Store, pricer *pricing.Calculator, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		pricer: pricer,
		logger: logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	h.respondWithSummary(w, r, userID)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}
	if req.Quantity < 1 || req.Quantity > domain.MaxLineQuantity {
		h.writeError(w, http.StatusBadRequest, "quantity must be between 1 and 10")
		return
	}

	product, err := h.store.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	lines, err := h.store.Lines(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Early feedback only, against the line quantity the add would produce.
	// Availability is committed at checkout, where the decrement is
	// conditional.
	resulting := req.Quantity
	for _, line := range lines {
		if line.ProductID == req.ProductID {
			resulting = min(resulting+line.Quantity, domain.MaxLineQuantity)
			break
		}
	}
	if resulting > product.Stock {
		h.writeError(w, http.StatusConflict, (&domain.InsufficientStockError{
			ProductID: product.ID,
			Name:      product.Name,
			Requested: resulting,
			Available: product.Stock,
		}).Error())
		return
	}

	if err := h.store.AddItem(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		h.logger.Error("failed to add cart item", "error", err, "user_id", userID, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart item added", "user_id", userID, "product_id", req.ProductID, "quantity", req.Quantity)
	h.respondWithSummary(w, r, userID)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Quantity < 0 || req.Quantity > domain.MaxLineQuantity {
		h.writeError(w, http.StatusBadRequest, "quantity must be between 0 and 10")
		return
	}

	// Quantity zero means remove.
	if req.Quantity == 0 {
		if err := h.store.RemoveItem(r.Context(), userID, productID); err != nil {
			h.logger.Error("failed to remove cart item", "error", err, "user_id", userID, "product_id", productID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		h.respondWithSummary(w, r, userID)
		return
	}

	product, err := h.store.GetProduct(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := h.store.SetQuantity(r.Context(), userID, productID, req.Quantity); err != nil {
		h.logger.Error("failed to update cart item", "error", err, "user_id", userID, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart item updated", "user_id", userID, "product_id", productID, "quantity", req.Quantity)
	h.respondWithSummary(w, r, userID)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	if err := h.store.RemoveItem(r.Context(), userID, productID); err != nil {
		h.logger.Error("failed to remove cart item", "error", err, "user_id", userID, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart item removed", "user_id", userID, "product_id", productID)
	h.respondWithSummary(w, r, userID)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)

	if err := h.store.Clear(r.Context(), userID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart cleared", "user_id", userID)
	h.respondWithSummary(w, r, userID)
}

type mergeRequest struct {
	Items []domain.CartItem `json:"items"`
}

// HandleMerge folds an anonymous client-held cart into the server cart at
// login. Quantities for products present on both sides are summed, capped at
// the per-line maximum.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, item := range req.Items {
		if item.ProductID == "" {
			h.writeError(w, http.StatusBadRequest, "missing product id in merge items")
			return
		}
		if item.Quantity < 1 || item.Quantity > domain.MaxLineQuantity {
			h.writeError(w, http.StatusBadRequest, "merge item quantity must be between 1 and 10")
			return
		}
	}

	if err := h.store.Merge(r.Context(), userID, req.Items); err != nil {
		h.logger.Error("failed to merge cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart merged", "user_id", userID, "items", len(req.Items))
	h.respondWithSummary(w, r, userID)
}

func (h *Handler) respondWithSummary(w http.ResponseWriter, r *http.Request, userID string) {
	lines, err := h.store.Lines(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, h.summarize(lines))
}

// summarize prices the cart with the standard method and no coupon; it is a
// display estimate, the binding quote happens at checkout.
func (h *Handler) summarize(lines []domain.CartLine) domain.CartSummary {
	if len(lines) == 0 {
		return domain.CartSummary{Items: []domain.CartLine{}}
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{Price: line.Price, Quantity: line.Quantity})
	}

	quote := h.pricer.Price(items, domain.ShippingStandard, nil)

	return domain.CartSummary{
		Items:    lines,
		Subtotal: quote.Subtotal,
		Shipping: quote.Shipping,
		Tax:      quote.Tax,
		Total:    quote.Total,
	}
}

func (h *Handler) userID(r *http.Request) string {
	id, _ := identity.FromContext(r.Context())
	return id.UserID
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
