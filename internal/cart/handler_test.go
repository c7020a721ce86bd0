package cart

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

type fakeStore struct {
	products map[string]*domain.Product
	lines    map[string]map[string]int // userID -> productID -> quantity
	order    map[string][]string       // insertion order of product ids per user
}

func newFakeStore(products ...*domain.Product) *fakeStore {
	s := &fakeStore{
		products: map[string]*domain.Product{},
		lines:    map[string]map[string]int{},
		order:    map[string][]string{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeStore) Lines(_ context.Context, userID string) ([]domain.CartLine, error) {
	var out []domain.CartLine
	for _, productID := range s.order[userID] {
		qty, ok := s.lines[userID][productID]
		if !ok {
			continue
		}
		p := s.products[productID]
		out = append(out, domain.CartLine{
			ProductID: p.ID, Name: p.Name, SKU: p.SKU, Price: p.Price,
			Quantity: qty, ImageURL: p.ImageURL,
		})
	}
	return out, nil
}

func (s *fakeStore) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	return s.products[productID], nil
}

func (s *fakeStore) upsert(userID, productID string, quantity int, sum bool) {
	if s.lines[userID] == nil {
		s.lines[userID] = map[string]int{}
	}
	if _, exists := s.lines[userID][productID]; !exists {
		s.order[userID] = append(s.order[userID], productID)
	}
	if sum {
		quantity += s.lines[userID][productID]
	}
	s.lines[userID][productID] = min(quantity, domain.MaxLineQuantity)
}

func (s *fakeStore) AddItem(_ context.Context, userID, productID string, quantity int) error {
	s.upsert(userID, productID, quantity, true)
	return nil
}

func (s *fakeStore) SetQuantity(_ context.Context, userID, productID string, quantity int) error {
	s.upsert(userID, productID, quantity, false)
	return nil
}

func (s *fakeStore) RemoveItem(_ context.Context, userID, productID string) error {
	delete(s.lines[userID], productID)
	return nil
}

func (s *fakeStore) Clear(_ context.Context, userID string) error {
	s.lines[userID] = map[string]int{}
	s.order[userID] = nil
	return nil
}

func (s *fakeStore) Merge(_ context.Context, userID string, items []domain.CartItem) error {
	for _, item := range items {
		s.upsert(userID, item.ProductID, item.Quantity, true)
	}
	return nil
}

func testHandler(store Store) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(store, pricing.NewCalculator(pricing.DefaultConfig()), logger)
}

func asUser(req *http.Request, userID string) *http.Request {
	ctx := identity.WithIdentity(req.Context(), identity.Identity{UserID: userID, Role: "customer"})
	return req.WithContext(ctx)
}

func decodeSummary(t *testing.T, rec *httptest.ResponseRecorder) domain.CartSummary {
	t.Helper()
	var summary domain.CartSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	return summary
}

func TestHandleAddItem(t *testing.T) {
	product := &domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5}

	t.Run("adds new line and returns priced summary", func(t *testing.T) {
		store := newFakeStore(product)
		handler := testHandler(store)

		req := asUser(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"p1","quantity":2}`)), "u1")
		rec := httptest.NewRecorder()
		handler.HandleAddItem(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		summary := decodeSummary(t, rec)
		if summary.Subtotal != 2000 {
			t.Errorf("expected subtotal 2000, got %d", summary.Subtotal)
		}
		if summary.Shipping != 999 {
			t.Errorf("expected shipping 999, got %d", summary.Shipping)
		}
		if summary.Tax != 160 {
			t.Errorf("expected tax 160, got %d", summary.Tax)
		}
		if summary.Total != 3159 {
			t.Errorf("expected total 3159, got %d", summary.Total)
		}
	})

	t.Run("adding an existing product sums quantities", func(t *testing.T) {
		store := newFakeStore(product)
		handler := testHandler(store)

		for i := 0; i < 2; i++ {
			req := asUser(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"p1","quantity":2}`)), "u1")
			rec := httptest.NewRecorder()
			handler.HandleAddItem(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
		}

		if got := store.lines["u1"]["p1"]; got != 4 {
			t.Errorf("expected quantity 4, got %d", got)
		}
	})

	t.Run("rejects out of range quantity instead of clamping", func(t *testing.T) {
		store := newFakeStore(product)
		handler := testHandler(store)

		for _, body := range []string{
			`{"product_id":"p1","quantity":0}`,
			`{"product_id":"p1","quantity":11}`,
			`{"product_id":"p1","quantity":-1}`,
		} {
			req := asUser(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(body)), "u1")
			rec := httptest.NewRecorder()
			handler.HandleAddItem(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("body %s: expected status 400, got %d", body, rec.Code)
			}
		}

		if len(store.lines["u1"]) != 0 {
			t.Error("expected no lines after rejected requests")
		}
	})

	t.Run("unknown product returns 404", func(t *testing.T) {
		store := newFakeStore(product)
		handler := testHandler(store)

		req := asUser(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"nope","quantity":1}`)), "u1")
		rec := httptest.NewRecorder()
		handler.HandleAddItem(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("early stock feedback rejects oversized request", func(t *testing.T) {
		store := newFakeStore(product)
		handler := testHandler(store)

		req := asUser(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"p1","quantity":7}`)), "u1")
		rec := httptest.NewRecorder()
		handler.HandleAddItem(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("early stock feedback counts the quantity already in the cart", func(t *testing.T) {
		store := newFakeStore(product)
		store.upsert("u1", "p1", 4, false)
		handler := testHandler(store)

		// 4 in the cart + 3 requested = 7, over the stock of 5.
		req := asUser(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"p1","quantity":3}`)), "u1")
		rec := httptest.NewRecorder()
		handler.HandleAddItem(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
		if got := store.lines["u1"]["p1"]; got != 4 {
			t.Errorf("expected quantity unchanged at 4, got %d", got)
		}
	})
}

func TestHandleUpdateItem(t *testing.T) {
	product := &domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 50}

	t.Run("sets quantity directly", func(t *testing.T) {
		store := newFakeStore(product)
		store.upsert("u1", "p1", 2, false)
		handler := testHandler(store)

		req := asUser(httptest.NewRequest(http.MethodPut, "/cart/items/p1", strings.NewReader(`{"quantity":5}`)), "u1")
		req.SetPathValue("productId", "p1")
		rec := httptest.NewRecorder()
		handler.HandleUpdateItem(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if got := store.lines["u1"]["p1"]; got != 5 {
			t.Errorf("expected quantity 5, got %d", got)
		}
	})

	t.Run("quantity zero removes the line", func(t *testing.T) {
		store := newFakeStore(product)
		store.upsert("u1", "p1", 2, false)
		handler := testHandler(store)

		req := asUser(httptest.NewRequest(http.MethodPut, "/cart/items/p1", strings.NewReader(`{"quantity":0}`)), "u1")
		req.SetPathValue("productId", "p1")
		rec := httptest.NewRecorder()
		handler.HandleUpdateItem(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if _, exists := store.lines["u1"]["p1"]; exists {
			t.Error("expected line removed")
		}

		summary := decodeSummary(t, rec)
		if summary.Total != 0 {
			t.Errorf("expected empty cart total 0, got %d", summary.Total)
		}
	})

	t.Run("rejects quantity above the cap", func(t *testing.T) {
		store := newFakeStore(product)
		handler := testHandler(store)

		req := asUser(httptest.NewRequest(http.MethodPut, "/cart/items/p1", strings.NewReader(`{"quantity":11}`)), "u1")
		req.SetPathValue("productId", "p1")
		rec := httptest.NewRecorder()
		handler.HandleUpdateItem(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandleMerge(t *testing.T) {
	p1 := &domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 50}
	p2 := &domain.Product{ID: "p2", SKU: "MUG-1", Name: "Mug", Price: 500, Stock: 50}

	t.Run("sums overlapping items and inserts new ones", func(t *testing.T) {
		store := newFakeStore(p1, p2)
		store.upsert("u1", "p1", 2, false)
		handler := testHandler(store)

		body := `{"items":[{"product_id":"p1","quantity":3},{"product_id":"p2","quantity":1}]}`
		req := asUser(httptest.NewRequest(http.MethodPost, "/cart/merge", strings.NewReader(body)), "u1")
		rec := httptest.NewRecorder()
		handler.HandleMerge(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := store.lines["u1"]["p1"]; got != 5 {
			t.Errorf("expected merged quantity 5, got %d", got)
		}
		if got := store.lines["u1"]["p2"]; got != 1 {
			t.Errorf("expected inserted quantity 1, got %d", got)
		}
	})

	t.Run("summed quantity is capped", func(t *testing.T) {
		store := newFakeStore(p1)
		store.upsert("u1", "p1", 8, false)
		handler := testHandler(store)

		body := `{"items":[{"product_id":"p1","quantity":8}]}`
		req := asUser(httptest.NewRequest(http.MethodPost, "/cart/merge", strings.NewReader(body)), "u1")
		rec := httptest.NewRecorder()
		handler.HandleMerge(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if got := store.lines["u1"]["p1"]; got != domain.MaxLineQuantity {
			t.Errorf("expected capped quantity %d, got %d", domain.MaxLineQuantity, got)
		}
	})

	t.Run("rejects invalid merge items", func(t *testing.T) {
		store := newFakeStore(p1)
		handler := testHandler(store)

		body := `{"items":[{"product_id":"p1","quantity":0}]}`
		req := asUser(httptest.NewRequest(http.MethodPost, "/cart/merge", strings.NewReader(body)), "u1")
		rec := httptest.NewRecorder()
		handler.HandleMerge(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandleClear(t *testing.T) {
	product := &domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 50}
	store := newFakeStore(product)
	store.upsert("u1", "p1", 2, false)
	handler := testHandler(store)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/cart", nil), "u1")
	rec := httptest.NewRecorder()
	handler.HandleClear(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	summary := decodeSummary(t, rec)
	if len(summary.Items) != 0 {
		t.Errorf("expected empty cart, got %d items", len(summary.Items))
	}
}
