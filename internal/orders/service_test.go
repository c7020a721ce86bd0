package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

type fakeStore struct {
	products    map[string]*domain.Product
	coupons     map[string]*domain.Coupon
	cart        map[string][]domain.CartItem
	orders      map[string]*domain.Order
	duplicates  int // number of CreateOrder calls to fail with a number collision
	createCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[string]*domain.Product{},
		coupons:  map[string]*domain.Coupon{},
		cart:     map[string][]domain.CartItem{},
		orders:   map[string]*domain.Order{},
	}
}

func (s *fakeStore) addProduct(p domain.Product) {
	copied := p
	s.products[p.ID] = &copied
}

func (s *fakeStore) GetProducts(_ context.Context, ids []string) ([]domain.Product, error) {
	var out []domain.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetCoupon(_ context.Context, code string) (*domain.Coupon, error) {
	return s.coupons[code], nil
}

func (s *fakeStore) CartItems(_ context.Context, userID string) ([]domain.CartItem, error) {
	return s.cart[userID], nil
}

func (s *fakeStore) CreateOrder(_ context.Context, order *domain.Order) error {
	s.createCalls++
	if s.duplicates > 0 {
		s.duplicates--
		return errDuplicateOrderNumber
	}
	if _, exists := s.orders[order.OrderNumber]; exists {
		return errDuplicateOrderNumber
	}

	// Conditional decrement per line; any failure aborts with no mutations.
	for _, item := range order.Items {
		p, ok := s.products[item.ProductID]
		if !ok {
			return domain.ErrNotFound
		}
		if p.Stock < item.Quantity {
			return &domain.InsufficientStockError{
				ProductID: p.ID, Name: p.Name,
				Requested: item.Quantity, Available: p.Stock,
			}
		}
	}
	for _, item := range order.Items {
		s.products[item.ProductID].Stock -= item.Quantity
	}

	copied := *order
	s.orders[order.OrderNumber] = &copied
	delete(s.cart, order.UserID)
	return nil
}

func (s *fakeStore) GetOrder(_ context.Context, orderNumber string) (*domain.Order, error) {
	order, ok := s.orders[orderNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *fakeStore) ListOrders(_ context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *fakeStore) CancelOrder(_ context.Context, orderNumber, userID string, admin bool, reason string) (*domain.Order, error) {
	order, ok := s.orders[orderNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !admin && order.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if !order.CanCancel() {
		return nil, fmt.Errorf("%w: cannot cancel order in status %s", domain.ErrInvalidTransition, order.Status)
	}

	for _, item := range order.Items {
		s.products[item.ProductID].Stock += item.Quantity
	}

	now := time.Now().UTC()
	order.Status = domain.OrderStatusCancelled
	if order.CancelledDate == nil {
		order.CancelledDate = &now
	}
	message := "Order cancelled"
	if reason != "" {
		message = "Order cancelled: " + reason
	}
	order.TrackingHistory = append(order.TrackingHistory, domain.TrackingEntry{
		Status: domain.OrderStatusCancelled, Message: message, Timestamp: now,
	})

	copied := *order
	return &copied, nil
}

func (s *fakeStore) AddTracking(_ context.Context, orderNumber string, status domain.OrderStatus, message, location string) (*domain.Order, error) {
	order, ok := s.orders[orderNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}

	now := time.Now().UTC()
	order.Status = status
	switch status {
	case domain.OrderStatusShipped:
		if order.ShippedDate == nil {
			order.ShippedDate = &now
		}
	case domain.OrderStatusDelivered:
		if order.DeliveredDate == nil {
			order.DeliveredDate = &now
		}
	case domain.OrderStatusCancelled:
		if order.CancelledDate == nil {
			order.CancelledDate = &now
		}
	}
	order.TrackingHistory = append(order.TrackingHistory, domain.TrackingEntry{
		Status: status, Message: message, Location: location, Timestamp: now,
	})

	copied := *order
	return &copied, nil
}

func (s *fakeStore) ReturnOrder(_ context.Context, orderNumber, userID string, admin bool, now time.Time) (*domain.Order, error) {
	order, ok := s.orders[orderNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !admin && order.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if !order.CanReturn(now) {
		return nil, fmt.Errorf("%w: order is not returnable", domain.ErrInvalidTransition)
	}

	order.Status = domain.OrderStatusReturned
	order.TrackingHistory = append(order.TrackingHistory, domain.TrackingEntry{
		Status: domain.OrderStatusReturned, Message: "Return accepted", Timestamp: now,
	})
	copied := *order
	return &copied, nil
}

func (s *fakeStore) Refund(_ context.Context, orderNumber, transactionID string, amount int64, reason string) (*domain.Order, error) {
	order, ok := s.orders[orderNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if amount > order.Total-order.RefundAmount {
		return nil, fmt.Errorf("%w: requested %d, remaining %d", domain.ErrRefundExceedsTotal, amount, order.Total-order.RefundAmount)
	}

	order.RefundAmount += amount
	if order.RefundAmount >= order.Total {
		order.PaymentStatus = domain.PaymentStatusRefunded
	} else {
		order.PaymentStatus = domain.PaymentStatusPartiallyRefunded
	}
	order.TrackingHistory = append(order.TrackingHistory, domain.TrackingEntry{
		Status: domain.OrderStatusReturned, Message: "Refund processed", Timestamp: time.Now().UTC(),
	})
	copied := *order
	return &copied, nil
}

type fakeGateway struct {
	declined bool
	charges  int
}

func (g *fakeGateway) Charge(_ context.Context, orderNumber string, amount int64) (string, error) {
	g.charges++
	if g.declined {
		return "", errors.New("card declined")
	}
	return "txn-" + orderNumber, nil
}

type capturedEvents struct {
	events []any
}

func (c *capturedEvents) Publish(_ context.Context, _ string, event any) error {
	c.events = append(c.events, event)
	return nil
}

func testService(store Store, opts ...Option) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, pricing.NewCalculator(pricing.DefaultConfig()), logger, opts...)
}

func validInput(items ...domain.CartItem) CheckoutInput {
	return CheckoutInput{
		Items:           items,
		ShippingAddress: domain.Address{Name: "A B", Street: "1 Main St", City: "Springfield", Zip: "12345"},
		BillingAddress:  domain.Address{Name: "A B", Street: "1 Main St", City: "Springfield", Zip: "12345"},
		ShippingMethod:  domain.ShippingStandard,
	}
}

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{8}$`)

func TestCheckout_Success(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5, ImageURL: "/img/tee.jpg"})
	events := &capturedEvents{}
	svc := testService(store, WithPlacedPublisher(events))

	order, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 2}))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if !orderNumberPattern.MatchString(order.OrderNumber) {
		t.Errorf("unexpected order number format: %s", order.OrderNumber)
	}
	if order.Subtotal != 2000 || order.Shipping != 999 || order.Tax != 160 || order.Total != 3159 {
		t.Errorf("unexpected totals: %+v", order)
	}
	if order.Total != order.Subtotal-order.Discount+order.Shipping+order.Tax {
		t.Error("total invariant broken")
	}
	if order.ItemsSubtotal() != order.Subtotal {
		t.Error("snapshot subtotal does not match order subtotal")
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending status, got %s", order.Status)
	}
	if len(order.TrackingHistory) != 1 || order.TrackingHistory[0].Message != "Order placed successfully" {
		t.Errorf("unexpected tracking history: %+v", order.TrackingHistory)
	}

	// Snapshot captures product details at order time.
	item := order.Items[0]
	if item.Name != "Tee" || item.SKU != "TEE-1" || item.Price != 1000 || item.ImageURL != "/img/tee.jpg" {
		t.Errorf("unexpected snapshot: %+v", item)
	}

	if store.products["p1"].Stock != 3 {
		t.Errorf("expected stock 3 after checkout, got %d", store.products["p1"].Stock)
	}
	if len(events.events) != 1 {
		t.Errorf("expected 1 placed event, got %d", len(events.events))
	}
}

func TestCheckout_UsesServerCartWhenNoItemsGiven(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	store.cart["u1"] = []domain.CartItem{{ProductID: "p1", Quantity: 1}}
	svc := testService(store)

	order, err := svc.Checkout(context.Background(), "u1", validInput())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if len(order.Items) != 1 || order.Items[0].ProductID != "p1" {
		t.Errorf("expected cart item in order, got %+v", order.Items)
	}
	if len(store.cart["u1"]) != 0 {
		t.Error("expected cart cleared after checkout")
	}
}

func TestCheckout_EmptyCartRejected(t *testing.T) {
	store := newFakeStore()
	svc := testService(store)

	_, err := svc.Checkout(context.Background(), "u1", validInput())

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckout_InsufficientStockAbortsWhole(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	store.addProduct(domain.Product{ID: "p2", SKU: "MUG-1", Name: "Mug", Price: 500, Stock: 1})
	svc := testService(store)

	_, err := svc.Checkout(context.Background(), "u1", validInput(
		domain.CartItem{ProductID: "p1", Quantity: 2},
		domain.CartItem{ProductID: "p2", Quantity: 3},
	))

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if stockErr.Name != "Mug" || stockErr.Requested != 3 || stockErr.Available != 1 {
		t.Errorf("unexpected error detail: %+v", stockErr)
	}
	if len(store.orders) != 0 {
		t.Error("expected no order persisted")
	}
	if store.products["p1"].Stock != 5 {
		t.Errorf("expected stock untouched, got %d", store.products["p1"].Stock)
	}
}

func TestCheckout_OrderNumberCollisionRetried(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	store.duplicates = 2
	svc := testService(store)

	order, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 1}))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if store.createCalls != 3 {
		t.Errorf("expected 3 create attempts, got %d", store.createCalls)
	}
	if !orderNumberPattern.MatchString(order.OrderNumber) {
		t.Errorf("unexpected order number: %s", order.OrderNumber)
	}
}

func TestCheckout_CouponBelowMinOrderIgnored(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 5000, Stock: 5})
	store.coupons["SAVE10"] = &domain.Coupon{Code: "SAVE10", Type: domain.CouponPercentage, Value: 10, MinOrder: 10000}
	svc := testService(store)

	input := validInput(domain.CartItem{ProductID: "p1", Quantity: 1})
	input.CouponCode = "SAVE10"

	order, err := svc.Checkout(context.Background(), "u1", input)
	if err != nil {
		t.Fatalf("expected checkout to proceed, got %v", err)
	}
	if order.Discount != 0 {
		t.Errorf("expected discount 0, got %d", order.Discount)
	}
	if order.CouponCode != "" {
		t.Errorf("expected no coupon recorded, got %s", order.CouponCode)
	}
}

func TestCheckout_CouponApplied(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 5000, Stock: 5})
	store.coupons["SAVE10"] = &domain.Coupon{Code: "SAVE10", Type: domain.CouponPercentage, Value: 10, MinOrder: 0}
	svc := testService(store)

	input := validInput(domain.CartItem{ProductID: "p1", Quantity: 2})
	input.CouponCode = "SAVE10"

	order, err := svc.Checkout(context.Background(), "u1", input)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if order.Discount != 1000 {
		t.Errorf("expected discount 1000, got %d", order.Discount)
	}
	if order.CouponCode != "SAVE10" {
		t.Errorf("expected coupon recorded, got %q", order.CouponCode)
	}
}

func TestCheckout_UnknownCouponIgnored(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	svc := testService(store)

	input := validInput(domain.CartItem{ProductID: "p1", Quantity: 1})
	input.CouponCode = "NOPE"

	order, err := svc.Checkout(context.Background(), "u1", input)
	if err != nil {
		t.Fatalf("expected checkout to proceed, got %v", err)
	}
	if order.Discount != 0 || order.CouponCode != "" {
		t.Errorf("expected no discount, got %+v", order)
	}
}

func TestCheckout_PaymentDeclined(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	gateway := &fakeGateway{declined: true}
	svc := testService(store, WithPaymentGateway(gateway))

	_, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 1}))

	if !errors.Is(err, domain.ErrPaymentDeclined) {
		t.Fatalf("expected payment declined, got %v", err)
	}
	if len(store.orders) != 0 {
		t.Error("expected no order persisted on declined payment")
	}
}

func TestCheckout_PaymentRecorded(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	gateway := &fakeGateway{}
	svc := testService(store, WithPaymentGateway(gateway))

	order, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 1}))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if order.TransactionID == "" {
		t.Error("expected transaction id recorded")
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		t.Errorf("expected completed payment status, got %s", order.PaymentStatus)
	}
	if gateway.charges != 1 {
		t.Errorf("expected exactly one charge, got %d", gateway.charges)
	}
}

func TestCheckout_InvalidShippingMethod(t *testing.T) {
	store := newFakeStore()
	svc := testService(store)

	input := validInput(domain.CartItem{ProductID: "p1", Quantity: 1})
	input.ShippingMethod = "carrier-pigeon"

	_, err := svc.Checkout(context.Background(), "u1", input)

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancel_RestoresStock(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	events := &capturedEvents{}
	svc := testService(store, WithCancelledPublisher(events))

	order, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 2}))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if store.products["p1"].Stock != 3 {
		t.Fatalf("expected stock 3 after checkout, got %d", store.products["p1"].Stock)
	}

	cancelled, err := svc.Cancel(context.Background(), order.OrderNumber, "u1", false, "changed my mind")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if store.products["p1"].Stock != 5 {
		t.Errorf("expected stock restored to 5, got %d", store.products["p1"].Stock)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.CancelledDate == nil {
		t.Error("expected cancelled date set")
	}
	last := cancelled.TrackingHistory[len(cancelled.TrackingHistory)-1]
	if last.Status != domain.OrderStatusCancelled {
		t.Errorf("expected terminal tracking entry, got %+v", last)
	}
	if len(events.events) != 1 {
		t.Errorf("expected 1 cancelled event, got %d", len(events.events))
	}
}

func TestCancel_RejectedOutsideAllowedStates(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	svc := testService(store)

	order, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 1}))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), order.OrderNumber, domain.OrderStatusShipped, "", ""); err != nil {
		t.Fatalf("update status failed: %v", err)
	}

	_, err = svc.Cancel(context.Background(), order.OrderNumber, "u1", false, "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if store.products["p1"].Stock != 4 {
		t.Errorf("expected stock unchanged at 4, got %d", store.products["p1"].Stock)
	}
}

func TestCancel_ForbiddenForOtherUser(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	svc := testService(store)

	order, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 1}))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	_, err = svc.Cancel(context.Background(), order.OrderNumber, "u2", false, "")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestReturn_WindowBoundary(t *testing.T) {
	setup := func(t *testing.T) (*fakeStore, *domain.Order) {
		t.Helper()
		store := newFakeStore()
		store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
		svc := testService(store)

		order, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 1}))
		if err != nil {
			t.Fatalf("checkout failed: %v", err)
		}
		if _, err := svc.UpdateStatus(context.Background(), order.OrderNumber, domain.OrderStatusDelivered, "", ""); err != nil {
			t.Fatalf("update status failed: %v", err)
		}
		return store, order
	}

	t.Run("accepted at 30 days", func(t *testing.T) {
		store, order := setup(t)
		delivered := *store.orders[order.OrderNumber].DeliveredDate
		svc := testService(store, WithClock(func() time.Time { return delivered.Add(domain.ReturnWindow) }))

		returned, err := svc.Return(context.Background(), order.OrderNumber, "u1", false)
		if err != nil {
			t.Fatalf("return failed: %v", err)
		}
		if returned.Status != domain.OrderStatusReturned {
			t.Errorf("expected returned status, got %s", returned.Status)
		}
		// Returns never restock in this design.
		if store.products["p1"].Stock != 4 {
			t.Errorf("expected stock unchanged at 4, got %d", store.products["p1"].Stock)
		}
	})

	t.Run("rejected at 31 days", func(t *testing.T) {
		store, order := setup(t)
		delivered := *store.orders[order.OrderNumber].DeliveredDate
		svc := testService(store, WithClock(func() time.Time { return delivered.Add(31 * 24 * time.Hour) }))

		_, err := svc.Return(context.Background(), order.OrderNumber, "u1", false)
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	store := newFakeStore()
	svc := testService(store)

	_, err := svc.UpdateStatus(context.Background(), "ORD-X", "teleported", "", "")

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRefund(t *testing.T) {
	setup := func(t *testing.T) (*fakeStore, *Service, *domain.Order) {
		t.Helper()
		store := newFakeStore()
		store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
		svc := testService(store)
		order, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 2}))
		if err != nil {
			t.Fatalf("checkout failed: %v", err)
		}
		return store, svc, order
	}

	t.Run("rejects amount above remaining total", func(t *testing.T) {
		store, svc, order := setup(t)

		_, err := svc.Refund(context.Background(), order.OrderNumber, "txn-1", order.Total+1, "damaged")
		if !errors.Is(err, domain.ErrRefundExceedsTotal) {
			t.Fatalf("expected refund exceeds total, got %v", err)
		}
		if store.orders[order.OrderNumber].RefundAmount != 0 {
			t.Error("expected refund amount unchanged")
		}
	})

	t.Run("partial then full refund", func(t *testing.T) {
		_, svc, order := setup(t)

		partial, err := svc.Refund(context.Background(), order.OrderNumber, "txn-1", 1000, "damaged item")
		if err != nil {
			t.Fatalf("refund failed: %v", err)
		}
		if partial.PaymentStatus != domain.PaymentStatusPartiallyRefunded {
			t.Errorf("expected partially_refunded, got %s", partial.PaymentStatus)
		}

		full, err := svc.Refund(context.Background(), order.OrderNumber, "txn-2", order.Total-1000, "rest")
		if err != nil {
			t.Fatalf("refund failed: %v", err)
		}
		if full.PaymentStatus != domain.PaymentStatusRefunded {
			t.Errorf("expected refunded, got %s", full.PaymentStatus)
		}
		if full.RefundAmount != order.Total {
			t.Errorf("expected refund amount %d, got %d", order.Total, full.RefundAmount)
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, svc, order := setup(t)

		_, err := svc.Refund(context.Background(), order.OrderNumber, "txn-1", 0, "")
		var validationErr *domain.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestGetOrder_OwnershipEnforced(t *testing.T) {
	store := newFakeStore()
	store.addProduct(domain.Product{ID: "p1", SKU: "TEE-1", Name: "Tee", Price: 1000, Stock: 5})
	svc := testService(store)

	order, err := svc.Checkout(context.Background(), "u1", validInput(domain.CartItem{ProductID: "p1", Quantity: 1}))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), order.OrderNumber, "u2", false); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected forbidden for other user, got %v", err)
	}
	if _, err := svc.GetOrder(context.Background(), order.OrderNumber, "u2", true); err != nil {
		t.Errorf("expected admin access, got %v", err)
	}
}
