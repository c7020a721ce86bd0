package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pricing"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// Store is the persistence surface behind the service. *Repository
// implements it.
type Store interface {
	GetProducts(ctx context.Context, ids []string) ([]domain.Product, error)
	GetCoupon(ctx context.Context, code string) (*domain.Coupon, error)
	CartItems(ctx context.Context, userID string) ([]domain.CartItem, error)
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	CancelOrder(ctx context.Context, orderNumber, userID string, admin bool, reason string) (*domain.Order, error)
	AddTracking(ctx context.Context, orderNumber string, status domain.OrderStatus, message, location string) (*domain.Order, error)
	ReturnOrder(ctx context.Context, orderNumber, userID string, admin bool, now time.Time) (*domain.Order, error)
	Refund(ctx context.Context, orderNumber, transactionID string, amount int64, reason string) (*domain.Order, error)
}

// PaymentGateway is the external payment collaborator. It either returns a
// transaction id synchronously or fails; there is no retry here.
type PaymentGateway interface {
	Charge(ctx context.Context, orderNumber string, amount int64) (string, error)
}

// Publisher emits a lifecycle event; *messaging.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

const orderNumberAttempts = 5

type Service struct {
	store           Store
	pricer          *pricing.Calculator
	payments        PaymentGateway
	placedEvents    Publisher
	cancelledEvents Publisher
	metrics         *telemetry.OrderMetrics
	logger          *slog.Logger
	now             func() time.Time
}

type Option func(*Service)

func WithPaymentGateway(gw PaymentGateway) Option {
	return func(s *Service) { s.payments = gw }
}

func WithPlacedPublisher(p Publisher) Option {
	return func(s *Service) { s.placedEvents = p }
}

func WithCancelledPublisher(p Publisher) Option {
	return func(s *Service) { s.cancelledEvents = p }
}

func WithMetrics(m *telemetry.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, pricer *pricing.Calculator, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		pricer: pricer,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CheckoutInput struct {
	Items           []domain.CartItem
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	ShippingMethod  domain.ShippingMethod
	CouponCode      string
	Notes           string
}

// Checkout turns the user's cart into an immutable order. Stock is committed
// by conditional decrements inside the order transaction, so two racing
// checkouts cannot both take the last unit; the losing one fails whole with
// InsufficientStock and nothing persisted.
func (s *Service) Checkout(ctx context.Context, userID string, input CheckoutInput) (*domain.Order, error) {
	if err := validateCheckout(input); err != nil {
		s.metrics.CheckoutRejected(ctx, "validation")
		return nil, err
	}

	items := input.Items
	if len(items) == 0 {
		cartItems, err := s.store.CartItems(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		items = cartItems
	}
	if len(items) == 0 {
		s.metrics.CheckoutRejected(ctx, "empty_cart")
		return nil, &domain.ValidationError{Field: "items", Reason: "cart is empty"}
	}
	for _, item := range items {
		if item.Quantity < 1 || item.Quantity > domain.MaxLineQuantity {
			s.metrics.CheckoutRejected(ctx, "validation")
			return nil, &domain.ValidationError{Field: "items", Reason: "quantity must be between 1 and 10"}
		}
	}

	snapshot, err := s.buildSnapshot(ctx, items)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.CheckoutRejected(ctx, "product_not_found")
		}
		return nil, err
	}

	coupon, err := s.lookupCoupon(ctx, input.CouponCode)
	if err != nil {
		return nil, err
	}

	quote := s.pricer.Price(snapshot, input.ShippingMethod, coupon)

	now := s.now()
	order := &domain.Order{
		UserID:            userID,
		Items:             snapshot,
		Subtotal:          quote.Subtotal,
		Discount:          quote.Discount,
		Shipping:          quote.Shipping,
		Tax:               quote.Tax,
		Total:             quote.Total,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		ShippingAddress:   input.ShippingAddress,
		BillingAddress:    input.BillingAddress,
		ShippingMethod:    input.ShippingMethod,
		Notes:             input.Notes,
		EstimatedDelivery: s.pricer.EstimatedDelivery(input.ShippingMethod, now),
		CreatedAt:         now,
		TrackingHistory: []domain.TrackingEntry{{
			Status:    domain.OrderStatusPending,
			Message:   "Order placed successfully",
			Timestamp: now,
		}},
	}
	if quote.CouponApplied {
		order.CouponCode = coupon.Code
	}

	order.OrderNumber = newOrderNumber(now)

	if s.payments != nil {
		transactionID, err := s.payments.Charge(ctx, order.OrderNumber, order.Total)
		if err != nil {
			s.metrics.CheckoutRejected(ctx, "payment_declined")
			return nil, fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, err)
		}
		order.TransactionID = transactionID
		order.PaymentStatus = domain.PaymentStatusCompleted
	}

	// The UNIQUE constraint on order_number is the uniqueness authority;
	// a collision surfaces as a rejected insert and we retry with a fresh
	// suffix.
	for attempt := 0; ; attempt++ {
		err := s.store.CreateOrder(ctx, order)
		if err == nil {
			break
		}
		if errors.Is(err, errDuplicateOrderNumber) && attempt < orderNumberAttempts-1 {
			s.logger.Warn("order number collision, retrying", "order_number", order.OrderNumber)
			order.OrderNumber = newOrderNumber(now)
			continue
		}
		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.metrics.CheckoutRejected(ctx, "insufficient_stock")
		}
		return nil, err
	}

	s.metrics.OrderPlaced(ctx)
	s.logger.Info("order placed", "order_number", order.OrderNumber, "user_id", userID, "total", order.Total)

	if s.placedEvents != nil {
		event := domain.OrderPlacedEvent{
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Items:       order.Items,
			Total:       order.Total,
			Timestamp:   order.CreatedAt,
		}
		if err := s.placedEvents.Publish(ctx, order.OrderNumber, event); err != nil {
			s.logger.Error("failed to publish order placed event", "error", err, "order_number", order.OrderNumber)
		}
	}

	return order, nil
}

// GetOrder enforces ownership: customers only see their own orders.
func (s *Service) GetOrder(ctx context.Context, orderNumber, userID string, admin bool) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !admin && order.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.store.ListOrders(ctx, userID)
}

func (s *Service) Cancel(ctx context.Context, orderNumber, userID string, admin bool, reason string) (*domain.Order, error) {
	order, err := s.store.CancelOrder(ctx, orderNumber, userID, admin, reason)
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCancelled(ctx)
	s.logger.Info("order cancelled", "order_number", orderNumber, "user_id", userID)

	if s.cancelledEvents != nil {
		event := domain.OrderCancelledEvent{
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Reason:      reason,
			Timestamp:   s.now(),
		}
		if err := s.cancelledEvents.Publish(ctx, order.OrderNumber, event); err != nil {
			s.logger.Error("failed to publish order cancelled event", "error", err, "order_number", orderNumber)
		}
	}

	return order, nil
}

func (s *Service) Return(ctx context.Context, orderNumber, userID string, admin bool) (*domain.Order, error) {
	return s.store.ReturnOrder(ctx, orderNumber, userID, admin, s.now())
}

// UpdateStatus is the privileged tracking append. The status moves
// unconditionally; only cancel/return go through transition checks.
func (s *Service) UpdateStatus(ctx context.Context, orderNumber string, status domain.OrderStatus, message, location string) (*domain.Order, error) {
	if !domain.ValidOrderStatus(status) {
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}
	if message == "" {
		message = "Status updated to " + string(status)
	}
	return s.store.AddTracking(ctx, orderNumber, status, message, location)
}

func (s *Service) Refund(ctx context.Context, orderNumber, transactionID string, amount int64, reason string) (*domain.Order, error) {
	if amount <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	order, err := s.store.Refund(ctx, orderNumber, transactionID, amount, reason)
	if err != nil {
		return nil, err
	}

	s.metrics.RefundProcessed(ctx)
	s.logger.Info("refund processed", "order_number", orderNumber, "amount", amount)
	return order, nil
}

func (s *Service) buildSnapshot(ctx context.Context, items []domain.CartItem) ([]domain.OrderItem, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.store.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	snapshot := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, item.ProductID)
		}
		snapshot = append(snapshot, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			SKU:       p.SKU,
			Price:     p.Price,
			Quantity:  item.Quantity,
			ImageURL:  p.ImageURL,
		})
	}

	return snapshot, nil
}

// lookupCoupon treats an unknown code like one below its threshold: no
// discount, checkout proceeds.
func (s *Service) lookupCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	if code == "" {
		return nil, nil
	}
	coupon, err := s.store.GetCoupon(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load coupon: %w", err)
	}
	if coupon == nil {
		s.logger.Warn("unknown coupon code ignored", "code", code)
	}
	return coupon, nil
}

func validateCheckout(input CheckoutInput) error {
	if !domain.ValidShippingMethod(input.ShippingMethod) {
		return &domain.ValidationError{Field: "shipping_method", Reason: "must be standard, express or overnight"}
	}
	if input.ShippingAddress.Street == "" || input.ShippingAddress.City == "" {
		return &domain.ValidationError{Field: "shipping_address", Reason: "street and city are required"}
	}
	if input.BillingAddress.Street == "" || input.BillingAddress.City == "" {
		return &domain.ValidationError{Field: "billing_address", Reason: "street and city are required"}
	}
	return nil
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return "ORD-" + now.Format("20060102") + "-" + suffix
}
