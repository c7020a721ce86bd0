package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/inventory"
)

// errDuplicateOrderNumber signals an order-number collision. It is recovered
// inside the service by regenerating the number; callers never see it.
var errDuplicateOrderNumber = errors.New("duplicate order number")

const pqUniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sku, name, price, stock, image_url, created_at
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repository) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	coupon := &domain.Coupon{}

	err := r.db.QueryRowContext(ctx, `
		SELECT code, type, value, min_order
		FROM coupons
		WHERE code = $1
	`, code).Scan(&coupon.Code, &coupon.Type, &coupon.Value, &coupon.MinOrder)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return coupon, nil
}

func (r *Repository) CartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// CreateOrder commits a checkout in one transaction: conditional stock
// decrements for every line, the order with its immutable snapshot and the
// initial tracking entry, the cart wipe, and the customer stats bump. Any
// line without enough stock rolls the whole transaction back, so a committed
// order is never missing its side effects.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range order.Items {
		if err := inventory.DecrementTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	order.ID = uuid.New().String()

	shippingAddr, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return err
	}
	billingAddr, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, status, payment_status,
			subtotal, discount, shipping, tax, total,
			shipping_method, coupon_code, notes, transaction_id,
			shipping_address, billing_address, estimated_delivery,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, NULLIF($14, ''), $15, $16, $17, $18, $18)
	`, order.ID, order.OrderNumber, order.UserID, order.Status, order.PaymentStatus,
		order.Subtotal, order.Discount, order.Shipping, order.Tax, order.Total,
		order.ShippingMethod, order.CouponCode, order.Notes, order.TransactionID,
		shippingAddr, billingAddr, order.EstimatedDelivery, order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return errDuplicateOrderNumber
		}
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, name, sku, price, quantity, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New().String(), order.ID, item.ProductID, item.Name, item.SKU, item.Price, item.Quantity, item.ImageURL)
		if err != nil {
			return err
		}
	}

	for _, entry := range order.TrackingHistory {
		if err := insertTracking(ctx, tx, order.ID, entry.Status, entry.Message, entry.Location, entry.Timestamp); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM cart_items WHERE user_id = $1
	`, order.UserID); err != nil {
		return err
	}

	// Loyalty points accrue one per whole currency unit spent.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO customer_stats (user_id, order_count, total_spent, loyalty_points, updated_at)
		VALUES ($1, 1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			order_count = customer_stats.order_count + 1,
			total_spent = customer_stats.total_spent + EXCLUDED.total_spent,
			loyalty_points = customer_stats.loyalty_points + EXCLUDED.loyalty_points,
			updated_at = NOW()
	`, order.UserID, order.Total, order.Total/100)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return getOrder(ctx, r.db, orderNumber)
}

func (r *Repository) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_number, user_id, status, payment_status,
			subtotal, discount, shipping, tax, total, refund_amount,
			shipping_method, COALESCE(coupon_code, ''), notes, COALESCE(transaction_id, ''),
			shipping_address, billing_address, estimated_delivery,
			shipped_date, delivered_date, cancelled_date, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, sku, price, quantity, image_url
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.SKU, &item.Price, &item.Quantity, &item.ImageURL); err != nil {
			return nil, err
		}
		orderMap[orderID].Items = append(orderMap[orderID].Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// CancelOrder restores every line's stock and records the terminal
// transition, all in one transaction. Only pending and confirmed orders can
// be cancelled, and only by their owner or an admin.
func (r *Repository) CancelOrder(ctx context.Context, orderNumber, userID string, admin bool, reason string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var orderID, ownerID string
	var status domain.OrderStatus
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, status FROM orders WHERE order_number = $1 FOR UPDATE
	`, orderNumber).Scan(&orderID, &ownerID, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if !admin && ownerID != userID {
		return nil, domain.ErrForbidden
	}

	probe := domain.Order{Status: status}
	if !probe.CanCancel() {
		return nil, fmt.Errorf("%w: cannot cancel order in status %s", domain.ErrInvalidTransition, status)
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}

	type lineRestore struct {
		productID string
		quantity  int
	}
	var restores []lineRestore
	for itemRows.Next() {
		var lr lineRestore
		if err := itemRows.Scan(&lr.productID, &lr.quantity); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		restores = append(restores, lr)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	for _, lr := range restores {
		if err := inventory.RestoreTx(ctx, tx, lr.productID, lr.quantity); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, cancelled_date = COALESCE(cancelled_date, NOW()), updated_at = NOW()
		WHERE id = $1
	`, orderID, domain.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}

	message := "Order cancelled"
	if reason != "" {
		message = "Order cancelled: " + reason
	}
	if err := insertTracking(ctx, tx, orderID, domain.OrderStatusCancelled, message, "", time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return getOrder(ctx, r.db, orderNumber)
}

// AddTracking appends a tracking entry and moves the order to the given
// status unconditionally; transition discipline is the caller's concern at
// this boundary. The shipped/delivered/cancelled dates are first-write-wins:
// revisiting a status never overwrites a date that is already set.
func (r *Repository) AddTracking(ctx context.Context, orderNumber string, status domain.OrderStatus, message, location string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var orderID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM orders WHERE order_number = $1 FOR UPDATE
	`, orderNumber).Scan(&orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
			shipped_date = CASE WHEN $2 = 'shipped' THEN COALESCE(shipped_date, NOW()) ELSE shipped_date END,
			delivered_date = CASE WHEN $2 = 'delivered' THEN COALESCE(delivered_date, NOW()) ELSE delivered_date END,
			cancelled_date = CASE WHEN $2 = 'cancelled' THEN COALESCE(cancelled_date, NOW()) ELSE cancelled_date END,
			updated_at = NOW()
		WHERE id = $1
	`, orderID, status)
	if err != nil {
		return nil, err
	}

	if err := insertTracking(ctx, tx, orderID, status, message, location, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return getOrder(ctx, r.db, orderNumber)
}

// ReturnOrder records a customer return. Stock stays untouched: returned
// goods do not go back on sale without inspection, only cancellation
// restocks.
func (r *Repository) ReturnOrder(ctx context.Context, orderNumber, userID string, admin bool, now time.Time) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var orderID, ownerID string
	var status domain.OrderStatus
	var deliveredDate sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, status, delivered_date FROM orders WHERE order_number = $1 FOR UPDATE
	`, orderNumber).Scan(&orderID, &ownerID, &status, &deliveredDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if !admin && ownerID != userID {
		return nil, domain.ErrForbidden
	}

	probe := domain.Order{Status: status}
	if deliveredDate.Valid {
		probe.DeliveredDate = &deliveredDate.Time
	}
	if !probe.CanReturn(now) {
		return nil, fmt.Errorf("%w: order is not returnable", domain.ErrInvalidTransition)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
	`, orderID, domain.OrderStatusReturned)
	if err != nil {
		return nil, err
	}

	if err := insertTracking(ctx, tx, orderID, domain.OrderStatusReturned, "Return accepted", "", now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return getOrder(ctx, r.db, orderNumber)
}

// Refund adds to the order's refunded amount, bounded by the remaining
// total. The bound is checked on the locked row, so concurrent refunds
// cannot overshoot. Bookkeeping only; the gateway reversal happens upstream.
func (r *Repository) Refund(ctx context.Context, orderNumber, transactionID string, amount int64, reason string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var orderID string
	var total, refunded int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, total, refund_amount FROM orders WHERE order_number = $1 FOR UPDATE
	`, orderNumber).Scan(&orderID, &total, &refunded)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if amount > total-refunded {
		return nil, fmt.Errorf("%w: requested %d, remaining %d", domain.ErrRefundExceedsTotal, amount, total-refunded)
	}

	refunded += amount
	paymentStatus := domain.PaymentStatusPartiallyRefunded
	if refunded >= total {
		paymentStatus = domain.PaymentStatusRefunded
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET refund_amount = $2, payment_status = $3, updated_at = NOW() WHERE id = $1
	`, orderID, refunded, paymentStatus)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Refund of $%d.%02d processed (transaction %s)", amount/100, amount%100, transactionID)
	if reason != "" {
		message += ": " + reason
	}
	// The refund entry is logged under the returned status; the order's own
	// status column stays as it was.
	if err := insertTracking(ctx, tx, orderID, domain.OrderStatusReturned, message, "", time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return getOrder(ctx, r.db, orderNumber)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getOrder(ctx context.Context, db queryer, orderNumber string) (*domain.Order, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, order_number, user_id, status, payment_status,
			subtotal, discount, shipping, tax, total, refund_amount,
			shipping_method, COALESCE(coupon_code, ''), notes, COALESCE(transaction_id, ''),
			shipping_address, billing_address, estimated_delivery,
			shipped_date, delivered_date, cancelled_date, created_at
		FROM orders
		WHERE order_number = $1
	`, orderNumber)

	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	itemRows, err := db.QueryContext(ctx, `
		SELECT product_id, name, sku, price, quantity, image_url
		FROM order_items
		WHERE order_id = $1
	`, order.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ProductID, &item.Name, &item.SKU, &item.Price, &item.Quantity, &item.ImageURL); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	trackingRows, err := db.QueryContext(ctx, `
		SELECT status, message, COALESCE(location, ''), created_at
		FROM order_tracking
		WHERE order_id = $1
		ORDER BY created_at
	`, order.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = trackingRows.Close() }()

	for trackingRows.Next() {
		var entry domain.TrackingEntry
		if err := trackingRows.Scan(&entry.Status, &entry.Message, &entry.Location, &entry.Timestamp); err != nil {
			return nil, err
		}
		order.TrackingHistory = append(order.TrackingHistory, entry)
	}
	if err := trackingRows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	var shippingAddr, billingAddr []byte
	var shippedDate, deliveredDate, cancelledDate sql.NullTime

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &order.Status, &order.PaymentStatus,
		&order.Subtotal, &order.Discount, &order.Shipping, &order.Tax, &order.Total, &order.RefundAmount,
		&order.ShippingMethod, &order.CouponCode, &order.Notes, &order.TransactionID,
		&shippingAddr, &billingAddr, &order.EstimatedDelivery,
		&shippedDate, &deliveredDate, &cancelledDate, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shippingAddr, &order.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billingAddr, &order.BillingAddress); err != nil {
		return nil, err
	}
	if shippedDate.Valid {
		order.ShippedDate = &shippedDate.Time
	}
	if deliveredDate.Valid {
		order.DeliveredDate = &deliveredDate.Time
	}
	if cancelledDate.Valid {
		order.CancelledDate = &cancelledDate.Time
	}

	return order, nil
}

func insertTracking(ctx context.Context, tx *sql.Tx, orderID string, status domain.OrderStatus, message, location string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_tracking (id, order_id, status, message, location, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, uuid.New().String(), orderID, status, message, location, at)
	return err
}
