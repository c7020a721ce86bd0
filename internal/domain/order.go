package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

func ValidShippingMethod(m ShippingMethod) bool {
	switch m {
	case ShippingStandard, ShippingExpress, ShippingOvernight:
		return true
	}
	return false
}

// ReturnWindow is how long after delivery an order remains returnable.
const ReturnWindow = 30 * 24 * time.Hour

type Address struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// OrderItem is a snapshot of the product at order time. It never changes,
// even if the product is later repriced or deleted.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url,omitempty"`
}

// TrackingEntry is one record in an order's append-only status history.
type TrackingEntry struct {
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message"`
	Location  string      `json:"location,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type Order struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"order_number"`
	UserID            string          `json:"user_id"`
	Items             []OrderItem     `json:"items"`
	Subtotal          int64           `json:"subtotal"`
	Discount          int64           `json:"discount"`
	Shipping          int64           `json:"shipping"`
	Tax               int64           `json:"tax"`
	Total             int64           `json:"total"`
	RefundAmount      int64           `json:"refund_amount"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	TrackingHistory   []TrackingEntry `json:"tracking_history"`
	ShippingAddress   Address         `json:"shipping_address"`
	BillingAddress    Address         `json:"billing_address"`
	ShippingMethod    ShippingMethod  `json:"shipping_method"`
	CouponCode        string          `json:"coupon_code,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	TransactionID     string          `json:"transaction_id,omitempty"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	ShippedDate       *time.Time      `json:"shipped_date,omitempty"`
	DeliveredDate     *time.Time      `json:"delivered_date,omitempty"`
	CancelledDate     *time.Time      `json:"cancelled_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// CanCancel reports whether the order is still early enough in its lifecycle
// to be cancelled by the customer.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// CanReturn reports whether the order is delivered and still inside the
// return window. The boundary is inclusive: exactly ReturnWindow after
// delivery is still returnable.
func (o *Order) CanReturn(now time.Time) bool {
	if o.Status != OrderStatusDelivered || o.DeliveredDate == nil {
		return false
	}
	return !now.After(o.DeliveredDate.Add(ReturnWindow))
}

// ItemsSubtotal sums price x quantity over the snapshot.
func (o *Order) ItemsSubtotal() int64 {
	var sum int64
	for _, item := range o.Items {
		sum += item.Price * int64(item.Quantity)
	}
	return sum
}
