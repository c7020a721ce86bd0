package pricing

import (
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Config holds the pricing rules. All amounts are cents; the tax rate is in
// basis points.
type Config struct {
	FreeShippingThreshold int64
	TaxRateBasisPoints    int64
	ShippingRates         map[domain.ShippingMethod]int64
	DeliveryDays          map[domain.ShippingMethod]int
}

func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: 5000,
		TaxRateBasisPoints:    800,
		ShippingRates: map[domain.ShippingMethod]int64{
			domain.ShippingStandard:  999,
			domain.ShippingExpress:   1999,
			domain.ShippingOvernight: 2999,
		},
		DeliveryDays: map[domain.ShippingMethod]int{
			domain.ShippingStandard:  7,
			domain.ShippingExpress:   3,
			domain.ShippingOvernight: 1,
		},
	}
}

// Quote is the priced breakdown of an order. Total always equals
// Subtotal - Discount + Shipping + Tax.
type Quote struct {
	Subtotal      int64
	Discount      int64
	Shipping      int64
	Tax           int64
	Total         int64
	CouponApplied bool
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Price computes the quote for a set of order lines. A coupon whose MinOrder
// exceeds the subtotal is silently rejected: the discount stays zero and the
// rest of the quote proceeds unchanged. The threshold check happens before
// any discount is computed.
func (c *Calculator) Price(items []domain.OrderItem, method domain.ShippingMethod, coupon *domain.Coupon) Quote {
	var subtotal int64
	for _, item := range items {
		subtotal += item.Price * int64(item.Quantity)
	}

	var discount int64
	freeShipping := false
	couponApplied := false
	if coupon != nil && subtotal >= coupon.MinOrder {
		couponApplied = true
		switch coupon.Type {
		case domain.CouponPercentage:
			discount = subtotal * coupon.Value / 100
		case domain.CouponFixed:
			discount = min(coupon.Value, subtotal)
		case domain.CouponFreeShipping:
			freeShipping = true
		default:
			couponApplied = false
		}
	}

	shipping := c.shippingFee(subtotal, method, freeShipping)
	tax := roundHalfUp((subtotal-discount)*c.cfg.TaxRateBasisPoints, 10000)

	return Quote{
		Subtotal:      subtotal,
		Discount:      discount,
		Shipping:      shipping,
		Tax:           tax,
		Total:         subtotal - discount + shipping + tax,
		CouponApplied: couponApplied,
	}
}

// shippingFee applies the flat per-method rate. Above the free-shipping
// threshold only the standard tier becomes fully free; express and overnight
// keep the surcharge over the standard rate.
func (c *Calculator) shippingFee(subtotal int64, method domain.ShippingMethod, freeShipping bool) int64 {
	if freeShipping {
		return 0
	}
	rate := c.cfg.ShippingRates[method]
	if subtotal >= c.cfg.FreeShippingThreshold {
		return rate - c.cfg.ShippingRates[domain.ShippingStandard]
	}
	return rate
}

// EstimatedDelivery projects the delivery date for a shipping method.
func (c *Calculator) EstimatedDelivery(method domain.ShippingMethod, from time.Time) time.Time {
	days := c.cfg.DeliveryDays[method]
	if days == 0 {
		days = c.cfg.DeliveryDays[domain.ShippingStandard]
	}
	return from.AddDate(0, 0, days)
}

func roundHalfUp(numerator, denominator int64) int64 {
	return (numerator + denominator/2) / denominator
}
