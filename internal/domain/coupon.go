package domain

type CouponType string

const (
	CouponPercentage   CouponType = "percentage"
	CouponFixed        CouponType = "fixed"
	CouponFreeShipping CouponType = "free_shipping"
)

// Coupon is a named discount rule. Value is a percentage for percentage
// coupons and an amount in cents for fixed ones; MinOrder is the subtotal
// threshold below which the coupon does not apply.
type Coupon struct {
	Code     string     `json:"code"`
	Type     CouponType `json:"type"`
	Value    int64      `json:"value"`
	MinOrder int64      `json:"min_order"`
}
