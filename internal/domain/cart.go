package domain

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 10

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CartLine is a cart item joined with current product data for display.
type CartLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url,omitempty"`
}

// CartSummary is what every cart endpoint returns: the lines plus an
// estimate priced with the standard shipping method and no coupon. The
// estimate carries no availability guarantee; stock is only committed at
// checkout.
type CartSummary struct {
	Items    []CartLine `json:"items"`
	Subtotal int64      `json:"subtotal"`
	Shipping int64      `json:"shipping"`
	Tax      int64      `json:"tax"`
	Total    int64      `json:"total"`
}
