package cart

// CouponType discriminates the two coupon shapes the storefront honors.
type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

// Coupon is a tagged variant: a percentage of the subtotal with an optional
// cap, or a fixed amount. Value is a percent (0-100) for percentage coupons
// and an amount in cents for fixed ones.
type Coupon struct {
	Code  string     `json:"code,omitempty"`
	Type  CouponType `json:"type"`
	Value int64      `json:"value"`
	Cap   int64      `json:"cap,omitempty"` // percentage coupons only; 0 means no cap
}

// DiscountFor returns the discount this coupon yields against subtotal.
// A nil or unrecognized coupon yields zero.
func (c *Coupon) DiscountFor(subtotal int64) int64 {
	if c == nil || subtotal <= 0 {
		return 0
	}
	switch c.Type {
	case CouponPercentage:
		d := subtotal * c.Value / 100
		if c.Cap > 0 && d > c.Cap {
			d = c.Cap
		}
		return d
	case CouponFixed:
		if c.Value > subtotal {
			return subtotal
		}
		return c.Value
	default:
		return 0
	}
}

// ShippingMethod references a delivery option by code; Rate is the flat cost
// in cents the pricing policy charges for it.
type ShippingMethod struct {
	Code string `json:"code"`
	Rate int64  `json:"rate"`
}

// Pricing supplies the tax and shipping figures the cart derives its totals
// from. Real rate tables live outside this subsystem.
type Pricing interface {
	// Tax returns the tax on the given taxable amount (effective subtotal
	// less discount).
	Tax(taxable int64) int64
	// Shipping returns the shipping cost for the given items and method.
	Shipping(items []LineItem, method *ShippingMethod) int64
}

// FlatRatePricing is the placeholder policy: a basis-point tax rate and a
// single flat shipping charge, overridden by an explicit method's rate.
type FlatRatePricing struct {
	TaxRateBasisPoints int64
	FlatShippingRate   int64
}

// DefaultPricing charges no tax and no shipping.
func DefaultPricing() FlatRatePricing {
	return FlatRatePricing{}
}

func (p FlatRatePricing) Tax(taxable int64) int64 {
	if taxable <= 0 {
		return 0
	}
	return taxable * p.TaxRateBasisPoints / 10000
}

func (p FlatRatePricing) Shipping(items []LineItem, method *ShippingMethod) int64 {
	if len(items) == 0 {
		return 0
	}
	if method != nil {
		return method.Rate
	}
	return p.FlatShippingRate
}
