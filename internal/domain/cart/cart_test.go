package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/domain/product"
)

func testProduct(id string, price, salePrice int64) *product.Product {
	return &product.Product{
		ID:        id,
		Name:      "Product " + id,
		Price:     price,
		SalePrice: salePrice,
		Stock:     100,
	}
}

func TestAddItem_MergesIdenticalSelections(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	p := testProduct("p1", 1000, 0)

	require.NoError(t, c.AddItem(p, 1, Variant{Color: "red", Size: "M"}))
	require.NoError(t, c.AddItem(p, 2, Variant{Color: "red", Size: "M"}))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, int64(3000), c.Totals().Subtotal)
}

func TestAddItem_DistinctVariantsStaySeparate(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	p := testProduct("p1", 1000, 0)

	require.NoError(t, c.AddItem(p, 1, Variant{Color: "red"}))
	require.NoError(t, c.AddItem(p, 1, Variant{Color: "blue"}))
	require.NoError(t, c.AddItem(p, 1, Variant{}))

	assert.Len(t, c.Items(), 3)
}

func TestAddItem_InvalidInput(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))

	err := c.AddItem(nil, 1, Variant{})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	err = c.AddItem(&product.Product{}, 1, Variant{})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	err = c.AddItem(testProduct("p1", 1000, 0), 0, Variant{})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	err = c.AddItem(testProduct("p1", 1000, 0), -2, Variant{})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	assert.True(t, c.IsEmpty())
}

func TestRemoveItem_AbsentKeyIsNoOp(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 0), 1, Variant{}))

	c.RemoveItem(ItemKey{ProductID: "missing"})
	assert.Len(t, c.Items(), 1)

	c.RemoveItem(ItemKey{ProductID: "p1"})
	assert.True(t, c.IsEmpty())
	assert.Equal(t, Totals{}, c.Totals())
}

func TestUpdateQuantity_ZeroRemovesItem(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	key := ItemKey{ProductID: "p1", Variant: Variant{Size: "L"}}
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 0), 2, Variant{Size: "L"}))

	c.UpdateQuantity(key, 5)
	require.Len(t, c.Items(), 1)
	assert.Equal(t, 5, c.Items()[0].Quantity)

	c.UpdateQuantity(key, 0)
	assert.True(t, c.IsEmpty())
}

func TestUpdateQuantity_NegativeRemovesItem(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	key := ItemKey{ProductID: "p1"}
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 0), 2, Variant{}))

	c.UpdateQuantity(key, -1)
	assert.True(t, c.IsEmpty())
}

func TestTotals_SalePriceUsedForTotal(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 800), 2, Variant{}))

	totals := c.Totals()
	assert.Equal(t, int64(2000), totals.Subtotal)
	assert.Equal(t, int64(1600), totals.Total)
}

func TestTotals_PercentageCoupon(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 0), 4, Variant{}))

	c.ApplyCoupon(&Coupon{Code: "TEN", Type: CouponPercentage, Value: 10})

	totals := c.Totals()
	assert.Equal(t, int64(4000), totals.Subtotal)
	assert.Equal(t, int64(400), totals.Discount)
	assert.Equal(t, int64(3600), totals.Total)
}

func TestTotals_PercentageCouponCap(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 10000, 0), 1, Variant{}))

	c.ApplyCoupon(&Coupon{Type: CouponPercentage, Value: 50, Cap: 2000})

	totals := c.Totals()
	assert.Equal(t, int64(2000), totals.Discount)
	assert.Equal(t, int64(8000), totals.Total)
}

func TestTotals_FixedCouponExceedingSubtotal(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 500, 0), 1, Variant{}))

	c.ApplyCoupon(&Coupon{Type: CouponFixed, Value: 9999})

	totals := c.Totals()
	assert.Equal(t, int64(500), totals.Discount)
	assert.Equal(t, int64(0), totals.Total)
}

func TestTotals_RemoveCoupon(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 0), 1, Variant{}))

	c.ApplyCoupon(&Coupon{Type: CouponFixed, Value: 100})
	assert.Equal(t, int64(900), c.Totals().Total)

	c.ApplyCoupon(nil)
	assert.Equal(t, int64(1000), c.Totals().Total)
	assert.Equal(t, int64(0), c.Totals().Discount)
}

func TestTotals_TaxAndShipping(t *testing.T) {
	pricing := FlatRatePricing{TaxRateBasisPoints: 1000, FlatShippingRate: 500}
	c := New(nil, pricing, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 0), 2, Variant{}))

	totals := c.Totals()
	assert.Equal(t, int64(2000), totals.Subtotal)
	assert.Equal(t, int64(200), totals.Tax)
	assert.Equal(t, int64(500), totals.Shipping)
	assert.Equal(t, int64(2700), totals.Total)
}

func TestTotals_ShippingMethodOverridesFlatRate(t *testing.T) {
	pricing := FlatRatePricing{FlatShippingRate: 500}
	c := New(nil, pricing, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 0), 1, Variant{}))

	c.SetShippingMethod(&ShippingMethod{Code: "express", Rate: 1500})
	assert.Equal(t, int64(1500), c.Totals().Shipping)

	c.SetShippingMethod(nil)
	assert.Equal(t, int64(500), c.Totals().Shipping)
}

func TestTotals_EmptyCartChargesNothing(t *testing.T) {
	pricing := FlatRatePricing{TaxRateBasisPoints: 1000, FlatShippingRate: 500}
	c := New(nil, pricing, Key("sess-1"))

	c.ApplyCoupon(&Coupon{Type: CouponFixed, Value: 100})
	assert.Equal(t, Totals{}, c.Totals())
}

func TestClear(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 0), 3, Variant{}))
	c.ApplyCoupon(&Coupon{Type: CouponFixed, Value: 100})

	c.Clear()

	assert.True(t, c.IsEmpty())
	assert.Nil(t, c.State().Coupon)
	assert.Equal(t, Totals{}, c.Totals())
}

func TestState_ReturnsCopy(t *testing.T) {
	c := New(nil, nil, Key("sess-1"))
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 0), 1, Variant{}))

	st := c.State()
	st.Items[0].Quantity = 99

	assert.Equal(t, 1, c.Items()[0].Quantity)
}

func TestPersistence_RoundTrip(t *testing.T) {
	storage := NewMemoryStorage()
	key := Key("sess-42")

	c := New(storage, nil, key)
	require.NoError(t, c.AddItem(testProduct("p1", 1000, 800), 2, Variant{Color: "red"}))
	c.ApplyCoupon(&Coupon{Code: "TEN", Type: CouponPercentage, Value: 10})

	restored := Load(context.Background(), storage, nil, key)
	require.Len(t, restored.Items(), 1)
	assert.Equal(t, "p1", restored.Items()[0].ProductID)
	assert.Equal(t, Variant{Color: "red"}, restored.Items()[0].Variant)
	assert.Equal(t, 2, restored.Items()[0].Quantity)
	require.NotNil(t, restored.State().Coupon)
	assert.Equal(t, "TEN", restored.State().Coupon.Code)
	assert.Equal(t, c.Totals(), restored.Totals())
}

func TestLoad_MissingStateStartsEmpty(t *testing.T) {
	c := Load(context.Background(), NewMemoryStorage(), nil, Key("nobody"))
	assert.True(t, c.IsEmpty())
}

func TestLoad_CorruptStateStartsEmpty(t *testing.T) {
	storage := NewMemoryStorage()
	key := Key("sess-bad")
	require.NoError(t, storage.Save(context.Background(), key, []byte("{not json")))

	c := Load(context.Background(), storage, nil, key)
	assert.True(t, c.IsEmpty())
}

func TestLoad_RecomputesTotals(t *testing.T) {
	storage := NewMemoryStorage()
	key := Key("sess-tampered")
	state := State{
		Items:  []LineItem{{ProductID: "p1", Name: "P", UnitPrice: 1000, Quantity: 2}},
		Totals: Totals{Subtotal: 1, Total: 1}, // stale on purpose
	}
	data, err := encodeState(&state)
	require.NoError(t, err)
	require.NoError(t, storage.Save(context.Background(), key, data))

	c := Load(context.Background(), storage, nil, key)
	assert.Equal(t, int64(2000), c.Totals().Subtotal)
	assert.Equal(t, int64(2000), c.Totals().Total)
}
