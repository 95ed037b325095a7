package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/storefront/internal/domain/product"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product is required")
)

// Variant holds the optional discriminators that make two selections of the
// same product distinct line items. Immutable once attached to a line item.
type Variant struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

func (v Variant) IsZero() bool {
	return v.Color == "" && v.Size == ""
}

// ItemKey identifies a line item by (productID, variant). There is no time
// component, so identical selections always merge.
type ItemKey struct {
	ProductID string
	Variant   Variant
}

// LineItem is one row of the cart: a product snapshot plus a quantity.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Variant   Variant `json:"variant"`
	Name      string  `json:"name"`
	UnitPrice int64   `json:"unit_price"`
	SalePrice int64   `json:"sale_price,omitempty"`
	Quantity  int     `json:"quantity"`
}

func (li *LineItem) Key() ItemKey {
	return ItemKey{ProductID: li.ProductID, Variant: li.Variant}
}

// EffectivePrice is the unit price the shopper actually pays.
func (li *LineItem) EffectivePrice() int64 {
	if li.SalePrice > 0 && li.SalePrice < li.UnitPrice {
		return li.SalePrice
	}
	return li.UnitPrice
}

// Totals are derived fields. They are recomputed from the line items and the
// active coupon/shipping method on every mutation, never stored independently.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

// State is the full serializable cart: the ordered line items, the coupon and
// shipping-method references, and the derived totals.
type State struct {
	Items    []LineItem      `json:"items"`
	Coupon   *Coupon         `json:"coupon,omitempty"`
	Shipping *ShippingMethod `json:"shipping_method,omitempty"`
	Totals   Totals          `json:"totals"`
}

// Store maintains one shopper's in-progress selection. All operations are
// synchronous; the only side effect is a best-effort write of the serialized
// state to durable storage, which never blocks or fails the operation.
type Store struct {
	state   State
	pricing Pricing
	storage Storage
	key     string
}

// New returns an empty cart persisting under key. A nil storage keeps the
// cart in-memory only; a nil pricing falls back to the flat-rate defaults.
func New(storage Storage, pricing Pricing, key string) *Store {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	return &Store{
		pricing: pricing,
		storage: storage,
		key:     key,
	}
}

// Load restores a cart from storage. Missing or malformed data falls back to
// an empty cart rather than failing session startup.
func Load(ctx context.Context, storage Storage, pricing Pricing, key string) *Store {
	s := New(storage, pricing, key)
	if storage == nil {
		return s
	}

	data, err := storage.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			log.Printf("[Cart] Failed to load state for %s, starting empty: %v", key, err)
		}
		return s
	}

	state, err := decodeState(data)
	if err != nil {
		log.Printf("[Cart] Corrupt state for %s, starting empty: %v", key, err)
		return s
	}

	s.state = *state
	s.recompute() // totals are derived, never trusted from storage
	return s
}

// AddItem merges quantity into an existing line item with the same
// (productID, variant) identity, or appends a new line item.
func (s *Store) AddItem(p *product.Product, quantity int, variant Variant) error {
	if p == nil || p.ID == "" {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	key := ItemKey{ProductID: p.ID, Variant: variant}
	if i := s.indexOf(key); i >= 0 {
		s.state.Items[i].Quantity += quantity
	} else {
		s.state.Items = append(s.state.Items, LineItem{
			ProductID: p.ID,
			Variant:   variant,
			Name:      p.Name,
			UnitPrice: p.Price,
			SalePrice: p.SalePrice,
			Quantity:  quantity,
		})
	}

	s.commit()
	return nil
}

// RemoveItem removes the matching line item. Removing an absent item is a
// no-op, not an error.
func (s *Store) RemoveItem(key ItemKey) {
	i := s.indexOf(key)
	if i < 0 {
		return
	}
	s.state.Items = append(s.state.Items[:i], s.state.Items[i+1:]...)
	s.commit()
}

// UpdateQuantity replaces the quantity in place. A quantity of zero or less
// is equivalent to RemoveItem.
func (s *Store) UpdateQuantity(key ItemKey, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(key)
		return
	}
	i := s.indexOf(key)
	if i < 0 {
		return
	}
	s.state.Items[i].Quantity = quantity
	s.commit()
}

// Clear resets the cart to the empty state. Callers must only clear after the
// server has confirmed an order was durably created.
func (s *Store) Clear() {
	s.state = State{}
	s.commit()
}

// ApplyCoupon sets the active coupon; nil removes it.
func (s *Store) ApplyCoupon(c *Coupon) {
	s.state.Coupon = c
	s.commit()
}

// SetShippingMethod sets the active shipping method; nil reverts to default.
func (s *Store) SetShippingMethod(m *ShippingMethod) {
	s.state.Shipping = m
	s.commit()
}

// Items returns the ordered line items.
func (s *Store) Items() []LineItem {
	return s.state.Items
}

// Totals returns the derived monetary summary.
func (s *Store) Totals() Totals {
	return s.state.Totals
}

// State returns a copy of the full cart state.
func (s *Store) State() State {
	st := s.state
	st.Items = make([]LineItem, len(s.state.Items))
	copy(st.Items, s.state.Items)
	return st
}

// IsEmpty reports whether the cart holds no line items.
func (s *Store) IsEmpty() bool {
	return len(s.state.Items) == 0
}

func (s *Store) indexOf(key ItemKey) int {
	for i := range s.state.Items {
		if s.state.Items[i].Key() == key {
			return i
		}
	}
	return -1
}

// commit recomputes the derived totals and persists the state.
func (s *Store) commit() {
	s.recompute()
	s.persist()
}

// recompute derives every total from scratch. Subtotal uses original unit
// prices; the grand total uses effective (sale) prices.
func (s *Store) recompute() {
	var subtotal, effective int64
	for i := range s.state.Items {
		li := &s.state.Items[i]
		subtotal += li.UnitPrice * int64(li.Quantity)
		effective += li.EffectivePrice() * int64(li.Quantity)
	}

	discount := s.state.Coupon.DiscountFor(subtotal)
	if discount > effective {
		discount = effective
	}

	var tax, shipping int64
	if len(s.state.Items) > 0 {
		tax = s.pricing.Tax(effective - discount)
		shipping = s.pricing.Shipping(s.state.Items, s.state.Shipping)
	}

	total := effective - discount + tax + shipping
	if total < 0 {
		total = 0
	}

	s.state.Totals = Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    total,
	}
}

// persist writes the serialized state to durable storage. Failures are logged
// and swallowed: the cart degrades to in-memory for the session.
func (s *Store) persist() {
	if s.storage == nil {
		return
	}
	data, err := encodeState(&s.state)
	if err != nil {
		log.Printf("[Cart] Failed to encode state for %s: %v", s.key, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.storage.Save(ctx, s.key, data); err != nil {
		log.Printf("[Cart] Failed to persist state for %s: %v", s.key, err)
	}
}
