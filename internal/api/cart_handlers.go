package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/product"
)

// CartHandlers serve the per-session cart. The session id arrives in the
// X-Session-ID header; the cart state is loaded from storage on every request
// and persists itself on every mutation.
type CartHandlers struct {
	storage  cart.Storage
	pricing  cart.Pricing
	lookup   product.Lookup
	checkout *checkout.Service
}

func NewCartHandlers(storage cart.Storage, pricing cart.Pricing, lookup product.Lookup, checkoutSvc *checkout.Service) *CartHandlers {
	return &CartHandlers{
		storage:  storage,
		pricing:  pricing,
		lookup:   lookup,
		checkout: checkoutSvc,
	}
}

func (h *CartHandlers) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "X-Session-ID header is required")
		return "", false
	}
	return sessionID, true
}

func (h *CartHandlers) load(r *http.Request, sessionID string) *cart.Store {
	return cart.Load(r.Context(), h.storage, h.pricing, cart.Key(sessionID))
}

func (h *CartHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.load(r, sessionID).State())
}

type cartItemRequest struct {
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Variant   cart.Variant `json:"variant"`
}

func (h *CartHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := h.lookup.Get(r.Context(), req.ProductID)
	if errors.Is(err, product.ErrNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve product")
		return
	}

	c := h.load(r, sessionID)
	if err := c.AddItem(p, req.Quantity, req.Variant); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c.State())
}

func (h *CartHandlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := h.load(r, sessionID)
	c.UpdateQuantity(cart.ItemKey{ProductID: req.ProductID, Variant: req.Variant}, req.Quantity)
	respondJSON(w, http.StatusOK, c.State())
}

func (h *CartHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	key := cart.ItemKey{
		ProductID: r.URL.Query().Get("product_id"),
		Variant: cart.Variant{
			Color: r.URL.Query().Get("color"),
			Size:  r.URL.Query().Get("size"),
		},
	}

	c := h.load(r, sessionID)
	c.RemoveItem(key)
	respondJSON(w, http.StatusOK, c.State())
}

func (h *CartHandlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	c := h.load(r, sessionID)
	c.Clear()
	respondJSON(w, http.StatusOK, c.State())
}

func (h *CartHandlers) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	var coupon cart.Coupon
	if err := json.NewDecoder(r.Body).Decode(&coupon); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if coupon.Type != cart.CouponPercentage && coupon.Type != cart.CouponFixed {
		respondError(w, http.StatusBadRequest, "coupon type must be percentage or fixed")
		return
	}

	c := h.load(r, sessionID)
	c.ApplyCoupon(&coupon)
	respondJSON(w, http.StatusOK, c.State())
}

func (h *CartHandlers) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	c := h.load(r, sessionID)
	c.ApplyCoupon(nil)
	respondJSON(w, http.StatusOK, c.State())
}

// Checkout places the session cart as an order. The cart is cleared only
// after the store has confirmed the order was durably created; any failure
// leaves the cart intact.
func (h *CartHandlers) Checkout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		CustomerName string `json:"customer_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := h.load(r, sessionID)

	placeReq := checkout.PlaceOrderRequest{CustomerName: req.CustomerName}
	for _, li := range c.Items() {
		placeReq.Items = append(placeReq.Items, checkout.ItemRequest{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
		})
	}

	o, err := h.checkout.PlaceOrder(r.Context(), placeReq)
	if err != nil {
		writePlacementError(w, err)
		return
	}

	c.Clear()
	respondJSON(w, http.StatusCreated, o)
}
