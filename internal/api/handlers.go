package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/infrastructure/store"
)

type Handlers struct {
	checkout *checkout.Service
	catalog  *catalog.Service
}

func NewHandlers(checkoutSvc *checkout.Service, catalogSvc *catalog.Service) *Handlers {
	return &Handlers{
		checkout: checkoutSvc,
		catalog:  catalogSvc,
	}
}

// Order handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.checkout.PlaceOrder(r.Context(), req)
	if err != nil {
		writePlacementError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.ListOrders(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.checkout.GetOrder(r.Context(), id)
	if errors.Is(err, order.ErrNotFound) {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status order.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.checkout.UpdateStatus(r.Context(), id, req.Status)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, o)
	case errors.Is(err, order.ErrNotFound):
		respondError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrUnknownStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrIllegalTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "order was modified concurrently, retry")
	default:
		respondError(w, http.StatusInternalServerError, "failed to update order status")
	}
}

// Product handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []*product.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.catalog.Get(r.Context(), id)
	if errors.Is(err, product.ErrNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p product.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.catalog.Create(r.Context(), &p); err != nil {
		if errors.Is(err, product.ErrInvalidName) || errors.Is(err, product.ErrInvalidPrice) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	respondJSON(w, http.StatusCreated, &p)
}

// writePlacementError maps placement failures onto the response contract:
// validation failures carry field detail, business-rule failures (unknown
// product, insufficient stock) carry a descriptive message, and exhausted
// conflict retries signal the client to retry the whole placement.
func writePlacementError(w http.ResponseWriter, err error) {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		respondFieldErrors(w, verr.Fields)
		return
	}

	var serr *store.StockError
	if errors.As(err, &serr) {
		respondError(w, http.StatusBadRequest, serr.Error())
		return
	}

	if errors.Is(err, product.ErrNotFound) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, store.ErrConflict) {
		respondError(w, http.StatusConflict, "placement conflicted with concurrent orders, retry")
		return
	}

	respondError(w, http.StatusInternalServerError, "failed to place order")
}
