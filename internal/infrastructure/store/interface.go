package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/product"
)

// ErrConflict signals contention on stock detected inside the atomic unit.
// The whole placement is safe to retry from scratch: nothing was committed.
var ErrConflict = errors.New("concurrent stock update conflict")

// StockError reports a requested quantity exceeding available stock, naming
// the offending product and the quantity still available.
type StockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ItemRequest is one line of a placement request as submitted: a product id
// and a quantity. The store resolves the id to a live product record.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// OrderStore persists orders and enforces inventory correctness. CreateOrder
// is the single atomic unit the whole system relies on: resolving every
// product, checking every requested quantity against current stock, creating
// the order, and decrementing stock all happen together or not at all.
//
// Implementations must serialize conflicting placements so that concurrent
// requests never drive stock negative. Any failure leaves prior state
// unchanged.
type OrderStore interface {
	// CreateOrder places an order. It returns product.ErrNotFound (wrapped
	// with the product id) when an id does not resolve, *StockError when a
	// quantity exceeds available stock, and ErrConflict when contention was
	// detected and the caller should retry.
	CreateOrder(ctx context.Context, customerName string, items []ItemRequest) (*order.Order, error)

	GetOrder(ctx context.Context, id string) (*order.Order, error)

	// ListOrders returns all orders, newest first.
	ListOrders(ctx context.Context) ([]*order.Order, error)

	// UpdateOrderStatus applies a status change when the lifecycle permits
	// it, returning the updated order. It returns order.ErrNotFound for an
	// unknown id and order.ErrIllegalTransition for a rejected change.
	// Stock is never touched, including on cancellation.
	UpdateOrderStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
}

// ProductStore persists the catalog records placements resolve against.
type ProductStore interface {
	PutProduct(ctx context.Context, p *product.Product) error
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	ListProducts(ctx context.Context) ([]*product.Product, error)
}

// Store is the full persistence surface of the storefront.
type Store interface {
	OrderStore
	ProductStore
}
