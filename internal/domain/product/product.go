package product

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrInvalidPrice = errors.New("price must be positive")
	ErrInvalidName  = errors.New("name is required")
)

// Product is the catalog read model the storefront works against.
// Prices are integer minor units (cents). SalePrice of 0 means no sale.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	SalePrice   int64     `json:"sale_price,omitempty"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectivePrice returns the sale price when one is set, the list price otherwise.
func (p *Product) EffectivePrice() int64 {
	if p.SalePrice > 0 && p.SalePrice < p.Price {
		return p.SalePrice
	}
	return p.Price
}

// Lookup resolves a product id to its current catalog record.
// Implementations may serve stale data for display; the placement
// transaction never decides against a Lookup read.
type Lookup interface {
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
}

// Validate checks the fields a catalog entry must carry before it is stored.
func (p *Product) Validate() error {
	if p.Name == "" {
		return ErrInvalidName
	}
	if p.Price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
