package catalog

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/infrastructure/store"
)

// Service is the Product Lookup collaborator: it resolves product ids to
// current catalog records for display. Reads may be stale with respect to
// in-flight placements; decisions that decrement stock never go through here.
type Service struct {
	store store.ProductStore
	sfg   singleflight.Group // collapses concurrent lookups for the same id
}

func NewService(st store.ProductStore) *Service {
	return &Service{store: st}
}

var _ product.Lookup = (*Service)(nil)

func (s *Service) Get(ctx context.Context, id string) (*product.Product, error) {
	v, err, _ := s.sfg.Do(id, func() (interface{}, error) {
		return s.store.GetProduct(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*product.Product), nil
}

func (s *Service) List(ctx context.Context) ([]*product.Product, error) {
	return s.store.ListProducts(ctx)
}

// Create adds or replaces a catalog entry.
func (s *Service) Create(ctx context.Context, p *product.Product) error {
	return s.store.PutProduct(ctx, p)
}
