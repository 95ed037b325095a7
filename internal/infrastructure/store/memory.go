package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/product"
	"github.com/google/uuid"
)

// MemoryStore implements Store with in-memory storage. A single mutex covers
// the stock check and the decrement, so two concurrent placements against the
// same product can never both observe sufficient stock.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*product.Product
	orders   map[string]*order.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*product.Product),
		orders:   make(map[string]*order.Order),
	}
}

// CreateOrder validates every item before touching any stock: first pass
// resolves products and checks quantities, second pass decrements and writes
// the order. Both passes run under one lock.
func (s *MemoryStore) CreateOrder(ctx context.Context, customerName string, items []ItemRequest) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		p, exists := s.products[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: %s", product.ErrNotFound, item.ProductID)
		}
		if p.Stock < item.Quantity {
			return nil, &StockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}
	}

	now := time.Now()
	orderItems := make([]order.Item, 0, len(items))
	for _, item := range items {
		p := s.products[item.ProductID]
		p.Stock -= item.Quantity
		p.UpdatedAt = now
		orderItems = append(orderItems, order.Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			Price:     p.EffectivePrice(),
		})
	}

	o := &order.Order{
		ID:           uuid.New().String(),
		CustomerName: customerName,
		Status:       order.StatusNewRequest,
		Items:        orderItems,
		Total:        order.ItemsTotal(orderItems),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.orders[o.ID] = o

	return copyOrder(o), nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[id]
	if !exists {
		return nil, order.ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *MemoryStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]*order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, copyOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return nil, order.ErrNotFound
	}
	if err := o.Status.Transition(status); err != nil {
		return nil, err
	}

	o.Status = status
	o.UpdatedAt = time.Now()
	return copyOrder(o), nil
}

func (s *MemoryStore) PutProduct(ctx context.Context, p *product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	now := time.Now()
	if existing, ok := s.products[cp.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.products[cp.ID] = &cp

	// Report the generated id back to the caller.
	*p = cp
	return nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", product.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]*product.Product, 0, len(s.products))
	for _, p := range s.products {
		cp := *p
		products = append(products, &cp)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
	return products, nil
}

func copyOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = make([]order.Item, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}
