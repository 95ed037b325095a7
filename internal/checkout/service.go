package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/store"
)

// maxPlacementAttempts bounds the retry loop on stock contention. Each retry
// re-validates against post-commit state, since a conflicted attempt commits
// nothing.
const maxPlacementAttempts = 3

// ItemRequest is one requested line as submitted by the client. Only the id
// and quantity are trusted; price and name are resolved server-side.
type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrderRequest is the placement input.
type PlaceOrderRequest struct {
	CustomerName string        `json:"customer_name"`
	Items        []ItemRequest `json:"items"`
}

// Validate checks the request shape before any side effect.
func (r *PlaceOrderRequest) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(r.CustomerName) == "" {
		fields["customer_name"] = "is required"
	}
	if len(r.Items) == 0 {
		fields["items"] = "must contain at least one item"
	}
	for i, item := range r.Items {
		if item.ProductID == "" {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "is required"
		}
		if item.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be at least 1"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Service runs the order placement transaction and drives the order status
// lifecycle. The store supplies the atomic unit; the service validates input,
// bounds conflict retries, and publishes events after commit.
type Service struct {
	store     store.OrderStore
	publisher Publisher
}

// NewService creates a checkout service. publisher may be nil, in which case
// no events are emitted.
func NewService(st store.OrderStore, publisher Publisher) *Service {
	return &Service{store: st, publisher: publisher}
}

// PlaceOrder converts a cart payload into a persisted order while reserving
// inventory. Every failure is total: no order exists and no stock moved.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*order.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Merge duplicate product ids so the stock check sees the combined
	// quantity, not each line separately.
	items := make([]store.ItemRequest, 0, len(req.Items))
	index := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		if i, ok := index[item.ProductID]; ok {
			items[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(items)
		items = append(items, store.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	var lastErr error
	for attempt := 1; attempt <= maxPlacementAttempts; attempt++ {
		o, err := s.store.CreateOrder(ctx, strings.TrimSpace(req.CustomerName), items)
		if err == nil {
			s.publish(ctx, EventOrderPlaced, o)
			return o, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		lastErr = err
		log.Printf("[Checkout] Placement conflict (attempt %d/%d), retrying", attempt, maxPlacementAttempts)
	}
	return nil, lastErr
}

// UpdateStatus applies a lifecycle transition to an existing order.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error) {
	o, err := s.store.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderStatusChanged, o)
	return o, nil
}

// GetOrder returns a single order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// ListOrders returns all orders, newest first.
func (s *Service) ListOrders(ctx context.Context) ([]*order.Order, error) {
	return s.store.ListOrders(ctx)
}

func (s *Service) publish(ctx context.Context, eventType string, o *order.Order) {
	if s.publisher == nil {
		return
	}
	event := OrderEvent{
		Type:         eventType,
		OrderID:      o.ID,
		CustomerName: o.CustomerName,
		Status:       o.Status,
		Total:        o.Total,
		Items:        o.Items,
		OccurredAt:   time.Now(),
	}
	if err := s.publisher.Publish(ctx, o.ID, event); err != nil {
		log.Printf("[Checkout] Failed to publish %s for order %s: %v", eventType, o.ID, err)
	}
}
