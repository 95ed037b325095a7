package checkout

import (
	"context"
	"time"

	"github.com/example/storefront/internal/domain/order"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload published after a committed placement or status
// change. Delivery is best effort: correctness lives in the store, events
// only feed notifications and displays.
type OrderEvent struct {
	Type         string       `json:"type"`
	OrderID      string       `json:"order_id"`
	CustomerName string       `json:"customer_name"`
	Status       order.Status `json:"status"`
	Total        int64        `json:"total"`
	Items        []order.Item `json:"items,omitempty"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

// Publisher sends order events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
