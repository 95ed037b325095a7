package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/email"
)

// Sender is the part of the email service the notifier needs.
type Sender interface {
	SendOrderConfirmation(to string, o *order.Order) error
}

// Handler turns order events into notification emails. Orders carry no
// customer email, so confirmations go to the configured recipient (the shop's
// order inbox).
type Handler struct {
	sender Sender
	to     string
}

func NewHandler(sender Sender, to string) *Handler {
	return &Handler{sender: sender, to: to}
}

var _ Sender = (*email.Service)(nil)

// HandleEvent processes one event from Kafka.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event checkout.OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	if event.Type != checkout.EventOrderPlaced {
		return nil
	}

	o := &order.Order{
		ID:           event.OrderID,
		CustomerName: event.CustomerName,
		Status:       event.Status,
		Items:        event.Items,
		Total:        event.Total,
	}

	log.Printf("[Notifier] Sending confirmation for order %s", o.ID)
	if err := h.sender.SendOrderConfirmation(h.to, o); err != nil {
		log.Printf("[Notifier] Failed to send confirmation for order %s: %v", o.ID, err)
		return err
	}
	return nil
}
