package order

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrIllegalTransition = errors.New("illegal order status transition")
	ErrUnknownStatus     = errors.New("unknown order status")
)

// Status is the lifecycle position of a persisted order.
type Status string

const (
	StatusNewRequest Status = "new_request"
	StatusProcessing Status = "processing"
	StatusAccepted   Status = "accepted"
	StatusShipped    Status = "shipped"
	StatusReceived   Status = "received"
	StatusPaid       Status = "paid"
	StatusClosed     Status = "closed"
	StatusCancelled  Status = "cancelled"
)

// validTransitions walks the lifecycle strictly forward, one step at a time.
// Cancelled is reachable from every non-terminal state and is itself terminal.
var validTransitions = map[Status][]Status{
	StatusNewRequest: {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusReceived, StatusCancelled},
	StatusReceived:   {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusClosed, StatusCancelled},
	StatusClosed:     {},
	StatusCancelled:  {},
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0 && s.Valid()
}

// CanTransitionTo checks whether the lifecycle permits moving to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range validTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Transition validates a status change and returns the error the caller
// should surface when it is not allowed.
func (s Status) Transition(target Status) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, target)
	}
	if !s.CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrIllegalTransition, s, target)
	}
	return nil
}

// Item is a resolved order line: the requested product and quantity. Price
// is the effective unit price captured at placement time, never taken from
// the client.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

// Order is created only by the placement transaction; its item list and
// initial status are fixed atomically with the inventory reservation. The
// status field afterwards changes only through the lifecycle above.
type Order struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	Status       Status    `json:"status"`
	Items        []Item    `json:"items"`
	Total        int64     `json:"total"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Total sums quantity times effective unit price across items.
func ItemsTotal(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.Price * int64(it.Quantity)
	}
	return total
}
