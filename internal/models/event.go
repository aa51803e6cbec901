package models

import "time"

// Domain event types published to the broker.
const (
	EventOrderCreated       = "order.created"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentInitiated   = "payment.initiated"
	EventPaymentSucceeded   = "payment.succeeded"
	EventPaymentFailed      = "payment.failed"
)

// DomainEvent is the JSON envelope published for order and payment changes.
type DomainEvent struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OrderID    string                 `json:"orderId"`
	OrderToken string                 `json:"orderToken"`
	Actor      string                 `json:"actor,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
	Data       map[string]interface{} `json:"data,omitempty"`
}
