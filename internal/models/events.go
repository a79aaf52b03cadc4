package models

import "time"

// EventType constants for committed resource mutations
const (
	EventTypeBookCreated     = "book.created"
	EventTypeBookUpdated     = "book.updated"
	EventTypeBookDeleted     = "book.deleted"
	EventTypeCustomerCreated = "customer.created"
	EventTypeCustomerUpdated = "customer.updated"
	EventTypeCustomerDeleted = "customer.deleted"
	EventTypeOrderCreated    = "order.created"
	EventTypeOrderUpdated    = "order.updated"
	EventTypeOrderDeleted    = "order.deleted"
)

// ResourceEvent describes a committed store mutation
type ResourceEvent struct {
	Type       string    `json:"event_type"`
	Resource   string    `json:"resource"`
	ID         string    `json:"id"`
	Shard      string    `json:"shard,omitempty"`
	Payload    Fields    `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
