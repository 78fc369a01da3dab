// Package events carries ticket lifecycle notifications out of the request
// path. Delivery is best-effort: a failed publish never fails the request
// that caused it.
package events

import (
	"context"
	"time"
)

const (
	TicketCreated = "ticket.created"
	TicketReplied = "ticket.replied"
	TicketUpdated = "ticket.updated"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	TicketID   string    `json:"ticket_id"`
	TenantID   *string   `json:"tenant_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Status     string    `json:"status"`
	Sender     string    `json:"sender,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
