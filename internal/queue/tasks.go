package queue

import "github.com/nikhilbhutani/eventdesk/internal/events"

const (
	TypeTicketEvent = "ticket:event"
)

// TicketEventPayload is the task body for TypeTicketEvent.
type TicketEventPayload struct {
	Event events.Event `json:"event"`
}
