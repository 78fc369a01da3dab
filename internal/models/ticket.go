package models

import "time"

const (
	TicketStatusOpen     = "open"
	TicketStatusPending  = "pending"
	TicketStatusResolved = "resolved"
	TicketStatusClosed   = "closed"

	TicketPriorityLow    = "low"
	TicketPriorityNormal = "normal"
	TicketPriorityHigh   = "high"
	TicketPriorityUrgent = "urgent"

	SenderUser    = "user"
	SenderSupport = "support"
)

// Ticket is a support ticket as read at whatever schema level the store
// currently supports. Fields introduced by later migrations stay zero when
// the row was read through an older projection.
type Ticket struct {
	ID                string     `json:"id" db:"id"`
	TenantID          *string    `json:"tenant_id,omitempty" db:"tenant_id"`
	TenantName        string     `json:"tenant_name,omitempty"`
	CreatorID         string     `json:"creator_id" db:"creator_id"`
	CreatorName       string     `json:"creator_name,omitempty"`
	CreatorEmail      string     `json:"creator_email,omitempty"`
	AssigneeID        *string    `json:"assigned_to_user_id,omitempty" db:"assigned_to_user_id"`
	AssigneeName      string     `json:"assignee_name,omitempty"`
	AssigneeEmail     string     `json:"assignee_email,omitempty"`
	AssignedAt        *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
	Subject           string     `json:"subject" db:"subject"`
	Status            string     `json:"status" db:"status"`
	Priority          string     `json:"priority" db:"priority"`
	Tags              []string   `json:"tags,omitempty" db:"tags"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	LastMessageSender string     `json:"last_message_sender,omitempty" db:"last_message_sender"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Active reports whether the ticket still counts toward open queues.
func (t *Ticket) Active() bool {
	return t.Status != TicketStatusResolved && t.Status != TicketStatusClosed
}

type TicketMessage struct {
	ID        string    `json:"id" db:"id"`
	TicketID  string    `json:"ticket_id" db:"ticket_id"`
	Sender    string    `json:"sender" db:"sender"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
