package support

import (
	"strings"
	"time"

	"github.com/nikhilbhutani/eventdesk/internal/models"
)

// Patch is one update request against a ticket. Every field is optional.
// Tags distinguishes absent (nil) from cleared (empty).
type Patch struct {
	Message          string   `json:"message" validate:"max=10000"`
	Status           string   `json:"status" validate:"omitempty,oneof=open pending resolved closed"`
	Priority         string   `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	AssignToMe       bool     `json:"assignToMe"`
	Unassign         bool     `json:"unassign"`
	AssignedToUserID string   `json:"assignedToUserId" validate:"omitempty,uuid"`
	Tags             []string `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
}

func (p Patch) touchesAssignment() bool {
	return p.AssignToMe || p.Unassign || p.AssignedToUserID != ""
}

// Empty reports whether p would change nothing.
func (p Patch) Empty() bool {
	return p.Message == "" && p.Status == "" && p.Priority == "" && !p.touchesAssignment() && p.Tags == nil
}

// Assignment is a resolved assignment change. A nil UserID unassigns.
type Assignment struct {
	UserID *string
	At     *time.Time
}

// Changes is what Transition decided for one update request. Nil fields are
// left untouched by the store.
type Changes struct {
	Status     *string
	Priority   *string
	Assignment *Assignment
	Tags       []string
	Message    *models.TicketMessage
	At         time.Time
}

// minLevel is the oldest projection that can persist c. The last-message
// fields a message implies are not counted: older schemas drop them.
func (c Changes) minLevel() Level {
	switch {
	case c.Tags != nil:
		return LevelSLATags
	case c.Assignment != nil:
		return LevelAssignment
	default:
		return LevelBase
	}
}

func (c Changes) levelCheck(l Level) error {
	if need := c.minLevel(); l < need {
		return needs(need)
	}
	return nil
}

// Transition applies the ticket workflow to p. sender is the side the actor
// writes on; actorID is used for assignToMe. t is the ticket as currently
// stored. Enum values in p must already be validated.
func Transition(t *models.Ticket, p Patch, actorID, sender string, now time.Time) Changes {
	ch := Changes{At: now}

	if p.Message != "" {
		ch.Message = &models.TicketMessage{
			TicketID:  t.ID,
			Sender:    sender,
			Message:   p.Message,
			CreatedAt: now,
		}
	}

	switch {
	case p.Status != "":
		status := p.Status
		ch.Status = &status
	case ch.Message != nil && sender == models.SenderSupport && t.Status != models.TicketStatusClosed:
		status := models.TicketStatusPending
		ch.Status = &status
	}

	if p.Priority != "" {
		priority := p.Priority
		ch.Priority = &priority
	}

	switch {
	case p.Unassign:
		ch.Assignment = &Assignment{}
	case p.AssignToMe:
		user, at := actorID, now
		ch.Assignment = &Assignment{UserID: &user, At: &at}
	case p.AssignedToUserID != "":
		user, at := p.AssignedToUserID, now
		ch.Assignment = &Assignment{UserID: &user, At: &at}
	}

	if p.Tags != nil {
		ch.Tags = normalizeTags(p.Tags)
	}
	return ch
}

// ApplyTo mutates t the way the store will, for stores without SQL.
func (c Changes) ApplyTo(t *models.Ticket) {
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.Assignment != nil {
		t.AssigneeID = c.Assignment.UserID
		t.AssignedAt = c.Assignment.At
		if c.Assignment.UserID == nil {
			t.AssigneeName, t.AssigneeEmail = "", ""
		}
	}
	if c.Tags != nil {
		t.Tags = c.Tags
	}
	if c.Message != nil {
		at := c.Message.CreatedAt
		t.LastMessageAt = &at
		t.LastMessageSender = c.Message.Sender
	}
	t.UpdatedAt = c.At
}

// normalizeTags trims, lower-cases and de-duplicates while keeping order.
func normalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, tag := range in {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
