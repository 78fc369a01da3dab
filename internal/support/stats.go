package support

import (
	"time"

	"github.com/nikhilbhutani/eventdesk/internal/models"
)

// Stats are the support queue counters. The buckets overlap: one ticket can
// count toward several of them.
type Stats struct {
	AwaitingSupport int `json:"awaitingSupport"`
	Unassigned      int `json:"unassigned"`
	AssignedToMe    int `json:"assignedToMe"`
	ResolvedToday   int `json:"resolvedToday"`
}

// QueueRow is the slice of a ticket the counters need.
type QueueRow struct {
	Status            string
	AssigneeID        *string
	LastMessageSender string
	UpdatedAt         time.Time
}

// Tally computes the counters for userID over rows. dayStart is the start of
// the current calendar day.
func Tally(rows []QueueRow, userID string, dayStart time.Time) Stats {
	var s Stats
	for _, r := range rows {
		active := r.Status != models.TicketStatusResolved && r.Status != models.TicketStatusClosed
		if active {
			if r.LastMessageSender == models.SenderUser {
				s.AwaitingSupport++
			}
			switch {
			case r.AssigneeID == nil:
				s.Unassigned++
			case *r.AssigneeID == userID:
				s.AssignedToMe++
			}
		}
		if r.Status == models.TicketStatusResolved && !r.UpdatedAt.Before(dayStart) {
			s.ResolvedToday++
		}
	}
	return s
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
