package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/events"
	"github.com/nikhilbhutani/eventdesk/internal/queue"
)

// Deliverer sends an event to its external destination.
type Deliverer interface {
	Deliver(ctx context.Context, e events.Event) error
}

// TicketEventWorker forwards queued ticket events. A delivery error makes
// asynq retry the task.
type TicketEventWorker struct {
	out Deliverer
	log zerolog.Logger
}

func NewTicketEventWorker(out Deliverer, log zerolog.Logger) *TicketEventWorker {
	return &TicketEventWorker{out: out, log: log}
}

func (w *TicketEventWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.TicketEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	e := payload.Event

	if err := w.out.Deliver(ctx, e); err != nil {
		return fmt.Errorf("deliver ticket event: %w", err)
	}

	w.log.Info().
		Str("event", e.Type).
		Str("event_id", e.ID).
		Str("ticket_id", e.TicketID).
		Msg("ticket event delivered")
	return nil
}
