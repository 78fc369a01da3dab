package queue

import (
	"github.com/hibiken/asynq"
)

// NewServeMux routes worker tasks to their handlers.
func NewServeMux(ticketEvents asynq.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeTicketEvent, ticketEvents)
	return mux
}

// Queues is the worker's queue priority table.
func Queues() map[string]int {
	return map[string]int{
		queueEvents: 6,
		"default":   3,
	}
}
