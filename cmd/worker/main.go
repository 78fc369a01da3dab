package main

import (
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/eventdesk/internal/config"
	"github.com/nikhilbhutani/eventdesk/internal/queue"
	"github.com/nikhilbhutani/eventdesk/internal/queue/workers"
	"github.com/nikhilbhutani/eventdesk/internal/webhook"
	"github.com/nikhilbhutani/eventdesk/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("", "")
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Env, cfg.Log.Level).With().Str("service", "worker").Logger()

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: 10,
			Queues:      queue.Queues(),
		},
	)

	dispatcher := webhook.NewDispatcher(cfg.Events.WebhookURL, cfg.Events.WebhookSecret, cfg.Events.WebhookTimeout, log)
	if !dispatcher.Enabled() {
		log.Warn().Msg("EVENTS_WEBHOOK_URL not set, ticket events are acknowledged without delivery")
	}

	ticketEvents := workers.NewTicketEventWorker(dispatcher, log)
	mux := queue.NewServeMux(asynq.HandlerFunc(ticketEvents.ProcessTask))

	log.Info().Int("concurrency", 10).Msg("starting worker")
	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("worker error")
	}
}
