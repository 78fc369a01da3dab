package handlers

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/eventdesk/internal/database"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type redisPinger struct{ c redis.Cmdable }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

// RedisPinger adapts a go-redis client to Pinger.
func RedisPinger(c redis.Cmdable) Pinger { return redisPinger{c: c} }

// MigrationSource reports which migrations the database has recorded.
type MigrationSource interface {
	Applied(ctx context.Context) (map[string]bool, bool)
}

type HealthHandler struct {
	db      Pinger
	redis   Pinger
	marker  MigrationSource
	expects []string
}

func NewHealthHandler(db, redis Pinger, marker MigrationSource) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redis,
		marker: marker,
		expects: []string{
			database.MigrationSupportTickets,
			database.MigrationMultitenantRBAC,
			database.MigrationTicketAssignment,
			database.MigrationTicketSLATags,
			database.MigrationAuditLogs,
		},
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz fails when a dependency is unreachable. Pending migrations are
// reported but do not fail readiness: the ticket store degrades instead.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	resp := map[string]interface{}{"status": statusStr(status), "checks": checks}
	if h.marker != nil {
		if applied, ok := h.marker.Applied(r.Context()); ok {
			pending := []string{}
			for _, id := range h.expects {
				if !applied[id] {
					pending = append(pending, id)
				}
			}
			resp["pending_migrations"] = pending
		}
	}
	writeJSON(w, status, resp)
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
