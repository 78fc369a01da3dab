package support

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/database"
)

// Level is a ticket projection tied to the migrations it needs. Higher
// levels are newer and expose more fields.
type Level int

const (
	LevelBase Level = iota + 1
	LevelAssignment
	LevelSLATags
)

// probeOrder is newest first. The order is fixed so that a given schema
// always resolves to the same level.
var probeOrder = []Level{LevelSLATags, LevelAssignment, LevelBase}

func (l Level) String() string {
	switch l {
	case LevelSLATags:
		return "sla_tags"
	case LevelAssignment:
		return "assignment"
	case LevelBase:
		return "base"
	default:
		return "unknown"
	}
}

// Migration is the newest migration the level depends on.
func (l Level) Migration() string {
	switch l {
	case LevelSLATags:
		return database.MigrationTicketSLATags
	case LevelAssignment:
		return database.MigrationTicketAssignment
	default:
		return database.MigrationSupportTickets
	}
}

func (l Level) requires() []string {
	switch l {
	case LevelSLATags:
		return []string{database.MigrationSupportTickets, database.MigrationMultitenantRBAC,
			database.MigrationTicketAssignment, database.MigrationTicketSLATags}
	case LevelAssignment:
		return []string{database.MigrationSupportTickets, database.MigrationMultitenantRBAC,
			database.MigrationTicketAssignment}
	default:
		return []string{database.MigrationSupportTickets}
	}
}

// objectMigrations maps a missing table or column to the migration that
// creates it. Keys are lower-cased and unqualified.
var objectMigrations = map[string]string{
	"support_tickets":         database.MigrationSupportTickets,
	"support_ticket_messages": database.MigrationSupportTickets,
	"tenants":                 database.MigrationMultitenantRBAC,
	"tenant_members":          database.MigrationMultitenantRBAC,
	"tenant":                  database.MigrationMultitenantRBAC,
	"tenantmember":            database.MigrationMultitenantRBAC,
	"default_tenant_id":       database.MigrationMultitenantRBAC,
	"assigned_to_user_id":     database.MigrationTicketAssignment,
	"assigned_at":             database.MigrationTicketAssignment,
	"assignedtouserid":        database.MigrationTicketAssignment,
	"last_message_at":         database.MigrationTicketSLATags,
	"last_message_sender":     database.MigrationTicketSLATags,
	"tags":                    database.MigrationTicketSLATags,
}

// migrationFor classifies a missing-schema error. ok is false when the
// missing object is not one the ticket migrations create.
func migrationFor(err error) (string, bool) {
	name := database.MissingObject(err)
	if name == "" {
		return "", false
	}
	if m, ok := objectMigrations[name]; ok {
		return m, true
	}
	if strings.HasPrefix(name, "supportticket") {
		return database.MigrationSupportTickets, true
	}
	return "", false
}

// needsLevelError is returned by an attempt that cannot express the request
// at the level it was given.
type needsLevelError struct {
	level Level
}

func (e *needsLevelError) Error() string {
	return "requires schema level " + e.level.String()
}

func needs(l Level) error { return &needsLevelError{level: l} }

// MarkerSource reports which migrations are applied. *database.Marker
// implements it.
type MarkerSource interface {
	Applied(ctx context.Context) (map[string]bool, bool)
}

type prober struct {
	marker MarkerSource
	log    zerolog.Logger
}

// start returns the newest level the marker proves is available, or the
// newest level overall when no marker exists.
func (p *prober) start(ctx context.Context) Level {
	if p.marker == nil {
		return LevelSLATags
	}
	applied, ok := p.marker.Applied(ctx)
	if !ok {
		return LevelSLATags
	}
	for _, l := range probeOrder {
		covered := true
		for _, m := range l.requires() {
			if !applied[m] {
				covered = false
				break
			}
		}
		if covered {
			return l
		}
	}
	return LevelBase
}

// run calls attempt once per level, newest first, starting at the level the
// marker allows. It moves to the next level only on a missing-schema error.
// If no level succeeds the result is a single SchemaNotReadyError; any other
// failure is returned as an internal error.
func (p *prober) run(ctx context.Context, op string, attempt func(Level) error) (Level, error) {
	first := p.start(ctx)

	var (
		lastErr   error
		lastLevel Level
	)
	for _, l := range probeOrder {
		if l > first {
			continue
		}
		err := attempt(l)
		if err == nil {
			return l, nil
		}

		var need *needsLevelError
		if errors.As(err, &need) {
			return 0, p.notReady(op, lastErr, need.level)
		}
		if !database.IsMissingSchema(err) {
			return 0, apperr.Internal(op, err)
		}

		p.log.Debug().Err(err).Str("op", op).Stringer("level", l).Msg("ticket projection unavailable, trying older schema")
		lastErr, lastLevel = err, l
	}
	return 0, p.notReady(op, lastErr, lastLevel)
}

func (p *prober) notReady(op string, cause error, fallback Level) error {
	migration := fallback.Migration()
	if cause != nil {
		if m, ok := migrationFor(cause); ok {
			migration = m
		}
	}
	p.log.Warn().Str("op", op).Str("migration", migration).Msg("support tickets schema not ready")
	return apperr.SchemaNotReady(migration)
}
