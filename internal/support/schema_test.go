package support

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/database"
)

type staticMarker struct {
	applied map[string]bool
	ok      bool
}

func (m staticMarker) Applied(context.Context) (map[string]bool, bool) { return m.applied, m.ok }

func missingColumn(name string) error {
	return &pgconn.PgError{Code: database.CodeUndefinedColumn, Message: "column " + name + " does not exist"}
}

func missingTable(name string) error {
	return &pgconn.PgError{Code: database.CodeUndefinedTable, Message: `relation "` + name + `" does not exist`}
}

// schemaAttempt simulates a database where every level newer than have
// fails with err.
func schemaAttempt(have Level, err error, calls *[]Level) func(Level) error {
	return func(l Level) error {
		*calls = append(*calls, l)
		if l > have {
			return err
		}
		return nil
	}
}

func TestProbeResolvesSameLevel(t *testing.T) {
	p := prober{log: zerolog.Nop()}
	for i := 0; i < 3; i++ {
		var calls []Level
		l, err := p.run(context.Background(), "list", schemaAttempt(LevelAssignment, missingColumn("t.tags"), &calls))
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if l != LevelAssignment {
			t.Fatalf("run %d resolved %s, want assignment", i, l)
		}
		if len(calls) != 2 || calls[0] != LevelSLATags || calls[1] != LevelAssignment {
			t.Fatalf("run %d probe order = %v", i, calls)
		}
	}
}

func TestProbeAllLevelsFail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"tickets table missing", missingTable("support_tickets"), database.MigrationSupportTickets},
		{"messages table missing", missingTable("public.support_ticket_messages"), database.MigrationSupportTickets},
		{"unknown object falls back to base", missingTable("mystery"), database.MigrationSupportTickets},
		{"gateway text without SQLSTATE", errors.New("Could not find the table 'public.SupportTicket' in the schema cache"), database.MigrationSupportTickets},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls []Level
			p := prober{log: zerolog.Nop()}
			_, err := p.run(context.Background(), "list", schemaAttempt(0, tc.err, &calls))

			var notReady *apperr.SchemaNotReadyError
			if !errors.As(err, &notReady) {
				t.Fatalf("err = %v, want SchemaNotReadyError", err)
			}
			if notReady.Migration != tc.want {
				t.Errorf("migration = %s, want %s", notReady.Migration, tc.want)
			}
			if len(calls) != 3 {
				t.Errorf("attempts = %d, want 3", len(calls))
			}
		})
	}
}

func TestProbeFeatureNeedsNewerLevel(t *testing.T) {
	p := prober{log: zerolog.Nop()}
	f := ListFilter{Tag: "vip"}

	_, err := p.run(context.Background(), "list", func(l Level) error {
		if l == LevelSLATags {
			return missingColumn("t.last_message_at")
		}
		_, _, err := listQuery(l, f)
		return err
	})
	var notReady *apperr.SchemaNotReadyError
	if !errors.As(err, &notReady) || notReady.Migration != database.MigrationTicketSLATags {
		t.Fatalf("err = %v, want SchemaNotReady(%s)", err, database.MigrationTicketSLATags)
	}
}

func TestProbeNamesMissingTenantMigration(t *testing.T) {
	p := prober{log: zerolog.Nop()}
	_, err := p.run(context.Background(), "assign", func(l Level) error {
		switch l {
		case LevelSLATags, LevelAssignment:
			return missingTable("tenants")
		}
		return Changes{Assignment: &Assignment{}}.levelCheck(l)
	})
	var notReady *apperr.SchemaNotReadyError
	if !errors.As(err, &notReady) || notReady.Migration != database.MigrationMultitenantRBAC {
		t.Fatalf("err = %v, want SchemaNotReady(%s)", err, database.MigrationMultitenantRBAC)
	}
}

func TestProbeStartsAtMarkerLevel(t *testing.T) {
	p := prober{
		marker: staticMarker{ok: true, applied: map[string]bool{
			database.MigrationSupportTickets:  true,
			database.MigrationMultitenantRBAC: true,
		}},
		log: zerolog.Nop(),
	}
	var calls []Level
	l, err := p.run(context.Background(), "list", schemaAttempt(LevelSLATags, nil, &calls))
	if err != nil {
		t.Fatal(err)
	}
	if l != LevelBase || len(calls) != 1 {
		t.Errorf("resolved %s after %v, want base on first attempt", l, calls)
	}
}

func TestProbeWithoutMarkerStartsNewest(t *testing.T) {
	p := prober{marker: staticMarker{ok: false}, log: zerolog.Nop()}
	if got := p.start(context.Background()); got != LevelSLATags {
		t.Errorf("start = %s, want sla_tags", got)
	}
}

func TestProbeDoesNotCascadeOnOtherErrors(t *testing.T) {
	p := prober{log: zerolog.Nop()}
	calls := 0
	_, err := p.run(context.Background(), "list", func(Level) error {
		calls++
		return &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}
	})
	var internal *apperr.InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("err = %v, want InternalError", err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
}

func TestProbePassesNotFoundThrough(t *testing.T) {
	p := prober{log: zerolog.Nop()}
	_, err := p.run(context.Background(), "get", func(Level) error { return ErrTicketNotFound })
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("err = %v, want ErrTicketNotFound", err)
	}
}
