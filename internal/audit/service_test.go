package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/database"
)

type execRecorder struct {
	args     []any
	queryErr error
}

func (e *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, e.queryErr
}

func (e *execRecorder) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (e *execRecorder) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	e.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestRecordCarriesClientIP(t *testing.T) {
	db := &execRecorder{}
	tid := "aaaaaaaa-0000-0000-0000-000000000001"
	ctx := WithClientIP(context.Background(), "203.0.113.9")

	err := NewService(db).Record(ctx, Entry{
		TenantID:     &tid,
		UserID:       "u-1",
		Action:       "ticket.created",
		ResourceType: ResourceTicket,
		ResourceID:   "t-1",
		Details:      map[string]interface{}{"priority": "high"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(db.args) != 7 {
		t.Fatalf("args = %v", db.args)
	}
	var details map[string]string
	if err := json.Unmarshal(db.args[5].([]byte), &details); err != nil || details["priority"] != "high" {
		t.Errorf("details = %s", db.args[5])
	}
	ip, ok := db.args[6].(*netip.Addr)
	if !ok || ip == nil || ip.String() != "203.0.113.9" {
		t.Errorf("ip = %v", db.args[6])
	}
}

func TestRecordWithoutClientIP(t *testing.T) {
	db := &execRecorder{}
	if err := NewService(db).Record(context.Background(), Entry{UserID: "u-1", Action: "x"}); err != nil {
		t.Fatal(err)
	}
	if ip := db.args[6].(*netip.Addr); ip != nil {
		t.Errorf("ip = %v, want nil", ip)
	}
}

func TestListWithoutTable(t *testing.T) {
	db := &execRecorder{queryErr: &pgconn.PgError{Code: database.CodeUndefinedTable, Message: `relation "audit_logs" does not exist`}}
	_, err := NewService(db).List(context.Background(), Query{})
	var schema *apperr.SchemaNotReadyError
	if !errors.As(err, &schema) || schema.Migration != database.MigrationAuditLogs {
		t.Errorf("err = %v, want schema not ready for %s", err, database.MigrationAuditLogs)
	}
}
