package support

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/database"
)

// execTx fails every Exec with err. Methods the repository does not reach
// are left to the embedded nil interface.
type execTx struct {
	pgx.Tx
	err        error
	rolledBack bool
}

func (t *execTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, t.err
}

func (t *execTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

func (t *execTx) Commit(context.Context) error { return nil }

type txDB struct {
	database.Querier
	tx *execTx
}

func (d *txDB) Begin(context.Context) (pgx.Tx, error) { return d.tx, nil }

func TestApplyUnknownAssignee(t *testing.T) {
	tx := &execTx{err: &pgconn.PgError{
		Code:           database.CodeForeignKeyViolation,
		ConstraintName: "support_tickets_assigned_to_user_id_fkey",
		Detail:         `Key (assigned_to_user_id)=(0b0e7c2a-5d55-4f57-9a51-1f1c1c1c1c1c) is not present in table "users".`,
	}}
	repo := NewRepository(&txDB{tx: tx}, nil, zerolog.Nop())

	assignee := uuid.NewString()
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	_, err := repo.Apply(context.Background(), uuid.NewString(), Changes{
		Assignment: &Assignment{UserID: &assignee, At: &now},
		At:         now,
	})

	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "assignedToUserId" {
		t.Fatalf("fields = %+v", verr.Fields)
	}
	if apperr.Status(err) != 400 {
		t.Fatalf("status = %d, want 400", apperr.Status(err))
	}
	if !tx.rolledBack {
		t.Fatal("transaction was not rolled back")
	}
}

func TestApplyOtherDriverErrorIsInternal(t *testing.T) {
	tx := &execTx{err: &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}}
	repo := NewRepository(&txDB{tx: tx}, nil, zerolog.Nop())

	status := "pending"
	_, err := repo.Apply(context.Background(), uuid.NewString(), Changes{Status: &status, At: time.Now()})

	var internal *apperr.InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("err = %v, want InternalError", err)
	}
}
