package account

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type noRow struct{}

func (noRow) Scan(...any) error { return pgx.ErrNoRows }

// countingDB answers every QueryRow with no rows.
type countingDB struct{ calls int }

func (d *countingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (d *countingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	d.calls++
	return noRow{}
}

func (d *countingDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func TestByIDRejectsMalformedID(t *testing.T) {
	db := &countingDB{}
	_, err := NewPGStore(db).ByID(context.Background(), "u-1")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	if db.calls != 0 {
		t.Errorf("queried %d times for a malformed id", db.calls)
	}
}

func TestByIDNoRows(t *testing.T) {
	db := &countingDB{}
	_, err := NewPGStore(db).ByID(context.Background(), "11111111-1111-1111-1111-111111111111")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	if db.calls != 1 {
		t.Errorf("calls = %d, want 1", db.calls)
	}
}
