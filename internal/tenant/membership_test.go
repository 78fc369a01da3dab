package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
)

type stubRow struct {
	role string
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.role
	return nil
}

// stubQuerier answers every QueryRow with row and counts calls.
type stubQuerier struct {
	row   stubRow
	calls int
}

func (q *stubQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (q *stubQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	q.calls++
	return q.row
}

func (q *stubQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

const (
	userID  = "11111111-1111-1111-1111-111111111111"
	otherID = "22222222-2222-2222-2222-222222222222"
)

func TestResolveFound(t *testing.T) {
	q := &stubQuerier{row: stubRow{role: "admin"}}
	m, err := NewMembershipResolver(q).Resolve(context.Background(), otherID, userID)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.MemberRole() != RoleAdmin || IsLegacy(m) {
		t.Errorf("Resolve = %#v, want Found{admin}", m)
	}
}

func TestResolveNone(t *testing.T) {
	q := &stubQuerier{row: stubRow{err: pgx.ErrNoRows}}
	m, err := NewMembershipResolver(q).Resolve(context.Background(), otherID, userID)
	if err != nil || m != nil {
		t.Errorf("Resolve = %#v, %v; want nil, nil", m, err)
	}
}

func TestResolveSkipsMalformedTenant(t *testing.T) {
	q := &stubQuerier{row: stubRow{role: "owner"}}
	m, err := NewMembershipResolver(q).Resolve(context.Background(), "not-a-uuid", userID)
	if err != nil || m != nil {
		t.Errorf("Resolve = %#v, %v; want nil, nil", m, err)
	}
	if q.calls != 0 {
		t.Errorf("queried %d times for a malformed tenant id", q.calls)
	}
}

func TestResolveLegacy(t *testing.T) {
	missing := []error{
		&pgconn.PgError{Code: "42P01", Message: `relation "tenant_members" does not exist`},
		errors.New("Could not find the table 'public.tenant_members' in the schema cache"),
	}
	for _, cause := range missing {
		r := NewMembershipResolver(&stubQuerier{row: stubRow{err: cause}})

		// Same answer every time for the same inputs.
		for i := 0; i < 3; i++ {
			m, err := r.Resolve(context.Background(), userID, userID)
			if err != nil {
				t.Fatal(err)
			}
			if !IsLegacy(m) || m.MemberRole() != RoleOwner {
				t.Fatalf("own tenant: Resolve = %#v, want Legacy{owner}", m)
			}
		}

		m, err := r.Resolve(context.Background(), otherID, userID)
		if err != nil || m != nil {
			t.Errorf("foreign tenant: Resolve = %#v, %v; want nil, nil", m, err)
		}
	}
}

func TestResolveOtherErrorsAreInternal(t *testing.T) {
	q := &stubQuerier{row: stubRow{err: &pgconn.PgError{Code: "08006", Message: "connection failure"}}}
	_, err := NewMembershipResolver(q).Resolve(context.Background(), otherID, userID)
	var internal *apperr.InternalError
	if !errors.As(err, &internal) {
		t.Errorf("err = %v, want internal", err)
	}
}
