package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/database"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Membership is the caller's relationship to one tenant. It is a closed set:
// Found, Legacy, or a nil Membership meaning the caller is not a member.
type Membership interface {
	MemberRole() Role
	membership()
}

// Found is a row in tenant_members.
type Found struct {
	Role Role
}

// Legacy is synthesized for databases that predate tenant_members, where a
// user's implicit tenant is their own user id.
type Legacy struct {
	Role Role
}

func (m Found) MemberRole() Role  { return m.Role }
func (m Legacy) MemberRole() Role { return m.Role }

func (Found) membership()  {}
func (Legacy) membership() {}

// IsLegacy reports whether m was synthesized because the membership table
// does not exist.
func IsLegacy(m Membership) bool {
	_, ok := m.(Legacy)
	return ok
}

// MembershipResolver answers "is this user a member of this tenant, and as
// what". It never writes.
type MembershipResolver struct {
	db database.Querier
}

func NewMembershipResolver(db database.Querier) *MembershipResolver {
	return &MembershipResolver{db: db}
}

func (r *MembershipResolver) Resolve(ctx context.Context, tenantID, userID string) (Membership, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, nil
	}

	var role string
	err := r.db.QueryRow(ctx,
		"SELECT role FROM tenant_members WHERE tenant_id = $1 AND user_id = $2",
		tenantID, userID,
	).Scan(&role)
	switch {
	case err == nil:
		return Found{Role: Role(role)}, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case database.IsMissingSchema(err):
		if tenantID == userID {
			return Legacy{Role: RoleOwner}, nil
		}
		return nil, nil
	default:
		return nil, apperr.Internal("resolve tenant membership", err)
	}
}
