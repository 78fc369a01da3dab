package auth

import "context"

// StaffRole is the global role carried in the session token. It is separate
// from the per-tenant membership role.
type StaffRole string

const (
	RoleUser    StaffRole = "user"
	RoleAdmin   StaffRole = "admin"
	RoleSupport StaffRole = "support"
	RoleFinance StaffRole = "finance"
)

// IsStaff reports whether r may pass the /api/admin pre-filter at all.
func (r StaffRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleSupport || r == RoleFinance
}

// Identity is who the caller is for the duration of one request. It is
// rebuilt from the verified token on every request and never stored.
type Identity struct {
	UserID   string
	Email    string
	Role     StaffRole
	TenantID string
}

// Resolve applies the defaults for tokens issued before roles and tenants
// existed: role falls back to user, tenant to the user's own id.
func Resolve(c *Claims) Identity {
	id := Identity{
		UserID:   c.UserID,
		Email:    c.Email,
		Role:     StaffRole(c.Role),
		TenantID: c.TenantID,
	}
	if id.Role == "" {
		id.Role = RoleUser
	}
	if id.TenantID == "" {
		id.TenantID = id.UserID
	}
	return id
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
