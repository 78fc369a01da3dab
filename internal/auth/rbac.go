package auth

import (
	"github.com/nikhilbhutani/eventdesk/internal/tenant"
)

type Capability string

const (
	// Global staff capabilities, granted by StaffRole alone.
	CapTicketsReadAll   Capability = "tickets:read_all"
	CapTicketsManageAll Capability = "tickets:manage_all"
	CapTicketsStats     Capability = "tickets:stats"
	CapTenantsReadAll   Capability = "tenants:read_all"
	CapFinanceRead      Capability = "finance:read"
	CapAuditRead        Capability = "audit:read"

	// Tenant-scoped capabilities, granted by membership in the resource's tenant.
	CapTicketsRead   Capability = "tickets:read"
	CapTicketsCreate Capability = "tickets:create"
	CapTicketsReply  Capability = "tickets:reply"
	CapTicketsWrite  Capability = "tickets:write"
	CapTenantManage  Capability = "tenant:manage"
)

var staffCapabilities = map[Capability][]StaffRole{
	CapTicketsReadAll:   {RoleAdmin, RoleSupport},
	CapTicketsManageAll: {RoleAdmin, RoleSupport},
	CapTicketsStats:     {RoleAdmin, RoleSupport},
	CapTenantsReadAll:   {RoleAdmin},
	CapFinanceRead:      {RoleAdmin, RoleFinance},
	CapAuditRead:        {RoleAdmin},
}

// tenantCapabilities lists the membership roles allowed per capability; nil
// means any membership will do.
var tenantCapabilities = map[Capability][]tenant.Role{
	CapTicketsRead:   nil,
	CapTicketsCreate: nil,
	CapTicketsReply:  nil,
	CapTicketsWrite:  {tenant.RoleOwner, tenant.RoleAdmin},
	CapTenantManage:  {tenant.RoleOwner, tenant.RoleAdmin},
}

// IsStaffCapability reports whether c is granted by global role.
func IsStaffCapability(c Capability) bool {
	_, ok := staffCapabilities[c]
	return ok
}

type Reason string

const (
	ReasonRole              Reason = "role"
	ReasonInsufficientRole  Reason = "insufficient_role"
	ReasonTenantMismatch    Reason = "tenant_mismatch"
	ReasonNoMembership      Reason = "no_membership"
	ReasonUnknownCapability Reason = "unknown_capability"
)

// Decision is the gate's verdict. Reason is for logs only; callers turn a
// tenant mismatch into not-found so tenant existence does not leak.
type Decision struct {
	Allow  bool
	Reason Reason
}

func allow() Decision        { return Decision{Allow: true, Reason: ReasonRole} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// Authorize decides whether id may exercise c on a resource owned by
// resourceTenantID (nil for tenant-less resources). m is id's membership in
// id.TenantID. Authorize is pure.
func Authorize(id Identity, m tenant.Membership, resourceTenantID *string, c Capability) Decision {
	if roles, ok := staffCapabilities[c]; ok {
		for _, r := range roles {
			if id.Role == r {
				return allow()
			}
		}
		return deny(ReasonInsufficientRole)
	}

	roles, ok := tenantCapabilities[c]
	if !ok {
		return deny(ReasonUnknownCapability)
	}
	if resourceTenantID != nil && *resourceTenantID != id.TenantID {
		return deny(ReasonTenantMismatch)
	}
	if m == nil {
		return deny(ReasonNoMembership)
	}
	if roles == nil {
		return allow()
	}
	have := m.MemberRole()
	if tenant.IsLegacy(m) {
		have = tenant.RoleOwner
	}
	for _, r := range roles {
		if have == r {
			return allow()
		}
	}
	return deny(ReasonInsufficientRole)
}
