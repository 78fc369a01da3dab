package models

import "time"

type Tenant struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type TenantMember struct {
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
