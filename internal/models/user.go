package models

import "time"

type User struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Email           string    `json:"email" db:"email"`
	PasswordHash    string    `json:"-" db:"password"`
	Role            string    `json:"role" db:"role"`
	DefaultTenantID string    `json:"default_tenant_id,omitempty" db:"default_tenant_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
