package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           string          `json:"id" db:"id"`
	TenantID     *string         `json:"tenant_id,omitempty" db:"tenant_id"`
	UserID       string          `json:"user_id" db:"user_id"`
	Action       string          `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   string          `json:"resource_id" db:"resource_id"`
	Details      json.RawMessage `json:"details" db:"details"`
	IPAddress    string          `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
