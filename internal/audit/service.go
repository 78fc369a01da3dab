package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/database"
	"github.com/nikhilbhutani/eventdesk/internal/models"
)

const ResourceTicket = "support_ticket"

type Service struct {
	db database.Querier
}

func NewService(db database.Querier) *Service {
	return &Service{db: db}
}

type Entry struct {
	TenantID     *string
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]interface{}
}

// Record writes one audit row. The client address is taken from ctx.
func (s *Service) Record(ctx context.Context, e Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var ip *netip.Addr
	if raw := ClientIP(ctx); raw != "" {
		if parsed, err := netip.ParseAddr(raw); err == nil {
			ip = &parsed
		}
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_logs (tenant_id, user_id, action, resource_type, resource_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.TenantID, e.UserID, e.Action, e.ResourceType, e.ResourceID, details, ip,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

type Query struct {
	TenantID   *string
	ResourceID string
	Action     string
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

func (s *Service) List(ctx context.Context, q Query) ([]models.AuditLog, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}

	query := `SELECT id, tenant_id, user_id, action, resource_type, resource_id, details,
			         COALESCE(host(ip_address), ''), created_at
			  FROM audit_logs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if q.TenantID != nil {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, *q.TenantID)
		argIdx++
	}
	if q.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", argIdx)
		args = append(args, q.ResourceID)
		argIdx++
	}
	if q.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, q.Action)
		argIdx++
	}
	if q.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *q.StartDate)
		argIdx++
	}
	if q.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *q.EndDate)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &l.Details, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, apperr.Internal("scan audit log", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return logs, nil
}

func classify(err error) error {
	if database.IsMissingSchema(err) {
		return apperr.SchemaNotReady(database.MigrationAuditLogs)
	}
	return apperr.Internal("query audit logs", err)
}

type contextKey string

const clientIPKey contextKey = "client_ip"

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
