package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/database"
	"github.com/nikhilbhutani/eventdesk/internal/models"
)

var ErrTenantNotFound = apperr.NotFound("tenant")

type Service struct {
	db database.Querier
}

func NewService(db database.Querier) *Service {
	return &Service{db: db}
}

// GetByID returns one tenant with its member count.
func (s *Service) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTenantNotFound
	}
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT t.id, t.name, t.created_at,
		        (SELECT COUNT(*) FROM tenant_members m WHERE m.tenant_id = t.id)
		 FROM tenants t WHERE t.id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.MemberCount)
	switch {
	case err == nil:
		return &t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrTenantNotFound
	case database.IsMissingSchema(err):
		return nil, apperr.SchemaNotReady(database.MigrationMultitenantRBAC)
	default:
		return nil, apperr.Internal("get tenant", err)
	}
}

// List returns every tenant, newest first. It is a staff-only view.
func (s *Service) List(ctx context.Context, limit int) ([]models.Tenant, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	rows, err := s.db.Query(ctx,
		`SELECT t.id, t.name, t.created_at, COUNT(m.user_id)
		 FROM tenants t
		 LEFT JOIN tenant_members m ON m.tenant_id = t.id
		 GROUP BY t.id, t.name, t.created_at
		 ORDER BY t.created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		if database.IsMissingSchema(err) {
			return nil, apperr.SchemaNotReady(database.MigrationMultitenantRBAC)
		}
		return nil, apperr.Internal("list tenants", err)
	}
	defer rows.Close()

	tenants := []models.Tenant{}
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.MemberCount); err != nil {
			return nil, apperr.Internal("scan tenant", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		if database.IsMissingSchema(err) {
			return nil, apperr.SchemaNotReady(database.MigrationMultitenantRBAC)
		}
		return nil, apperr.Internal("list tenants", err)
	}
	return tenants, nil
}

// CreateOwned creates the tenant a new user owns. The tenant id is the
// owner's user id, so the same id keeps working as a legacy tenant before
// the multitenant migration runs. Callers treat a missing-schema error as
// non-fatal.
func (s *Service) CreateOwned(ctx context.Context, ownerID, name string) error {
	if _, err := s.db.Exec(ctx,
		"INSERT INTO tenants (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
		ownerID, name,
	); err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO tenant_members (tenant_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, user_id) DO NOTHING`,
		ownerID, ownerID, string(RoleOwner),
	); err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}
	if _, err := s.db.Exec(ctx,
		"UPDATE users SET default_tenant_id = $1 WHERE id = $2",
		ownerID, ownerID,
	); err != nil {
		return fmt.Errorf("set default tenant: %w", err)
	}
	return nil
}
