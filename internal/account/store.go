package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikhilbhutani/eventdesk/internal/database"
	"github.com/nikhilbhutani/eventdesk/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const codeUniqueViolation = "23505"

// PGStore reads and writes the users table. It tolerates databases that
// predate users.default_tenant_id.
type PGStore struct {
	db database.Querier
}

func NewPGStore(db database.Querier) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, u *models.User) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (id, name, email, password, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
	).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PGStore) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.one(ctx, "email", email)
}

func (s *PGStore) ByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	return s.one(ctx, "id", id)
}

func (s *PGStore) one(ctx context.Context, col string, v string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, name, email, password, role, COALESCE(default_tenant_id::text, ''), created_at
		 FROM users WHERE `+col+` = $1`, v,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.DefaultTenantID, &u.CreatedAt)
	if database.IsMissingColumn(err) {
		u = models.User{}
		err = s.db.QueryRow(ctx,
			`SELECT id, name, email, password, role, created_at
			 FROM users WHERE `+col+` = $1`, v,
		).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", col, err)
	}
	return &u, nil
}
