// Package account handles signup, login and the caller's own profile.
package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/auth"
	"github.com/nikhilbhutani/eventdesk/internal/database"
	"github.com/nikhilbhutani/eventdesk/internal/models"
	"github.com/nikhilbhutani/eventdesk/internal/validation"
)

type Store interface {
	Create(ctx context.Context, u *models.User) error
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id string) (*models.User, error)
}

// TenantCreator provisions the tenant a new user owns.
type TenantCreator interface {
	CreateOwned(ctx context.Context, ownerID, name string) error
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	AdminCode string `json:"adminCode" validate:"required"`
}

// Profile is a user with the role and tenant defaults applied.
type Profile struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	DefaultTenantID string `json:"defaultTenantId"`
}

// Session is the result of a successful login.
type Session struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expiresAt"`
	User    Profile   `json:"user"`
}

type Service struct {
	users     Store
	tenants   TenantCreator
	issuer    *auth.Issuer
	adminCode string
	log       zerolog.Logger
}

func NewService(users Store, tenants TenantCreator, issuer *auth.Issuer, adminCode string, log zerolog.Logger) *Service {
	return &Service{
		users:     users,
		tenants:   tenants,
		issuer:    issuer,
		adminCode: adminCode,
		log:       log.With().Str("component", "account").Logger(),
	}
}

// Signup creates the user and, when the schema allows it, the tenant they
// own. Tenant provisioning failures never fail the signup.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Profile, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	u := &models.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         string(auth.RoleUser),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperr.InvalidField("email", "is already registered")
		}
		return nil, apperr.Internal("create user", err)
	}

	if err := s.tenants.CreateOwned(ctx, u.ID, u.Name); err != nil {
		if database.IsMissingSchema(err) {
			s.log.Info().Str("user_id", u.ID).Msg("multitenant schema missing, signup continues without tenant")
		} else {
			s.log.Warn().Err(err).Str("user_id", u.ID).Msg("tenant provisioning failed")
		}
	} else {
		u.DefaultTenantID = u.ID
	}

	p := profile(u)
	return &p, nil
}

// Login checks the password and issues a session token. Unknown emails and
// wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	u, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// AdminLogin is Login for the staff console. It also requires the shared
// admin access code and a staff role.
func (s *Service) AdminLogin(ctx context.Context, req AdminLoginRequest) (*Session, error) {
	if s.adminCode == "" {
		return nil, apperr.Internal("admin login", errors.New("admin access code not configured"))
	}
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(req.AdminCode), []byte(s.adminCode)) != 1 {
		return nil, apperr.Unauthenticated()
	}
	u, err := s.authenticate(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		return nil, err
	}
	if !auth.StaffRole(roleOf(u)).IsStaff() {
		return nil, apperr.Forbidden("")
	}
	return s.issue(u)
}

// Me returns the caller's profile.
func (s *Service) Me(ctx context.Context, id auth.Identity) (*Profile, error) {
	u, err := s.users.ByID(ctx, id.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, apperr.Internal("load profile", err)
	}
	p := profile(u)
	return &p, nil
}

func (s *Service) authenticate(ctx context.Context, req LoginRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.users.ByEmail(ctx, req.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.Unauthenticated()
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, apperr.Unauthenticated()
	}
	return u, nil
}

func (s *Service) issue(u *models.User) (*Session, error) {
	p := profile(u)
	token, exp, err := s.issuer.Issue(p.ID, p.Email, p.DefaultTenantID, p.Role)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &Session{Token: token, Expires: exp, User: p}, nil
}

func profile(u *models.User) Profile {
	tenantID := u.DefaultTenantID
	if tenantID == "" {
		tenantID = u.ID
	}
	return Profile{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Role:            roleOf(u),
		DefaultTenantID: tenantID,
	}
}

func roleOf(u *models.User) string {
	if u.Role == "" {
		return string(auth.RoleUser)
	}
	return u.Role
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
