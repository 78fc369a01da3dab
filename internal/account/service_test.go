package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/auth"
	"github.com/nikhilbhutani/eventdesk/internal/models"
)

const secret = "account-test-secret"

type memUsers struct {
	byEmail map[string]*models.User
}

func newMemUsers() *memUsers { return &memUsers{byEmail: map[string]*models.User{}} }

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	u.CreatedAt = time.Now()
	cp := *u
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *memUsers) ByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrUserNotFound
}

func (m *memUsers) ByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

type fakeTenants struct {
	err   error
	owned []string
	users *memUsers
}

func (f *fakeTenants) CreateOwned(_ context.Context, ownerID, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.owned = append(f.owned, ownerID)
	for _, u := range f.users.byEmail {
		if u.ID == ownerID {
			u.DefaultTenantID = ownerID
		}
	}
	return nil
}

func newTestService(tenantErr error) (*Service, *memUsers, *fakeTenants) {
	users := newMemUsers()
	tenants := &fakeTenants{err: tenantErr, users: users}
	svc := NewService(users, tenants, auth.NewIssuer(secret, 7*24*time.Hour), "letmein", zerolog.Nop())
	return svc, users, tenants
}

func TestSignupProvisionsTenant(t *testing.T) {
	svc, users, tenants := newTestService(nil)

	p, err := svc.Signup(context.Background(), SignupRequest{Name: " Ana ", Email: "Ana@Example.com ", Password: "hunter22"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Email != "ana@example.com" || p.Name != "Ana" || p.Role != "user" || p.DefaultTenantID != p.ID {
		t.Errorf("profile = %+v", p)
	}
	if len(tenants.owned) != 1 || tenants.owned[0] != p.ID {
		t.Errorf("owned tenants = %v", tenants.owned)
	}
	stored := users.byEmail["ana@example.com"]
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")) != nil {
		t.Error("stored password is not a bcrypt hash of the input")
	}
}

func TestSignupSurvivesMissingTenantSchema(t *testing.T) {
	svc, _, _ := newTestService(&pgconn.PgError{Code: "42P01", Message: `relation "tenants" does not exist`})

	p, err := svc.Signup(context.Background(), SignupRequest{Name: "Bo", Email: "bo@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if p.DefaultTenantID != p.ID {
		t.Errorf("default tenant = %q, want user id", p.DefaultTenantID)
	}
}

func TestSignupRejectsDuplicateAndInvalid(t *testing.T) {
	svc, _, _ := newTestService(nil)
	ctx := context.Background()
	if _, err := svc.Signup(ctx, SignupRequest{Name: "Cy", Email: "cy@example.com", Password: "hunter22"}); err != nil {
		t.Fatal(err)
	}

	tests := []SignupRequest{
		{Name: "Cy", Email: "CY@example.com", Password: "hunter22"},
		{Name: "Cy", Email: "not-an-email", Password: "hunter22"},
		{Name: "Cy", Email: "cy2@example.com", Password: "123"},
		{Email: "cy3@example.com", Password: "hunter22"},
	}
	for _, req := range tests {
		_, err := svc.Signup(ctx, req)
		var inv *apperr.ValidationError
		if !errors.As(err, &inv) {
			t.Errorf("Signup(%+v) err = %v, want validation error", req, err)
		}
	}
}

func TestLogin(t *testing.T) {
	svc, users, _ := newTestService(nil)
	ctx := context.Background()
	p, err := svc.Signup(ctx, SignupRequest{Name: "Di", Email: "di@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatal(err)
	}

	sess, err := svc.Login(ctx, LoginRequest{Email: "DI@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := auth.NewVerifier(secret).Verify(sess.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.UserID != p.ID || claims.TenantID != p.ID || claims.Role != "user" {
		t.Errorf("claims = %+v", claims)
	}

	for _, req := range []LoginRequest{
		{Email: "di@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "hunter22"},
	} {
		_, err := svc.Login(ctx, req)
		var authn *apperr.AuthenticationError
		if !errors.As(err, &authn) {
			t.Errorf("Login(%s) err = %v, want unauthenticated", req.Email, err)
		}
	}

	// Users without a default tenant log into their own.
	users.byEmail["di@example.com"].DefaultTenantID = ""
	sess, err = svc.Login(ctx, LoginRequest{Email: "di@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatal(err)
	}
	if sess.User.DefaultTenantID != p.ID {
		t.Errorf("default tenant = %q, want %q", sess.User.DefaultTenantID, p.ID)
	}
}

func TestAdminLogin(t *testing.T) {
	svc, users, _ := newTestService(nil)
	ctx := context.Background()
	if _, err := svc.Signup(ctx, SignupRequest{Name: "Ed", Email: "ed@example.com", Password: "hunter22"}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.AdminLogin(ctx, AdminLoginRequest{Email: "ed@example.com", Password: "hunter22", AdminCode: "nope"})
	var authn *apperr.AuthenticationError
	if !errors.As(err, &authn) {
		t.Errorf("wrong code: err = %v", err)
	}

	_, err = svc.AdminLogin(ctx, AdminLoginRequest{Email: "ed@example.com", Password: "hunter22", AdminCode: "letmein"})
	var authz *apperr.AuthorizationError
	if !errors.As(err, &authz) {
		t.Errorf("customer: err = %v, want forbidden", err)
	}

	users.byEmail["ed@example.com"].Role = "support"
	sess, err := svc.AdminLogin(ctx, AdminLoginRequest{Email: "ed@example.com", Password: "hunter22", AdminCode: "letmein"})
	if err != nil {
		t.Fatal(err)
	}
	if sess.User.Role != "support" {
		t.Errorf("role = %q", sess.User.Role)
	}
}

func TestAdminLoginDisabledWithoutCode(t *testing.T) {
	svc := NewService(newMemUsers(), &fakeTenants{}, auth.NewIssuer(secret, time.Hour), "", zerolog.Nop())
	_, err := svc.AdminLogin(context.Background(), AdminLoginRequest{Email: "a@example.com", Password: "x", AdminCode: "x"})
	var internal *apperr.InternalError
	if !errors.As(err, &internal) {
		t.Errorf("err = %v, want internal", err)
	}
}

func TestMe(t *testing.T) {
	svc, _, _ := newTestService(nil)
	ctx := context.Background()
	p, err := svc.Signup(ctx, SignupRequest{Name: "Flo", Email: "flo@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := svc.Me(ctx, auth.Identity{UserID: p.ID})
	if err != nil {
		t.Fatal(err)
	}
	if *got != *p {
		t.Errorf("Me = %+v, want %+v", got, p)
	}

	_, err = svc.Me(ctx, auth.Identity{UserID: "missing"})
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("err = %v, want not found", err)
	}
}
