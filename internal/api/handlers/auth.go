package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nikhilbhutani/eventdesk/internal/account"
	"github.com/nikhilbhutani/eventdesk/internal/auth"
)

type Accounts interface {
	Signup(ctx context.Context, req account.SignupRequest) (*account.Profile, error)
	Login(ctx context.Context, req account.LoginRequest) (*account.Session, error)
	AdminLogin(ctx context.Context, req account.AdminLoginRequest) (*account.Session, error)
	Me(ctx context.Context, id auth.Identity) (*account.Profile, error)
}

type AuthHandler struct {
	accounts   Accounts
	cookieName string
	secure     bool
}

func NewAuthHandler(accounts Accounts, cookieName string, secure bool) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookieName: cookieName, secure: secure}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req account.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.accounts.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": p})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req account.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.startSession(w, sess)
}

func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req account.AdminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.accounts.AdminLogin(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.startSession(w, sess)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieName, h.secure)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.accounts.Me(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": p})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, sess *account.Session) {
	maxAge := int(time.Until(sess.Expires).Seconds())
	auth.SetSessionCookie(w, h.cookieName, sess.Token, maxAge, h.secure)
	writeJSON(w, http.StatusOK, sess)
}
