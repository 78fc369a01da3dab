package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/audit"
	"github.com/nikhilbhutani/eventdesk/internal/models"
	"github.com/nikhilbhutani/eventdesk/internal/support"
)

type TenantLister interface {
	List(ctx context.Context, limit int) ([]models.Tenant, error)
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
}

type AuditLister interface {
	List(ctx context.Context, q audit.Query) ([]models.AuditLog, error)
}

// AdminHandler serves the staff console. Routes are gated by capability in
// the router; ticket operations re-check inside the service.
type AdminHandler struct {
	tickets Tickets
	tenants TenantLister
	audit   AuditLister
}

func NewAdminHandler(tickets Tickets, tenants TenantLister, auditLog AuditLister) *AdminHandler {
	return &AdminHandler{tickets: tickets, tenants: tenants, audit: auditLog}
}

func (h *AdminHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := parseListFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tickets, err := h.tickets.ListAll(r.Context(), id, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets, "count": len(tickets)})
}

func (h *AdminHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.tickets.GetAny(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p support.Patch
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.tickets.Manage(r.Context(), id, chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ticket": t})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.tickets.Stats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) Tenants(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tenants, err := h.tenants.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tenants": tenants, "count": len(tenants)})
}

func (h *AdminHandler) Tenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := audit.Query{
		Action:     qs.Get("action"),
		ResourceID: qs.Get("resourceId"),
	}
	if tid := qs.Get("tenantId"); tid != "" {
		if _, err := uuid.Parse(tid); err != nil {
			writeError(w, r, apperr.InvalidField("tenantId", "must be a UUID"))
			return
		}
		q.TenantID = &tid
	}

	var err error
	if q.Limit, err = intParam(qs.Get("limit"), "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if q.Offset, err = intParam(qs.Get("offset"), "offset"); err != nil {
		writeError(w, r, err)
		return
	}
	if q.StartDate, err = timeParam(qs.Get("start_date"), "start_date"); err != nil {
		writeError(w, r, err)
		return
	}
	if q.EndDate, err = timeParam(qs.Get("end_date"), "end_date"); err != nil {
		writeError(w, r, err)
		return
	}

	logs, err := h.audit.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": logs, "count": len(logs)})
}

func timeParam(v, name string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperr.InvalidField(name, "must be an RFC 3339 timestamp")
	}
	return &t, nil
}
