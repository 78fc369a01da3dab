package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/auth"
	"github.com/nikhilbhutani/eventdesk/internal/models"
	"github.com/nikhilbhutani/eventdesk/internal/support"
)

// Tickets is the support service as the HTTP layer sees it.
type Tickets interface {
	ListOwn(ctx context.Context, id auth.Identity, f support.ListFilter) ([]models.Ticket, error)
	Create(ctx context.Context, id auth.Identity, req support.CreateRequest) (*models.Ticket, error)
	Get(ctx context.Context, id auth.Identity, ticketID string) (*support.Detail, error)
	Reply(ctx context.Context, id auth.Identity, ticketID string, p support.Patch) (*models.Ticket, error)
	ListAll(ctx context.Context, id auth.Identity, f support.ListFilter) ([]models.Ticket, error)
	GetAny(ctx context.Context, id auth.Identity, ticketID string) (*support.Detail, error)
	Manage(ctx context.Context, id auth.Identity, ticketID string, p support.Patch) (*models.Ticket, error)
	Stats(ctx context.Context, id auth.Identity) (support.Stats, error)
}

// TicketHandler serves the customer side of support.
type TicketHandler struct {
	tickets Tickets
}

func NewTicketHandler(tickets Tickets) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
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
	tickets, err := h.tickets.ListOwn(r.Context(), id, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets, "count": len(tickets)})
}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req support.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.tickets.Create(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"ticket": t})
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.tickets.Get(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *TicketHandler) Reply(w http.ResponseWriter, r *http.Request) {
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
	t, err := h.tickets.Reply(r.Context(), id, chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ticket": t})
}

// parseListFilter reads the list query string. Scope is left to the service.
func parseListFilter(r *http.Request) (support.ListFilter, error) {
	q := r.URL.Query()
	f := support.ListFilter{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Assigned: q.Get("assigned"),
		Query:    q.Get("q"),
		Tag:      q.Get("tag"),
	}
	if tid := q.Get("tenantId"); tid != "" {
		f.TenantID = &tid
	}
	switch q.Get("awaiting") {
	case "":
	case "support":
		f.AwaitingSupport = true
	default:
		return f, apperr.InvalidField("awaiting", "must be one of: support")
	}

	var err error
	if f.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.InvalidField(name, "must be a non-negative integer")
	}
	return n, nil
}
