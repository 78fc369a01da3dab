package support

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/audit"
	"github.com/nikhilbhutani/eventdesk/internal/auth"
	"github.com/nikhilbhutani/eventdesk/internal/clock"
	"github.com/nikhilbhutani/eventdesk/internal/events"
	"github.com/nikhilbhutani/eventdesk/internal/models"
	"github.com/nikhilbhutani/eventdesk/internal/tenant"
	"github.com/nikhilbhutani/eventdesk/internal/validation"
)

// Store is the ticket persistence the service needs. *Repository is the
// PostgreSQL implementation.
type Store interface {
	List(ctx context.Context, f ListFilter) ([]models.Ticket, error)
	Get(ctx context.Context, id string) (*models.Ticket, error)
	Messages(ctx context.Context, ticketID string) ([]models.TicketMessage, error)
	Create(ctx context.Context, nt NewTicket) (*models.Ticket, error)
	Apply(ctx context.Context, id string, c Changes) (*models.Ticket, error)
	QueueRows(ctx context.Context, s Scope, since time.Time) ([]QueueRow, error)
}

type MembershipResolver interface {
	Resolve(ctx context.Context, tenantID, userID string) (tenant.Membership, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

type CreateRequest struct {
	Subject  string `json:"subject" validate:"required,min=3,max=200"`
	Message  string `json:"message" validate:"required,min=10,max=10000"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

// Detail is a ticket with its conversation.
type Detail struct {
	Ticket   *models.Ticket         `json:"ticket"`
	Messages []models.TicketMessage `json:"messages"`
}

type Service struct {
	store    Store
	members  MembershipResolver
	notifier events.Notifier
	auditor  Auditor
	clock    clock.Clock
	log      zerolog.Logger
}

func NewService(store Store, members MembershipResolver, notifier events.Notifier, auditor Auditor, clk clock.Clock, log zerolog.Logger) *Service {
	if notifier == nil {
		notifier = events.Nop{}
	}
	if clk == nil {
		clk = clock.System
	}
	return &Service{
		store:    store,
		members:  members,
		notifier: notifier,
		auditor:  auditor,
		clock:    clk,
		log:      log.With().Str("component", "support").Logger(),
	}
}

// ListOwn lists the tickets of the caller's tenant. Staff-only filters are
// ignored.
func (s *Service) ListOwn(ctx context.Context, id auth.Identity, f ListFilter) ([]models.Ticket, error) {
	f.Assigned, f.AssigneeID, f.AwaitingSupport = "", "", false
	if err := validation.Struct(f); err != nil {
		return nil, err
	}
	m, err := s.requireTenant(ctx, id, auth.CapTicketsRead)
	if err != nil {
		return nil, err
	}
	f.Scope = ownScope(id, m)
	return s.store.List(ctx, f)
}

func (s *Service) Create(ctx context.Context, id auth.Identity, req CreateRequest) (*models.Ticket, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.Priority == "" {
		req.Priority = models.TicketPriorityNormal
	}

	m, err := s.requireTenant(ctx, id, auth.CapTicketsCreate)
	if err != nil {
		return nil, err
	}

	// Legacy tenants have no tenants row to point at.
	var tenantID *string
	if !tenant.IsLegacy(m) {
		tid := id.TenantID
		tenantID = &tid
	}

	t, err := s.store.Create(ctx, NewTicket{
		TenantID:  tenantID,
		CreatorID: id.UserID,
		Subject:   req.Subject,
		Priority:  req.Priority,
		Message:   req.Message,
		At:        s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TicketCreated, id, t, models.SenderUser, map[string]interface{}{
		"subject":  t.Subject,
		"priority": t.Priority,
	})
	return t, nil
}

// Get returns a ticket of the caller's tenant with its messages. Tickets the
// caller may not see are reported as not found.
func (s *Service) Get(ctx context.Context, id auth.Identity, ticketID string) (*Detail, error) {
	t, err := s.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	m, err := s.members.Resolve(ctx, id.TenantID, id.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkTicketAccess(id, m, t, auth.CapTicketsRead); err != nil {
		return nil, err
	}
	return s.detail(ctx, t)
}

// Reply applies a customer-side update: a message and, for tenant owners and
// admins, status or priority.
func (s *Service) Reply(ctx context.Context, id auth.Identity, ticketID string, p Patch) (*models.Ticket, error) {
	p.Message = strings.TrimSpace(p.Message)
	if err := validatePatch(p, false); err != nil {
		return nil, err
	}

	t, err := s.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	m, err := s.members.Resolve(ctx, id.TenantID, id.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkTicketAccess(id, m, t, auth.CapTicketsReply); err != nil {
		return nil, err
	}
	if p.Status != "" || p.Priority != "" {
		if err := checkTicketAccess(id, m, t, auth.CapTicketsWrite); err != nil {
			return nil, err
		}
	}
	return s.apply(ctx, id, t, p, models.SenderUser)
}

// ListAll is the staff queue across every tenant.
func (s *Service) ListAll(ctx context.Context, id auth.Identity, f ListFilter) ([]models.Ticket, error) {
	if err := requireStaff(id, auth.CapTicketsReadAll); err != nil {
		return nil, err
	}
	if err := validation.Struct(f); err != nil {
		return nil, err
	}
	if f.TenantID != nil {
		if _, err := uuid.Parse(*f.TenantID); err != nil {
			return nil, apperr.InvalidField("tenantId", "must be a UUID")
		}
	}
	f.CreatorID = ""
	if f.Assigned == AssignedMe {
		f.AssigneeID = id.UserID
	}
	return s.store.List(ctx, f)
}

func (s *Service) GetAny(ctx context.Context, id auth.Identity, ticketID string) (*Detail, error) {
	if err := requireStaff(id, auth.CapTicketsReadAll); err != nil {
		return nil, err
	}
	t, err := s.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, t)
}

// Manage applies a staff update. Messages are sent as support.
func (s *Service) Manage(ctx context.Context, id auth.Identity, ticketID string, p Patch) (*models.Ticket, error) {
	if err := requireStaff(id, auth.CapTicketsManageAll); err != nil {
		return nil, err
	}
	p.Message = strings.TrimSpace(p.Message)
	if err := validatePatch(p, true); err != nil {
		return nil, err
	}
	t, err := s.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, id, t, p, models.SenderSupport)
}

// Stats computes the queue counters over the tickets id can see: every
// ticket for support staff, otherwise the caller's tenant.
func (s *Service) Stats(ctx context.Context, id auth.Identity) (Stats, error) {
	var scope Scope
	if !auth.Authorize(id, nil, nil, auth.CapTicketsStats).Allow {
		m, err := s.requireTenant(ctx, id, auth.CapTicketsRead)
		if err != nil {
			return Stats{}, err
		}
		scope = ownScope(id, m)
	}

	dayStart := StartOfDay(s.clock.Now())
	rows, err := s.store.QueueRows(ctx, scope, dayStart)
	if err != nil {
		return Stats{}, err
	}
	return Tally(rows, id.UserID, dayStart), nil
}

func (s *Service) apply(ctx context.Context, id auth.Identity, t *models.Ticket, p Patch, sender string) (*models.Ticket, error) {
	ch := Transition(t, p, id.UserID, sender, s.clock.Now())
	updated, err := s.store.Apply(ctx, t.ID, ch)
	if err != nil {
		return nil, err
	}

	kind := events.TicketUpdated
	if ch.Message != nil {
		kind = events.TicketReplied
	}
	details := map[string]interface{}{"from_status": t.Status, "to_status": updated.Status}
	if ch.Assignment != nil {
		details["assignee"] = ch.Assignment.UserID
	}
	if ch.Tags != nil {
		details["tags"] = ch.Tags
	}
	s.emit(ctx, kind, id, updated, sender, details)
	return updated, nil
}

func (s *Service) detail(ctx context.Context, t *models.Ticket) (*Detail, error) {
	msgs, err := s.store.Messages(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Ticket: t, Messages: msgs}, nil
}

// requireTenant resolves the caller's membership in their own tenant and
// checks c against it.
func (s *Service) requireTenant(ctx context.Context, id auth.Identity, c auth.Capability) (tenant.Membership, error) {
	m, err := s.members.Resolve(ctx, id.TenantID, id.UserID)
	if err != nil {
		return nil, err
	}
	own := id.TenantID
	if !auth.Authorize(id, m, &own, c).Allow {
		return nil, apperr.Forbidden(string(c))
	}
	return m, nil
}

// emit publishes the event and writes the audit row. Neither failure is
// returned: the ticket change is already committed.
func (s *Service) emit(ctx context.Context, kind string, id auth.Identity, t *models.Ticket, sender string, details map[string]interface{}) {
	e := events.Event{
		ID:         uuid.NewString(),
		Type:       kind,
		TicketID:   t.ID,
		TenantID:   t.TenantID,
		ActorID:    id.UserID,
		Status:     t.Status,
		Sender:     sender,
		OccurredAt: s.clock.Now(),
	}
	if err := s.notifier.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event", kind).Str("ticket_id", t.ID).Msg("publish ticket event")
	}

	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, audit.Entry{
		TenantID:     t.TenantID,
		UserID:       id.UserID,
		Action:       kind,
		ResourceType: audit.ResourceTicket,
		ResourceID:   t.ID,
		Details:      details,
	}); err != nil {
		s.log.Warn().Err(err).Str("action", kind).Str("ticket_id", t.ID).Msg("record audit entry")
	}
}

func ownScope(id auth.Identity, m tenant.Membership) Scope {
	if tenant.IsLegacy(m) {
		return Scope{CreatorID: id.UserID}
	}
	tid := id.TenantID
	return Scope{TenantID: &tid, CreatorID: id.UserID}
}

func requireStaff(id auth.Identity, c auth.Capability) error {
	if !auth.Authorize(id, nil, nil, c).Allow {
		return apperr.Forbidden(string(c))
	}
	return nil
}

// checkTicketAccess applies the gate to one ticket. A tenant-less ticket is
// visible only to its creator. Tickets outside the caller's tenant are
// reported as not found.
func checkTicketAccess(id auth.Identity, m tenant.Membership, t *models.Ticket, c auth.Capability) error {
	if t.TenantID == nil {
		if t.CreatorID == id.UserID {
			return nil
		}
		return ErrTicketNotFound
	}
	d := auth.Authorize(id, m, t.TenantID, c)
	switch {
	case d.Allow:
		return nil
	case d.Reason == auth.ReasonTenantMismatch, d.Reason == auth.ReasonNoMembership:
		return ErrTicketNotFound
	default:
		return apperr.Forbidden(string(c))
	}
}

// validatePatch checks enums and, for customer updates, rejects the fields
// only staff may set.
func validatePatch(p Patch, staff bool) error {
	if !staff {
		var fields []apperr.FieldError
		if p.AssignToMe {
			fields = append(fields, apperr.FieldError{Field: "assignToMe", Message: "is not allowed"})
		}
		if p.Unassign {
			fields = append(fields, apperr.FieldError{Field: "unassign", Message: "is not allowed"})
		}
		if p.AssignedToUserID != "" {
			fields = append(fields, apperr.FieldError{Field: "assignedToUserId", Message: "is not allowed"})
		}
		if p.Tags != nil {
			fields = append(fields, apperr.FieldError{Field: "tags", Message: "is not allowed"})
		}
		if len(fields) > 0 {
			return apperr.Invalid(fields...)
		}
	}
	if err := validation.Struct(p); err != nil {
		return err
	}
	if p.Empty() {
		return apperr.InvalidField("message", "is required when nothing else changes")
	}
	return nil
}
