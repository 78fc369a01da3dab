package support

import (
	"strconv"
	"strings"

	"github.com/nikhilbhutani/eventdesk/internal/models"
)

// Scope restricts which tickets a query may see. The zero Scope sees every
// ticket and is only used for global staff.
type Scope struct {
	// TenantID limits results to one tenant.
	TenantID *string
	// CreatorID limits results to one creator. Combined with TenantID it
	// also admits the creator's tenant-less tickets from before multi-tenancy.
	CreatorID string
}

// likeEscaper makes a search term match literally inside an ILIKE pattern.
// Backslash is the default LIKE escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

const (
	AssignedMe         = "me"
	AssignedUnassigned = "unassigned"
)

type ListFilter struct {
	Scope    `json:"-"`
	Status   string `json:"status" validate:"omitempty,oneof=open pending resolved closed"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	// Assigned is "", "me" or "unassigned". "me" matches AssigneeID.
	Assigned        string `json:"assigned" validate:"omitempty,oneof=me unassigned"`
	AssigneeID      string `json:"-"`
	AwaitingSupport bool   `json:"awaiting"`
	Query           string `json:"q" validate:"max=200"`
	Tag             string `json:"tag" validate:"max=50"`
	Limit           int    `json:"limit"`
	Offset          int    `json:"offset"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// minLevel is the oldest projection that can express f.
func (f ListFilter) minLevel() Level {
	switch {
	case f.Tag != "" || f.AwaitingSupport:
		return LevelSLATags
	case f.Assigned != "":
		return LevelAssignment
	default:
		return LevelBase
	}
}

const baseColumns = `t.id, t.tenant_id, t.creator_id, COALESCE(c.name, ''), COALESCE(c.email, ''),
	t.subject, t.status, t.priority, t.created_at, t.updated_at`

const assignmentColumns = `, t.assigned_to_user_id, t.assigned_at, COALESCE(tn.name, ''),
	COALESCE(a.name, ''), COALESCE(a.email, '')`

const slaColumns = `, COALESCE(t.tags, '{}'), t.last_message_at, COALESCE(t.last_message_sender, '')`

// selectFrom returns the SELECT list and FROM clause for a level.
func selectFrom(l Level) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(baseColumns)
	if l >= LevelAssignment {
		b.WriteString(assignmentColumns)
	}
	if l >= LevelSLATags {
		b.WriteString(slaColumns)
	}
	b.WriteString("\n\tFROM support_tickets t\n\tLEFT JOIN users c ON c.id = t.creator_id")
	if l >= LevelAssignment {
		b.WriteString("\n\tLEFT JOIN tenants tn ON tn.id = t.tenant_id")
		b.WriteString("\n\tLEFT JOIN users a ON a.id = t.assigned_to_user_id")
	}
	return b.String()
}

func orderBy(l Level) string {
	if l >= LevelSLATags {
		return "ORDER BY t.last_message_at DESC NULLS LAST, t.updated_at DESC"
	}
	return "ORDER BY t.updated_at DESC"
}

// scanDest returns scan targets matching selectFrom(l).
func scanDest(l Level, t *models.Ticket) []any {
	dest := []any{
		&t.ID, &t.TenantID, &t.CreatorID, &t.CreatorName, &t.CreatorEmail,
		&t.Subject, &t.Status, &t.Priority, &t.CreatedAt, &t.UpdatedAt,
	}
	if l >= LevelAssignment {
		dest = append(dest, &t.AssigneeID, &t.AssignedAt, &t.TenantName, &t.AssigneeName, &t.AssigneeEmail)
	}
	if l >= LevelSLATags {
		dest = append(dest, &t.Tags, &t.LastMessageAt, &t.LastMessageSender)
	}
	return dest
}

// whereBuilder accumulates AND-ed conditions with positional args.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *whereBuilder) add(cond string) { w.conds = append(w.conds, cond) }

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

func (w *whereBuilder) scope(s Scope) {
	switch {
	case s.TenantID != nil && s.CreatorID != "":
		w.add("(t.tenant_id = " + w.arg(*s.TenantID) + " OR (t.tenant_id IS NULL AND t.creator_id = " + w.arg(s.CreatorID) + "))")
	case s.TenantID != nil:
		w.add("t.tenant_id = " + w.arg(*s.TenantID))
	case s.CreatorID != "":
		w.add("t.creator_id = " + w.arg(s.CreatorID))
	}
}

// listQuery builds the list statement for f at level l. It returns a
// needsLevelError when f uses a filter l cannot express.
func listQuery(l Level, f ListFilter) (string, []any, error) {
	if need := f.minLevel(); l < need {
		return "", nil, needs(need)
	}

	var w whereBuilder
	w.scope(f.Scope)
	if f.Status != "" {
		w.add("t.status = " + w.arg(f.Status))
	}
	if f.Priority != "" {
		w.add("t.priority = " + w.arg(f.Priority))
	}
	switch f.Assigned {
	case AssignedMe:
		w.add("t.assigned_to_user_id = " + w.arg(f.AssigneeID))
	case AssignedUnassigned:
		w.add("t.assigned_to_user_id IS NULL")
	}
	if f.AwaitingSupport {
		w.add("t.last_message_sender = " + w.arg(models.SenderUser))
		w.add("t.status NOT IN ('resolved', 'closed')")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		w.add("t.subject ILIKE " + w.arg("%"+likeEscaper.Replace(q)+"%"))
	}
	if f.Tag != "" {
		w.add(w.arg(f.Tag) + " = ANY(t.tags)")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	sql := selectFrom(l) + "\n\t" + w.sql() + "\n\t" + orderBy(l) +
		"\n\tLIMIT " + w.arg(limit) + " OFFSET " + w.arg(offset)
	return sql, w.args, nil
}
