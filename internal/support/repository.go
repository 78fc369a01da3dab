package support

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/database"
	"github.com/nikhilbhutani/eventdesk/internal/models"
)

var ErrTicketNotFound = apperr.NotFound("ticket")

// NewTicket is a ticket together with its first message.
type NewTicket struct {
	TenantID  *string
	CreatorID string
	Subject   string
	Priority  string
	Message   string
	At        time.Time
}

// Repository reads and writes tickets against whatever subset of the ticket
// migrations the database has. Every operation resolves a schema level
// first; raw driver errors never leave this type.
type Repository struct {
	db    database.TxQuerier
	probe prober
}

func NewRepository(db database.TxQuerier, marker MarkerSource, log zerolog.Logger) *Repository {
	return &Repository{
		db:    db,
		probe: prober{marker: marker, log: log.With().Str("component", "ticket_repository").Logger()},
	}
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Ticket, error) {
	var tickets []models.Ticket
	_, err := r.probe.run(ctx, "list tickets", func(l Level) error {
		sql, args, err := listQuery(l, f)
		if err != nil {
			return err
		}
		rows, err := r.db.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		tickets = []models.Ticket{}
		for rows.Next() {
			var t models.Ticket
			if err := rows.Scan(scanDest(l, &t)...); err != nil {
				return fmt.Errorf("scan ticket: %w", err)
			}
			tickets = append(tickets, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTicketNotFound
	}

	var t models.Ticket
	_, err := r.probe.run(ctx, "get ticket", func(l Level) error {
		t = models.Ticket{}
		err := r.db.QueryRow(ctx, selectFrom(l)+"\n\tWHERE t.id = $1", id).Scan(scanDest(l, &t)...)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTicketNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Messages returns the ticket's conversation, oldest first.
func (r *Repository) Messages(ctx context.Context, ticketID string) ([]models.TicketMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, ticket_id, sender, message, created_at
		 FROM support_ticket_messages
		 WHERE ticket_id = $1
		 ORDER BY created_at ASC`, ticketID,
	)
	if err != nil {
		return nil, r.classify("list ticket messages", err)
	}
	defer rows.Close()

	msgs := []models.TicketMessage{}
	for rows.Next() {
		var m models.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.Sender, &m.Message, &m.CreatedAt); err != nil {
			return nil, apperr.Internal("scan ticket message", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, r.classify("list ticket messages", err)
	}
	return msgs, nil
}

// Create inserts the ticket and its first message in one transaction.
func (r *Repository) Create(ctx context.Context, nt NewTicket) (*models.Ticket, error) {
	id := uuid.NewString()
	_, err := r.probe.run(ctx, "create ticket", func(l Level) error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			if l >= LevelSLATags {
				_, err := tx.Exec(ctx,
					`INSERT INTO support_tickets
					   (id, tenant_id, creator_id, subject, status, priority, last_message_at, last_message_sender, created_at, updated_at)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $7, $7)`,
					id, nt.TenantID, nt.CreatorID, nt.Subject, models.TicketStatusOpen, nt.Priority, nt.At, models.SenderUser,
				)
				if err != nil {
					return err
				}
			} else {
				_, err := tx.Exec(ctx,
					`INSERT INTO support_tickets
					   (id, tenant_id, creator_id, subject, status, priority, created_at, updated_at)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
					id, nt.TenantID, nt.CreatorID, nt.Subject, models.TicketStatusOpen, nt.Priority, nt.At,
				)
				if err != nil {
					return err
				}
			}
			return insertMessage(ctx, tx, &models.TicketMessage{
				TicketID:  id,
				Sender:    models.SenderUser,
				Message:   nt.Message,
				CreatedAt: nt.At,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Apply persists c in one transaction: the ticket update and, when present,
// the appended message. There is no version check; concurrent updates are
// last-write-wins.
func (r *Repository) Apply(ctx context.Context, id string, c Changes) (*models.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTicketNotFound
	}

	_, err := r.probe.run(ctx, "update ticket", func(l Level) error {
		if err := c.levelCheck(l); err != nil {
			return err
		}
		sql, args := updateQuery(l, id, c)
		return r.inTx(ctx, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, sql, args...)
			if database.IsForeignKeyViolation(err, "assigned_to_user_id") {
				return apperr.InvalidField("assignedToUserId", "unknown user")
			}
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrTicketNotFound
			}
			if c.Message != nil {
				msg := *c.Message
				msg.TicketID = id
				return insertMessage(ctx, tx, &msg)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// QueueRows returns the tickets that can count toward a queue counter:
// everything still active plus tickets resolved since `since`.
func (r *Repository) QueueRows(ctx context.Context, s Scope, since time.Time) ([]QueueRow, error) {
	var out []QueueRow
	_, err := r.probe.run(ctx, "ticket queue stats", func(l Level) error {
		if l < LevelSLATags {
			return needs(LevelSLATags)
		}
		var w whereBuilder
		w.scope(s)
		w.add("(t.status NOT IN ('resolved', 'closed') OR (t.status = 'resolved' AND t.updated_at >= " + w.arg(since) + "))")

		rows, err := r.db.Query(ctx,
			`SELECT t.status, t.assigned_to_user_id, COALESCE(t.last_message_sender, ''), t.updated_at
			 FROM support_tickets t `+w.sql(), w.args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = []QueueRow{}
		for rows.Next() {
			var q QueueRow
			if err := rows.Scan(&q.Status, &q.AssigneeID, &q.LastMessageSender, &q.UpdatedAt); err != nil {
				return fmt.Errorf("scan queue row: %w", err)
			}
			out = append(out, q)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// classify maps a driver error from a single-shape query.
func (r *Repository) classify(op string, err error) error {
	if database.IsMissingSchema(err) {
		return r.probe.notReady(op, err, LevelBase)
	}
	return apperr.Internal(op, err)
}

func insertMessage(ctx context.Context, tx pgx.Tx, m *models.TicketMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO support_ticket_messages (id, ticket_id, sender, message, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.TicketID, m.Sender, m.Message, m.CreatedAt,
	)
	return err
}

// updateQuery builds the UPDATE for c at level l. Fields l cannot store are
// omitted; callers have already rejected explicit ones via minLevel.
func updateQuery(l Level, id string, c Changes) (string, []any) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}

	set("updated_at", c.At)
	if c.Status != nil {
		set("status", *c.Status)
	}
	if c.Priority != nil {
		set("priority", *c.Priority)
	}
	if c.Assignment != nil && l >= LevelAssignment {
		set("assigned_to_user_id", c.Assignment.UserID)
		set("assigned_at", c.Assignment.At)
	}
	if c.Tags != nil && l >= LevelSLATags {
		set("tags", c.Tags)
	}
	if c.Message != nil && l >= LevelSLATags {
		set("last_message_at", c.Message.CreatedAt)
		set("last_message_sender", c.Message.Sender)
	}

	args = append(args, id)
	return "UPDATE support_tickets SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(len(args)), args
}
