package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// Publisher is the part of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATSNotifier publishes each event on <prefix>.<event type>, for example
// support.tickets.ticket.created.
type NATSNotifier struct {
	conn   Publisher
	prefix string
}

func NewNATSNotifier(conn Publisher, prefix string) *NATSNotifier {
	return &NATSNotifier{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

func (n *NATSNotifier) Subject(eventType string) string {
	return n.prefix + "." + eventType
}

func (n *NATSNotifier) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(n.Subject(e.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
