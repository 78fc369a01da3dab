package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(subj string, data []byte) error {
	p.subjects = append(p.subjects, subj)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestNATSNotifierSubject(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNATSNotifier(pub, "support.tickets.")

	e := Event{ID: "e-1", Type: TicketReplied, TicketID: "t-1", Status: "pending", OccurredAt: time.Unix(0, 0).UTC()}
	if err := n.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "support.tickets.ticket.replied" {
		t.Fatalf("subjects = %v", pub.subjects)
	}

	var got Event
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.TicketID != "t-1" || got.Status != "pending" {
		t.Errorf("payload = %+v", got)
	}
}

func TestNATSNotifierCanceledContext(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNATSNotifier(pub, "support.tickets")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Publish(ctx, Event{Type: TicketCreated}); err == nil {
		t.Fatal("expected error on canceled context")
	}
	if len(pub.subjects) != 0 {
		t.Errorf("published despite canceled context")
	}
}
