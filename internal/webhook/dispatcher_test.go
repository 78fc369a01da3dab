package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/events"
)

func TestDeliverSignsPayload(t *testing.T) {
	var (
		gotSig   string
		gotEvent string
		gotBody  []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, "whsec", time.Second, zerolog.Nop())
	err := d.Deliver(context.Background(), events.Event{ID: "e-1", Type: events.TicketCreated, TicketID: "t-1"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(gotBody)
	if want := "sha256=" + hex.EncodeToString(mac.Sum(nil)); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
	if gotEvent != events.TicketCreated {
		t.Errorf("event header = %q", gotEvent)
	}
}

func TestDeliverFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, "", time.Second, zerolog.Nop())
	if err := d.Deliver(context.Background(), events.Event{ID: "e-1", Type: events.TicketUpdated}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestDeliverDisabled(t *testing.T) {
	d := NewDispatcher("", "", time.Second, zerolog.Nop())
	if d.Enabled() {
		t.Fatal("dispatcher without URL reports enabled")
	}
	if err := d.Deliver(context.Background(), events.Event{}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}
