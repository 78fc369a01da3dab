package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/events"
)

// Dispatcher posts ticket events to one configured endpoint. It is called
// from the queue worker, which owns retries.
type Dispatcher struct {
	url        string
	secret     string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewDispatcher(url, secret string, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		url:    url,
		secret: secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Enabled is false when no endpoint is configured.
func (d *Dispatcher) Enabled() bool { return d.url != "" }

// Deliver sends e and returns an error for transport failures and non-2xx
// responses so the caller can retry.
func (d *Dispatcher) Deliver(ctx context.Context, e events.Event) error {
	if !d.Enabled() {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", e.Type)
	req.Header.Set("X-Webhook-ID", e.ID)
	if d.secret != "" {
		req.Header.Set("X-Webhook-Signature", sign(payload, d.secret))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", e.Type, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		d.log.Warn().Int("status", resp.StatusCode).Str("event", e.Type).Str("event_id", e.ID).Msg("webhook received non-success response")
		return fmt.Errorf("deliver %s: endpoint returned %d", e.Type, resp.StatusCode)
	}
	return nil
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
