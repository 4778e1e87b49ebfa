// Package webhook pushes committed actions to registered external systems.
// Payloads are signed with a per-endpoint HMAC secret so receivers can
// verify origin without shared infrastructure.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"civreg/pkg/platform/circuit"
)

// Endpoint is one registered webhook target.
type Endpoint struct {
	URL    string
	Secret string
}

// Payload is the JSON body delivered to each endpoint.
type Payload struct {
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	ActionID   string    `json:"actionId"`
	ActionType string    `json:"actionType"`
	TrackingID string    `json:"trackingId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Dispatcher delivers payloads to all registered endpoints with bounded
// retries. It is invoked from the commit fan-out; failures are logged and
// never surface to the caller. A per-endpoint circuit breaker drops the
// retry budget to a single probe while an endpoint keeps failing.
type Dispatcher struct {
	endpoints   []Endpoint
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
	breakers    map[string]*circuit.Breaker
}

func NewDispatcher(endpoints []Endpoint, logger *slog.Logger) *Dispatcher {
	breakers := make(map[string]*circuit.Breaker, len(endpoints))
	for _, ep := range endpoints {
		breakers[ep.URL] = circuit.New(ep.URL, circuit.WithFailureThreshold(5))
	}
	return &Dispatcher{
		endpoints:   endpoints,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
		maxAttempts: 3,
		breakers:    breakers,
	}
}

// Dispatch posts the payload to every endpoint. The first failing endpoint
// does not stop delivery to the rest; the last error is returned so the
// caller can count failures.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) error {
	if len(d.endpoints) == 0 {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for _, ep := range d.endpoints {
		if err := d.deliver(ctx, ep, body); err != nil {
			d.logger.ErrorContext(ctx, "webhook delivery failed",
				"url", ep.URL,
				"event_id", payload.EventID,
				"error", err,
			)
			lastErr = err
		}
	}
	return lastErr
}

func (d *Dispatcher) deliver(ctx context.Context, ep Endpoint, body []byte) error {
	breaker := d.breakers[ep.URL]

	// While the circuit is open each dispatch sends a single probe instead
	// of the full retry budget; a successful probe closes it again.
	maxAttempts := d.maxAttempts
	if breaker.IsOpen() {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", Sign(ep.Secret, body))

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if _, change := breaker.RecordSuccess(); change.Closed {
				d.logger.InfoContext(ctx, "webhook endpoint recovered", "url", ep.URL)
			}
			return nil
		}
		lastErr = fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}

	if _, change := breaker.RecordFailure(); change.Opened {
		d.logger.WarnContext(ctx, "webhook endpoint circuit opened", "url", ep.URL)
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

// Sign computes the hex HMAC-SHA256 signature receivers use to verify the
// payload.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the body. Exported
// for receiver implementations and tests.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
