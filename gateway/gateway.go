// Package gateway performs the single outbound write of a form submission
// and classifies the response.
//
// The gateway never retries on its own: a failed submission returns to the
// caller, which puts the form back into an editable state so the user can
// tap again.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/buildboard/attribution"
	"github.com/hazyhaar/buildboard/horosafe"
)

// Submitter is what form controllers depend on.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, payload map[string]any, attr attribution.Context) Outcome
}

// Client posts JSON to the persistence API.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger for transport failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for the API at base. An empty base means
// same-origin: endpoints are used as given.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Merge returns payload plus the attribution fields. Nil payload values are
// dropped, and unset attribution fields never appear.
func Merge(payload map[string]any, attr attribution.Context) map[string]any {
	out := make(map[string]any, len(payload)+4)
	for k, v := range payload {
		if v == nil {
			continue
		}
		if p, ok := v.(*string); ok {
			if p == nil {
				continue
			}
			v = *p
		}
		out[k] = v
	}
	for k, v := range attr.Fields() {
		out[k] = v
	}
	return out
}

// Submit sends one POST to endpoint and classifies the result.
func (c *Client) Submit(ctx context.Context, endpoint string, payload map[string]any, attr attribution.Context) Outcome {
	body, err := json.Marshal(Merge(payload, attr))
	if err != nil {
		c.logger.Error("gateway: encode payload", "endpoint", endpoint, "error", err)
		return Outcome{Kind: TransportError, Message: MsgTransport}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("gateway: build request", "endpoint", endpoint, "error", err)
		return Outcome{Kind: TransportError, Message: MsgTransport}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("gateway: request failed", "endpoint", endpoint, "error", err)
		return Outcome{Kind: TransportError, Message: MsgTransport}
	}
	defer resp.Body.Close()

	data, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		c.logger.Warn("gateway: read response", "endpoint", endpoint, "status", resp.StatusCode, "error", err)
		return Outcome{Kind: TransportError, Message: MsgTransport}
	}

	return classify(resp.StatusCode, data, c.logger.With("endpoint", endpoint))
}

func classify(status int, body []byte, logger *slog.Logger) Outcome {
	if status >= 200 && status < 300 {
		var ack struct {
			ID        string `json:"id"`
			CreatedAt any    `json:"created_at"`
		}
		if err := json.Unmarshal(body, &ack); err != nil || ack.ID == "" {
			logger.Warn("gateway: malformed success body", "status", status, "error", err)
			return Outcome{Kind: TransportError, Message: MsgTransport}
		}
		return Outcome{Kind: Success, ID: ack.ID, CreatedAt: createdAt(ack.CreatedAt)}
	}

	// 4xx is user-correctable. 5xx is surfaced the same way so the form
	// always lands back in an actionable state with a message.
	return Outcome{Kind: ServerRejected, Status: status, Detail: detail(status, body)}
}

func createdAt(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// detail extracts the human-facing reason from an error body: a string
// "detail" verbatim, a structured "detail" re-serialised, then "error",
// then the raw text, then the status text.
func detail(status int, body []byte) string {
	var env map[string]json.RawMessage
	if json.Unmarshal(body, &env) == nil {
		for _, key := range []string{"detail", "error"} {
			raw, ok := env[key]
			if !ok {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil {
				return s
			}
			var buf bytes.Buffer
			if json.Compact(&buf, raw) == nil {
				return buf.String()
			}
			return string(raw)
		}
	}
	if txt := strings.TrimSpace(string(body)); txt != "" {
		return txt
	}
	return http.StatusText(status)
}
