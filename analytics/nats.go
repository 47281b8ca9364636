package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject prefixes the per-event subject: <prefix>.<event>.
const DefaultSubject = "buildboard.analytics"

// Publisher is the slice of *nats.Conn the tracker uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type message struct {
	Event  string            `json:"event"`
	Params map[string]string `json:"params,omitempty"`
	TS     int64             `json:"ts"`
}

// NATSTracker publishes events asynchronously. Events are buffered and
// dropped on overflow.
type NATSTracker struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
	ch      chan message
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64

	mu     sync.RWMutex // guards closed and sends on ch
	closed bool
}

// DialNATS connects to cfg.NATSURL and starts the publish loop.
func DialNATS(ctx context.Context, cfg Config, logger *slog.Logger) (*NATSTracker, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("buildboard-analytics"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("analytics: connect NATS: %w", err)
	}
	t := NewNATSTracker(nc, cfg, logger)
	t.conn = nc
	return t, nil
}

// NewNATSTracker starts a tracker publishing through pub.
func NewNATSTracker(pub Publisher, cfg Config, logger *slog.Logger) *NATSTracker {
	if logger == nil {
		logger = slog.Default()
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	buf := cfg.Buffer
	if buf <= 0 {
		buf = 256
	}
	t := &NATSTracker{
		pub:     pub,
		subject: strings.TrimSuffix(subject, "."),
		logger:  logger,
		ch:      make(chan message, buf),
		done:    make(chan struct{}),
	}
	go t.loop()
	return t
}

// Track implements Tracker. It never blocks.
func (t *NATSTracker) Track(event string, params map[string]string) {
	m := message{Event: event, TS: time.Now().UnixMilli()}
	if len(params) > 0 {
		m.Params = make(map[string]string, len(params))
		for k, v := range params {
			m.Params[k] = v
		}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.dropped.Add(1)
		return
	}
	select {
	case t.ch <- m:
	default:
		t.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (t *NATSTracker) Dropped() int64 { return t.dropped.Load() }

// Close drains buffered events and closes the connection if Dial opened it.
func (t *NATSTracker) Close() {
	t.once.Do(func() {
		t.mu.Lock()
		t.closed = true
		close(t.ch)
		t.mu.Unlock()
		<-t.done
		if t.conn != nil {
			if err := t.conn.Drain(); err != nil {
				t.conn.Close()
			}
		}
	})
}

func (t *NATSTracker) loop() {
	defer close(t.done)
	for m := range t.ch {
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		if err := t.pub.Publish(t.subject+"."+m.Event, data); err != nil {
			t.dropped.Add(1)
			t.logger.Debug("analytics: publish failed", "event", m.Event, "error", err)
		}
	}
}
