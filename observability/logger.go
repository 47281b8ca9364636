package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/buildboard/idgen"
)

// Business event types recorded by the API.
const (
	EventWaitlistJoined  = "waitlist.joined"
	EventReferralCreated = "referral.created"
)

// BusinessEvent is a domain-level event.
type BusinessEvent struct {
	EventType   string
	ServiceName string
	EntityType  string
	EntityID    string
	Action      string
	Details     map[string]string
	Success     bool
}

// EventLogger writes business events.
type EventLogger struct {
	db      *sql.DB
	service string
	newID   idgen.Generator
	now     func() time.Time
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets the generator for event ids.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger returns a logger writing to db on behalf of service.
func NewEventLogger(db *sql.DB, service string, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:      db,
		service: service,
		newID:   idgen.Prefixed("evt_", idgen.UUIDv7()),
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records event. Failures are logged, never returned: a broken
// event table must not fail a signup.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	if event.ServiceName == "" {
		event.ServiceName = l.service
	}
	var details *string
	if len(event.Details) > 0 {
		if b, err := json.Marshal(event.Details); err == nil {
			s := string(b)
			details = &s
		}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			action, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		l.newID(), event.EventType, event.ServiceName, event.EntityType, event.EntityID,
		event.Action, details, event.Success, l.now().Unix())
	if err != nil {
		slog.Error("observability event log failed", "error", err, "event_type", event.EventType)
	}
}

// CountEvents returns the number of events of each type since since.
func (l *EventLogger) CountEvents(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT event_type, COUNT(*) FROM business_event_logs WHERE created_at >= ? GROUP BY event_type`,
		since.Unix())
	if err != nil {
		return nil, fmt.Errorf("observability: count events: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("observability: scan: %w", err)
		}
		out[typ] = n
	}
	return out, rows.Err()
}

// RetentionConfig specifies per-table retention in days. Zero keeps forever.
type RetentionConfig struct {
	EventLogsDays int `yaml:"event_logs_days"`
	AuditDays     int `yaml:"audit_days"`
}

// Cleanup deletes rows older than the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()
	targets := []struct {
		query string
		days  int
	}{
		{"DELETE FROM business_event_logs WHERE created_at < ?", cfg.EventLogsDays},
		{"DELETE FROM audit_log WHERE timestamp < ?", cfg.AuditDays},
	}
	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, t.query, now-int64(t.days*86400)); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	return nil
}
