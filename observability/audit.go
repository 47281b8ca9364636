package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/buildboard/idgen"
	"github.com/hazyhaar/buildboard/kit"
)

// AuditEntry is one admin operation.
type AuditEntry struct {
	EntryID       string
	Timestamp     time.Time
	ComponentName string
	OperationType string
	Transport     string
	TraceID       string
	Parameters    string // JSON
	ErrorMessage  string
	DurationMs    int64
	Status        string // "success" or "error"
}

// AuditLogger persists audit entries synchronously.
type AuditLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// AuditOption configures an AuditLogger.
type AuditOption func(*AuditLogger)

// WithAuditIDGenerator sets the generator for entry ids.
func WithAuditIDGenerator(gen idgen.Generator) AuditOption {
	return func(a *AuditLogger) { a.newID = gen }
}

// NewAuditLogger returns an audit logger writing to db.
func NewAuditLogger(db *sql.DB, opts ...AuditOption) *AuditLogger {
	a := &AuditLogger{db: db, newID: idgen.Prefixed("audit_", idgen.Default)}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Log inserts e, filling id, timestamp and status when empty.
func (a *AuditLogger) Log(ctx context.Context, e *AuditEntry) error {
	if e.EntryID == "" {
		e.EntryID = a.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Status == "" {
		e.Status = "success"
		if e.ErrorMessage != "" {
			e.Status = "error"
		}
	}
	if e.Parameters == "" {
		e.Parameters = "{}"
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	_, err := a.db.ExecContext(ctx, `INSERT INTO audit_log
		(entry_id, timestamp, component_name, operation_type, transport, trace_id,
		 parameters, error_message, duration_ms, status)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp.Unix(), e.ComponentName, e.OperationType, e.Transport, e.TraceID,
		e.Parameters, e.ErrorMessage, e.DurationMs, e.Status)
	if err != nil {
		return fmt.Errorf("observability: audit insert: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (a *AuditLogger) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, `SELECT entry_id, timestamp, component_name, operation_type,
		transport, trace_id, parameters, error_message, duration_ms, status
		FROM audit_log ORDER BY timestamp DESC, entry_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("observability: audit query: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts int64
		var trace, errMsg sql.NullString
		var dur sql.NullInt64
		if err := rows.Scan(&e.EntryID, &ts, &e.ComponentName, &e.OperationType,
			&e.Transport, &trace, &e.Parameters, &errMsg, &dur, &e.Status); err != nil {
			return nil, fmt.Errorf("observability: audit scan: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		e.TraceID = trace.String
		e.ErrorMessage = errMsg.String
		e.DurationMs = dur.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}

// Middleware records every call through an endpoint as one audit entry.
// Insert failures are logged and do not affect the call.
func (a *AuditLogger) Middleware(component, operation string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			e := &AuditEntry{
				Timestamp:     start,
				ComponentName: component,
				OperationType: operation,
				Transport:     kit.GetTransport(ctx),
				TraceID:       kit.GetTraceID(ctx),
				DurationMs:    time.Since(start).Milliseconds(),
			}
			if req != nil {
				if b, jerr := json.Marshal(req); jerr == nil {
					e.Parameters = string(b)
				}
			}
			if err != nil {
				e.ErrorMessage = err.Error()
			}
			if lerr := a.Log(ctx, e); lerr != nil {
				slog.Warn("observability audit failed", "error", lerr, "operation", operation)
			}
			return resp, err
		}
	}
}
