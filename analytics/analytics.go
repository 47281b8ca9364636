// Package analytics is the fire-and-forget event sink of the landing page.
//
// Track never blocks the caller and never fails: without configuration the
// events go to a debug log, and a configured sink that is slow or down
// drops events rather than applying backpressure.
package analytics

import (
	"context"
	"log/slog"
)

// Event names emitted by the landing page.
const (
	EventNavClick    = "nav_click"
	EventFormSubmit  = "form_submit"
	EventFormSuccess = "form_success"
	EventFormError   = "form_error"
	EventFormDropped = "form_dropped"
)

// Tracker records a named event with string parameters.
type Tracker interface {
	Track(event string, params map[string]string)
}

// LogTracker writes events to a logger at debug level.
type LogTracker struct {
	Logger *slog.Logger
}

// Track implements Tracker.
func (t LogTracker) Track(event string, params map[string]string) {
	l := t.Logger
	if l == nil {
		l = slog.Default()
	}
	args := make([]any, 0, 2+2*len(params))
	args = append(args, "event", event)
	for k, v := range params {
		args = append(args, k, v)
	}
	l.Debug("analytics", args...)
}

// Nop discards every event.
type Nop struct{}

// Track implements Tracker.
func (Nop) Track(string, map[string]string) {}

// Safe wraps a Tracker so that a panicking implementation cannot take down
// the caller.
func Safe(t Tracker) Tracker {
	if t == nil {
		return Nop{}
	}
	return safeTracker{t}
}

type safeTracker struct{ inner Tracker }

func (s safeTracker) Track(event string, params map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("analytics: tracker panicked", "event", event, "panic", r)
		}
	}()
	s.inner.Track(event, params)
}

// Config selects the sink. An empty NATSURL disables remote analytics.
type Config struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	Buffer  int    `yaml:"buffer"`
}

// Open returns the tracker described by cfg and a close function. A sink
// that fails to connect degrades to a LogTracker; the error is logged, not
// returned.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Tracker, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NATSURL == "" {
		return LogTracker{Logger: logger}, func() {}
	}
	nt, err := DialNATS(ctx, cfg, logger)
	if err != nil {
		logger.Warn("analytics: NATS unavailable, falling back to log", "url", cfg.NATSURL, "error", err)
		return LogTracker{Logger: logger}, func() {}
	}
	return Safe(nt), nt.Close
}
