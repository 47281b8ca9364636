// Package navigator turns "go to section" intents into scroll commands.
//
// When the environment can scroll a named element into view, the navigator
// delegates to it and never consults the registry. Otherwise it scrolls to
// the registered offset minus the sticky header height. A target whose
// offset is not known yet gets exactly one deferred retry; if the section
// still has not reported by then the intent is dropped silently.
package navigator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/buildboard/schedule"
	"github.com/hazyhaar/buildboard/sections"
)

const (
	// HeaderHeight is the sticky header height subtracted from offsets so
	// the section title clears the header.
	HeaderHeight = 88.0

	// RetryDelay is how long a navigation to an unmeasured section waits
	// before re-reading the registry.
	RetryDelay = 250 * time.Millisecond

	retryKey = "navigator.retry"
)

// Scroller moves the content container.
type Scroller interface {
	ScrollTo(y float64, smooth bool)
}

// ElementScroller is the native "scroll named element into view" primitive
// of document-based environments.
type ElementScroller interface {
	ScrollIntoView(id sections.ID)
}

// ScrollFunc adapts a function to Scroller.
type ScrollFunc func(y float64, smooth bool)

func (f ScrollFunc) ScrollTo(y float64, smooth bool) { f(y, smooth) }

// Option configures a Navigator.
type Option func(*Navigator)

// WithElementScroller enables direct delegation to a native primitive.
func WithElementScroller(es ElementScroller) Option {
	return func(n *Navigator) { n.elements = es }
}

// WithScheduler overrides the retry scheduler (tests use schedule.Manual).
func WithScheduler(s schedule.Scheduler) Option {
	return func(n *Navigator) { n.sched = s }
}

// WithHeaderHeight overrides HeaderHeight.
func WithHeaderHeight(h float64) Option {
	return func(n *Navigator) { n.header = h }
}

// WithRetryDelay overrides RetryDelay.
func WithRetryDelay(d time.Duration) Option {
	return func(n *Navigator) { n.delay = d }
}

// WithLogger sets the logger used for dropped intents.
func WithLogger(l *slog.Logger) Option {
	return func(n *Navigator) { n.logger = l }
}

// Navigator is safe for concurrent use.
type Navigator struct {
	reg      *sections.Registry
	scroller Scroller
	elements ElementScroller
	sched    schedule.Scheduler
	header   float64
	delay    time.Duration
	logger   *slog.Logger
	unsub    func()

	mu      sync.Mutex
	pending *sections.ID
}

// New wires a navigator to reg and scroller.
func New(reg *sections.Registry, scroller Scroller, opts ...Option) *Navigator {
	n := &Navigator{
		reg:      reg,
		scroller: scroller,
		header:   HeaderHeight,
		delay:    RetryDelay,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(n)
	}
	if n.sched == nil {
		n.sched = schedule.New()
	}
	n.unsub = reg.Subscribe(n.onReport)
	return n
}

// GoTo scrolls to id, deferring once if its offset is unknown.
func (n *Navigator) GoTo(id sections.ID) {
	if n.elements != nil {
		n.cancelPending()
		n.elements.ScrollIntoView(id)
		return
	}

	if off, ok := n.reg.Get(id); ok {
		n.cancelPending()
		n.scroll(off)
		return
	}

	n.mu.Lock()
	if n.pending != nil && *n.pending == id && n.sched.Pending(retryKey) {
		// Already waiting on this section; a repeated tap does not extend the wait.
		n.mu.Unlock()
		return
	}
	target := id
	n.pending = &target
	n.mu.Unlock()

	n.sched.After(retryKey, n.delay, func() { n.retry(target) })
}

// GoToTop scrolls to the top immediately.
func (n *Navigator) GoToTop() {
	n.cancelPending()
	n.scroller.ScrollTo(0, true)
}

// Enabled reports whether navigation affordances should accept taps. It
// flips for every affordance at once: either a native primitive exists or
// every section has reported.
func (n *Navigator) Enabled() bool {
	return n.elements != nil || n.reg.Complete()
}

// Pending returns the section awaiting its retry, if any.
func (n *Navigator) Pending() (sections.ID, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil {
		return 0, false
	}
	return *n.pending, true
}

// Close detaches from the registry and cancels any pending retry.
func (n *Navigator) Close() {
	n.cancelPending()
	if n.unsub != nil {
		n.unsub()
	}
}

func (n *Navigator) retry(id sections.ID) {
	n.mu.Lock()
	if n.pending == nil || *n.pending != id {
		n.mu.Unlock()
		return
	}
	n.pending = nil
	n.mu.Unlock()

	if off, ok := n.reg.Get(id); ok {
		n.scroll(off)
		return
	}
	n.logger.Debug("navigator: section not measured, dropping intent", "section", id.String())
}

// onReport resolves a pending retry as soon as its section reports.
func (n *Navigator) onReport(id sections.ID, reported bool) {
	if !reported {
		return
	}
	n.mu.Lock()
	if n.pending == nil || *n.pending != id {
		n.mu.Unlock()
		return
	}
	n.pending = nil
	n.mu.Unlock()
	n.sched.Cancel(retryKey)

	if off, ok := n.reg.Get(id); ok {
		n.scroll(off)
	}
}

func (n *Navigator) cancelPending() {
	n.mu.Lock()
	n.pending = nil
	n.mu.Unlock()
	n.sched.Cancel(retryKey)
}

func (n *Navigator) scroll(offset float64) {
	y := offset - n.header
	if y < 0 {
		y = 0
	}
	n.scroller.ScrollTo(y, true)
}
