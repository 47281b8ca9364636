package form

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hazyhaar/buildboard/analytics"
	"github.com/hazyhaar/buildboard/attribution"
	"github.com/hazyhaar/buildboard/gateway"
)

var (
	// ErrInFlight is returned by Submit while a previous submission of the
	// same form has not finished.
	ErrInFlight = errors.New("form: submission already in flight")
	// ErrUnmounted is returned by Submit after Unmount.
	ErrUnmounted = errors.New("form: controller unmounted")
)

// Notifier surfaces transient messages. *notify.Hub satisfies it.
type Notifier interface {
	Toast(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Toast(string) {}

// Option configures a Controller.
type Option func(*Controller)

// WithAttribution sets the attribution snapshot attached to every write.
func WithAttribution(a attribution.Context) Option {
	return func(c *Controller) { c.attr = a }
}

// WithNotifier routes failure messages to n.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithTracker emits form_* analytics events to t.
func WithTracker(t analytics.Tracker) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracker = analytics.Safe(t)
		}
	}
}

// WithOnSuccess registers fn to run after a confirmed success, outside the
// controller lock.
func WithOnSuccess(fn func(gateway.Outcome)) Option {
	return func(c *Controller) { c.onSuccess = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller binds a Schema to a gateway. It serialises submissions: at most
// one request is in flight per controller. Safe for concurrent use.
type Controller struct {
	schema    Schema
	gw        gateway.Submitter
	attr      attribution.Context
	notifier  Notifier
	tracker   analytics.Tracker
	onSuccess func(gateway.Outcome)
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	mounted bool
	subs    map[int]func(State)
	nextSub int
}

// NewController mounts a controller for schema.
func NewController(schema Schema, gw gateway.Submitter, opts ...Option) *Controller {
	c := &Controller{
		schema:   schema,
		gw:       gw,
		attr:     attribution.Resolve(""),
		notifier: nopNotifier{},
		tracker:  analytics.Nop{},
		logger:   slog.Default(),
		state:    Initial(schema),
		mounted:  true,
		subs:     make(map[int]func(State)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Schema returns the schema the controller was built with.
func (c *Controller) Schema() Schema { return c.schema }

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SetField records input for name. Ignored while submitting or after Unmount.
func (c *Controller) SetField(name, value string) {
	c.dispatch(FieldChanged{Name: name, Value: value})
}

// Validate evaluates every rule, populates errors and moves focus to the
// first invalid field. It reports whether the form is valid.
func (c *Controller) Validate() bool {
	st, ok := c.dispatch(SubmitRequested{})
	if !ok {
		return false
	}
	return len(st.Errors) == 0
}

// IsValid reports validity without touching state.
func (c *Controller) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return IsValid(c.schema, c.state)
}

// CanSubmit reports whether the submit affordance should be enabled.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted && c.state.Status != Submitting
}

// Submit runs one submission attempt. The returned error is non-nil only
// when the attempt was refused outright (ErrInFlight, ErrUnmounted); every
// other result, including failures, is described by the Outcome.
func (c *Controller) Submit(ctx context.Context) (gateway.Outcome, error) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return gateway.Outcome{}, ErrUnmounted
	}
	if c.state.Status == Submitting {
		c.mu.Unlock()
		return gateway.Outcome{}, ErrInFlight
	}

	if honeypotFilled(c.schema, c.state.Values) {
		c.mu.Unlock()
		c.logger.Debug("form: honeypot filled, dropping", "form", c.schema.Name)
		c.tracker.Track(analytics.EventFormDropped, map[string]string{"form": c.schema.Name})
		return gateway.Outcome{Kind: gateway.Dropped}, nil
	}

	c.state = Reduce(c.schema, c.state, SubmitRequested{})
	if len(c.state.Errors) > 0 {
		field := c.state.Focus
		reason := c.state.Errors[field].Message
		st, subs := c.state.clone(), c.snapshotSubsLocked()
		c.mu.Unlock()
		publish(subs, st)
		c.notifier.Toast(reason)
		c.tracker.Track(analytics.EventFormError, map[string]string{
			"form": c.schema.Name, "kind": gateway.ValidationRejected.String(), "field": field,
		})
		return gateway.Outcome{Kind: gateway.ValidationRejected, Field: field, Reason: reason}, nil
	}

	c.state = Reduce(c.schema, c.state, SubmitStarted{})
	payload := c.schema.Build(c.state.Values)
	st, subs := c.state.clone(), c.snapshotSubsLocked()
	c.mu.Unlock()
	publish(subs, st)

	c.tracker.Track(analytics.EventFormSubmit, map[string]string{"form": c.schema.Name})
	out := c.gw.Submit(ctx, c.schema.Endpoint, payload, c.attr)

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		c.logger.Debug("form: outcome after unmount ignored", "form", c.schema.Name, "outcome", out.String())
		return out, nil
	}
	c.state = Reduce(c.schema, c.state, SubmitFinished{Outcome: out})
	st, subs = c.state.clone(), c.snapshotSubsLocked()
	c.mu.Unlock()
	publish(subs, st)

	if out.OK() {
		c.tracker.Track(analytics.EventFormSuccess, map[string]string{"form": c.schema.Name, "id": out.ID})
		if c.onSuccess != nil {
			c.onSuccess(out)
		}
		return out, nil
	}
	c.logger.Info("form: submission failed", "form", c.schema.Name, "outcome", out.String())
	c.tracker.Track(analytics.EventFormError, map[string]string{"form": c.schema.Name, "kind": out.Kind.String()})
	if msg := out.UserMessage(); msg != "" {
		c.notifier.Toast(msg)
	}
	return out, nil
}

// Reset restores the schema defaults.
func (c *Controller) Reset() {
	c.dispatch(Reset{})
}

// Unmount detaches the controller. A submission still in flight completes
// but its outcome no longer changes state.
func (c *Controller) Unmount() {
	c.mu.Lock()
	c.mounted = false
	c.subs = make(map[int]func(State))
	c.mu.Unlock()
}

// Subscribe registers fn to receive every new state. It returns the
// unsubscribe function.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) dispatch(ev Event) (State, bool) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return State{}, false
	}
	c.state = Reduce(c.schema, c.state, ev)
	st, subs := c.state.clone(), c.snapshotSubsLocked()
	c.mu.Unlock()
	publish(subs, st)
	return st, true
}

func (c *Controller) snapshotSubsLocked() []func(State) {
	out := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

// publish hands every subscriber its own copy of st.
func publish(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st.clone())
	}
}
