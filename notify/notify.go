// Package notify owns the process-wide notification state of the landing
// page: at most one transient toast and at most one blocking success modal.
//
// Toasts replace each other rather than queue, and dismiss themselves after
// ToastDuration. The modal never auto-dismisses; it stays until one of its
// exit actions is taken.
package notify

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hazyhaar/buildboard/schedule"
)

// ToastDuration is how long a toast stays visible.
const ToastDuration = 2500 * time.Millisecond

const toastKey = "notify.toast"

var (
	// ErrNoModal is returned by Dismiss when no modal is showing.
	ErrNoModal = errors.New("notify: no modal showing")
	// ErrUnknownAction is returned by Dismiss for an action the modal does not offer.
	ErrUnknownAction = errors.New("notify: not an exit action of this modal")
)

// Toast is a transient message.
type Toast struct {
	Seq     uint64
	Message string
}

// Modal is a blocking overlay.
type Modal struct {
	Title   string
	Body    string
	Actions []string
}

// DefaultActions are the exits offered when a modal does not name its own.
var DefaultActions = []string{"close"}

// State is a snapshot of what is on screen.
type State struct {
	Toast *Toast
	Modal *Modal
}

// Hub is the single owner of notification state. Safe for concurrent use.
type Hub struct {
	sched    schedule.Scheduler
	duration time.Duration

	mu    sync.Mutex
	seq   uint64
	toast *Toast
	modal *Modal
	subs  map[int]func(State)
	next  int
}

// NewHub returns a hub using sched for toast auto-dismiss.
// A nil sched uses wall-clock timers.
func NewHub(sched schedule.Scheduler) *Hub {
	if sched == nil {
		sched = schedule.New()
	}
	return &Hub{sched: sched, duration: ToastDuration, subs: make(map[int]func(State))}
}

// Toast shows msg, replacing any visible toast and restarting the timer.
func (h *Hub) Toast(msg string) {
	h.mu.Lock()
	h.seq++
	t := &Toast{Seq: h.seq, Message: msg}
	h.toast = t
	h.mu.Unlock()

	h.sched.After(toastKey, h.duration, func() { h.expire(t.Seq) })
	h.publish()
}

// DismissToast hides the current toast early.
func (h *Hub) DismissToast() {
	h.sched.Cancel(toastKey)
	h.mu.Lock()
	had := h.toast != nil
	h.toast = nil
	h.mu.Unlock()
	if had {
		h.publish()
	}
}

// ShowSuccessModal displays m, replacing any modal already showing.
func (h *Hub) ShowSuccessModal(m Modal) {
	if len(m.Actions) == 0 {
		m.Actions = DefaultActions
	}
	h.mu.Lock()
	h.modal = &m
	h.mu.Unlock()
	h.publish()
}

// Dismiss closes the modal through one of its exit actions.
func (h *Hub) Dismiss(action string) error {
	h.mu.Lock()
	if h.modal == nil {
		h.mu.Unlock()
		return ErrNoModal
	}
	ok := false
	for _, a := range h.modal.Actions {
		if a == action {
			ok = true
			break
		}
	}
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	h.modal = nil
	h.mu.Unlock()
	h.publish()
	return nil
}

// State returns the current snapshot.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Subscribe calls fn with a snapshot after every change. The returned
// function unsubscribes.
func (h *Hub) Subscribe(fn func(State)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := h.next
	h.next++
	h.subs[key] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs, key)
		h.mu.Unlock()
	}
}

func (h *Hub) expire(seq uint64) {
	h.mu.Lock()
	if h.toast == nil || h.toast.Seq != seq {
		h.mu.Unlock()
		return
	}
	h.toast = nil
	h.mu.Unlock()
	h.publish()
}

func (h *Hub) publish() {
	h.mu.Lock()
	st := h.snapshotLocked()
	subs := make([]func(State), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

func (h *Hub) snapshotLocked() State {
	var st State
	if h.toast != nil {
		t := *h.toast
		st.Toast = &t
	}
	if h.modal != nil {
		m := *h.modal
		m.Actions = append([]string(nil), h.modal.Actions...)
		st.Modal = &m
	}
	return st
}
