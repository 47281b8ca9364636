// Package sections records the vertical offset of each named landing-page
// section as the page lays out.
//
// Each section only ever writes its own key, so last-writer-wins per key is
// sufficient. The whole map is cleared together when the viewport changes
// size class; individual entries are never removed.
package sections

import (
	"fmt"
	"sync"
)

// ID names a landing-page section.
type ID int

const (
	Hero ID = iota
	Problem
	Solution
	Product
	WhoFor
	Community
	Signup
	Footer
)

// All lists every section in page order.
var All = []ID{Hero, Problem, Solution, Product, WhoFor, Community, Signup, Footer}

var names = [...]string{"hero", "problem", "solution", "product", "who_for", "community", "signup", "footer"}

func (id ID) String() string {
	if id < 0 || int(id) >= len(names) {
		return fmt.Sprintf("section(%d)", int(id))
	}
	return names[id]
}

// Parse maps a section name back to its ID.
func Parse(name string) (ID, error) {
	for i, n := range names {
		if n == name {
			return ID(i), nil
		}
	}
	return 0, fmt.Errorf("sections: unknown section %q", name)
}

// Registry holds the reported offsets. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	offsets   map[ID]float64
	listeners map[int]func(ID, bool)
	nextSub   int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		offsets:   make(map[ID]float64),
		listeners: make(map[int]func(ID, bool)),
	}
}

// Report records the offset of id after it completed layout, overwriting
// any previous value. Negative offsets are clamped to 0.
func (r *Registry) Report(id ID, offset float64) {
	if offset < 0 {
		offset = 0
	}
	r.mu.Lock()
	r.offsets[id] = offset
	subs := r.snapshotListenersLocked()
	r.mu.Unlock()
	for _, fn := range subs {
		fn(id, true)
	}
}

// Get returns the offset of id, or false when id has not reported yet.
func (r *Registry) Get(id ID) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.offsets[id]
	return v, ok
}

// ResetAll forgets every offset. Sections must report again.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	r.offsets = make(map[ID]float64)
	subs := r.snapshotListenersLocked()
	r.mu.Unlock()
	for _, fn := range subs {
		fn(-1, false)
	}
}

// Complete reports whether every section in All has an offset.
func (r *Registry) Complete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range All {
		if _, ok := r.offsets[id]; !ok {
			return false
		}
	}
	return true
}

// Subscribe registers fn to be called after every Report (id, true) and
// every ResetAll (-1, false). The returned function unsubscribes.
// fn runs on the reporting goroutine, outside the registry lock.
func (r *Registry) Subscribe(fn func(id ID, reported bool)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.nextSub
	r.nextSub++
	r.listeners[key] = fn
	return func() {
		r.mu.Lock()
		delete(r.listeners, key)
		r.mu.Unlock()
	}
}

func (r *Registry) snapshotListenersLocked() []func(ID, bool) {
	out := make([]func(ID, bool), 0, len(r.listeners))
	for _, fn := range r.listeners {
		out = append(out, fn)
	}
	return out
}
