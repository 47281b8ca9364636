// Package schedule provides cancellable delayed tasks keyed by a token.
//
// Scheduling under a key that already has a pending task replaces it, so
// callers that only ever want one live task per concern (a navigation
// retry, a toast auto-dismiss) get that for free. A task that was replaced
// or cancelled never runs, even if its timer already fired.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs fn after d under key, replacing any pending task for key.
type Scheduler interface {
	After(key string, d time.Duration, fn func())
	Cancel(key string) bool
	Pending(key string) bool
}

type entry struct {
	gen   uint64
	timer *time.Timer
}

// Timers is the wall-clock Scheduler backed by time.AfterFunc.
// The zero value is not usable; call New.
type Timers struct {
	mu      sync.Mutex
	gen     uint64
	tasks   map[string]*entry
	stopped bool
}

// New returns an empty Timers.
func New() *Timers {
	return &Timers{tasks: make(map[string]*entry)}
}

// After schedules fn. It is a no-op after Stop.
func (s *Timers) After(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.tasks[key]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		s.mu.Unlock()
		fn()
	})
	s.tasks[key] = e
}

// Cancel drops the pending task for key and reports whether there was one.
func (s *Timers) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Pending reports whether a task is waiting under key.
func (s *Timers) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Stop cancels every pending task and rejects new ones.
func (s *Timers) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.tasks {
		e.timer.Stop()
		delete(s.tasks, k)
	}
	s.stopped = true
}

// Manual is a Scheduler driven by Advance, for deterministic tests.
// Tasks run synchronously inside Advance, in due-time order.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks map[string]manualTask
}

type manualTask struct {
	due time.Duration
	seq uint64
	fn  func()
}

// NewManual returns a Manual clock at t=0.
func NewManual() *Manual {
	return &Manual{tasks: make(map[string]manualTask)}
}

func (m *Manual) After(key string, d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.tasks[key] = manualTask{due: m.now + d, seq: m.seq, fn: fn}
}

func (m *Manual) Cancel(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[key]
	delete(m.tasks, key)
	return ok
}

func (m *Manual) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[key]
	return ok
}

// Advance moves the clock forward by d and runs every task that became due.
// Tasks scheduled by a running task are eligible in the same Advance call
// if they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		key, task, ok := m.nextDueLocked(target)
		if !ok {
			m.now = target
			m.mu.Unlock()
			return
		}
		delete(m.tasks, key)
		m.now = task.due
		m.mu.Unlock()
		task.fn()
	}
}

func (m *Manual) nextDueLocked(target time.Duration) (string, manualTask, bool) {
	keys := make([]string, 0, len(m.tasks))
	for k, t := range m.tasks {
		if t.due <= target {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", manualTask{}, false
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := m.tasks[keys[i]], m.tasks[keys[j]]
		if a.due != b.due {
			return a.due < b.due
		}
		return a.seq < b.seq
	})
	return keys[0], m.tasks[keys[0]], true
}
