package tracker

import (
	"slices"
	"sync"
)

// Listener is notified whenever the tracked set changes. Notifications carry no payload;
// listeners re-query the [Tracker] for current state.
type Listener interface {
	OnTrackedChanged()
}

// FuncListener adapts a function to [Listener]. Use a pointer so the listener can be removed again.
type FuncListener struct {
	fn func()
}

// NewFuncListener wraps fn.
func NewFuncListener(fn func()) *FuncListener { return &FuncListener{fn: fn} }

func (f *FuncListener) OnTrackedChanged() { f.fn() }

// ListenerSet is a copy-on-write set of listeners. Notification iterates a snapshot, so listeners
// may add or remove themselves (or others) while being notified.
type ListenerSet struct {
	mu        sync.Mutex
	listeners []Listener
}

// Add registers l. Adding a listener twice has no effect. Listeners must have comparable dynamic types.
func (s *ListenerSet) Add(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.listeners, l) {
		return
	}
	next := make([]Listener, len(s.listeners), len(s.listeners)+1)
	copy(next, s.listeners)
	s.listeners = append(next, l)
}

// Remove unregisters l. Removing an unknown listener has no effect.
func (s *ListenerSet) Remove(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.listeners, l)
	if i < 0 {
		return
	}
	next := make([]Listener, 0, len(s.listeners)-1)
	next = append(next, s.listeners[:i]...)
	s.listeners = append(next, s.listeners[i+1:]...)
}

// Len reports the number of registered listeners.
func (s *ListenerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// NotifyAll calls every listener registered when the call began.
func (s *ListenerSet) NotifyAll() {
	s.mu.Lock()
	snapshot := s.listeners
	s.mu.Unlock()

	for _, l := range snapshot {
		l.OnTrackedChanged()
	}
}
