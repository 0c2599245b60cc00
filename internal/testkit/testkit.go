// Package testkit provides deterministic stand-ins for the transport, clock and
// randomness used by the game core.
package testkit

import (
	"sort"
	"time"
)

// Sent is one message captured by Messenger
type Sent struct {
	To      string
	Event   string
	Payload any
}

// Messenger records every Send and lets tests drop connections.
type Messenger struct {
	Sent         []Sent
	disconnected map[string]bool
}

// NewMessenger returns a messenger where every connection is alive.
func NewMessenger() *Messenger {
	return &Messenger{disconnected: make(map[string]bool)}
}

func (m *Messenger) Send(connID, event string, payload any) {
	if m.disconnected[connID] {
		return
	}
	m.Sent = append(m.Sent, Sent{To: connID, Event: event, Payload: payload})
}

func (m *Messenger) Connected(connID string) bool {
	return !m.disconnected[connID]
}

// Disconnect marks connID as closed. Later sends to it are dropped.
func (m *Messenger) Disconnect(connID string) {
	m.disconnected[connID] = true
}

// Events returns the event names sent to connID, in order.
func (m *Messenger) Events(connID string) []string {
	var out []string
	for _, s := range m.Sent {
		if s.To == connID {
			out = append(out, s.Event)
		}
	}
	return out
}

// Payloads returns the payloads of event sent to connID, in order.
func (m *Messenger) Payloads(connID, event string) []any {
	var out []any
	for _, s := range m.Sent {
		if s.To == connID && s.Event == event {
			out = append(out, s.Payload)
		}
	}
	return out
}

// Count returns how many times event was sent to connID.
func (m *Messenger) Count(connID, event string) int {
	return len(m.Payloads(connID, event))
}

// Last returns the most recent payload of event sent to connID.
func (m *Messenger) Last(connID, event string) (any, bool) {
	p := m.Payloads(connID, event)
	if len(p) == 0 {
		return nil, false
	}
	return p[len(p)-1], true
}

// Reset forgets captured messages.
func (m *Messenger) Reset() {
	m.Sent = nil
}

type task struct {
	seq       int
	at        time.Duration
	fn        func()
	cancelled bool
}

// Scheduler is a manual clock. Nothing runs until the test advances it.
type Scheduler struct {
	now    time.Duration
	seq    int
	tasks  []*task
	Delays []time.Duration
}

// NewScheduler returns a scheduler at time zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) After(d time.Duration, fn func()) func() {
	s.seq++
	t := &task{seq: s.seq, at: s.now + d, fn: fn}
	s.tasks = append(s.tasks, t)
	s.Delays = append(s.Delays, d)
	return func() { t.cancelled = true }
}

// Pending returns the number of tasks still waiting to run.
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Now returns the virtual time elapsed.
func (s *Scheduler) Now() time.Duration { return s.now }

// Step runs the earliest pending task and reports whether one ran.
func (s *Scheduler) Step() bool {
	s.compact()
	if len(s.tasks) == 0 {
		return false
	}
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].at != s.tasks[j].at {
			return s.tasks[i].at < s.tasks[j].at
		}
		return s.tasks[i].seq < s.tasks[j].seq
	})
	t := s.tasks[0]
	s.tasks = s.tasks[1:]
	if t.at > s.now {
		s.now = t.at
	}
	t.fn()
	return true
}

// Drain runs tasks until none are left or limit tasks have run. It returns the
// number of tasks run.
func (s *Scheduler) Drain(limit int) int {
	n := 0
	for n < limit && s.Step() {
		n++
	}
	return n
}

func (s *Scheduler) compact() {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	s.tasks = live
}

// Roller replays a fixed sequence of rolls, then repeats Fallback.
type Roller struct {
	Rolls    []float64
	Fallback float64
}

// NewRoller returns a roller that yields rolls in order, then 0.
func NewRoller(rolls ...float64) *Roller {
	return &Roller{Rolls: rolls}
}

func (r *Roller) Float64() float64 {
	if len(r.Rolls) == 0 {
		return r.Fallback
	}
	v := r.Rolls[0]
	r.Rolls = r.Rolls[1:]
	return v
}
