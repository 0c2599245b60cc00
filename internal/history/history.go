// Package history records finished matches.
//
// Recording never blocks the game loop: the Postgres recorder hands results to a
// background worker, and the in-memory recorder only appends under a mutex.
package history

import (
	"sync"
	"time"
)

// Result is one finished match
type Result struct {
	RoomID       string
	WinnerID     string
	WinnerName   string
	LoserID      string
	LoserName    string
	WinnerRounds int
	LoserRounds  int
	Reason       string
	Rounds       int
	EndedAt      time.Time
}

// Recorder stores match results
type Recorder interface {
	Record(Result)
}

// Nop discards results
type Nop struct{}

func (Nop) Record(Result) {}

// Memory keeps the most recent results in process
type Memory struct {
	mu      sync.RWMutex
	limit   int
	results []Result
	total   int
}

// NewMemory keeps at most limit results; limit <= 0 keeps everything.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

func (m *Memory) Record(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, r)
	m.total++
	if m.limit > 0 && len(m.results) > m.limit {
		m.results = m.results[len(m.results)-m.limit:]
	}
}

// Results returns a copy of the kept results, oldest first
func (m *Memory) Results() []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Result, len(m.results))
	copy(out, m.results)
	return out
}

// Total returns how many results were ever recorded
func (m *Memory) Total() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// Multi fans a result out to several recorders
type Multi []Recorder

func (m Multi) Record(r Result) {
	for _, rec := range m {
		rec.Record(r)
	}
}
