package chunk

import (
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// SessionState is the assembly lifecycle of a session
type SessionState uint32

const (
	StateOpen SessionState = iota
	StateAssembling
	StateClosed
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateAssembling:
		return "assembling"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session tracks the chunks received for one upload.
//
// Chunk writes hold gate for reading, so writes to different indices run in parallel.
// Claiming the session for assembly holds gate for writing, which waits out in-flight
// writes and makes every later write observe the new state.
type Session struct {
	ID    string
	Total int

	gate  sync.RWMutex
	state atomic.Uint32

	// chunk writes in flight, guarded by registry.mu
	writers int

	mu        sync.Mutex
	received  mapset.Set[int]
	sizes     map[int]int64
	createdAt time.Time
	touchedAt time.Time
}

func newSession(id string, total int) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Total:     total,
		received:  mapset.NewThreadUnsafeSetWithSize[int](total),
		sizes:     make(map[int]int64, total),
		createdAt: now,
		touchedAt: now,
	}
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// record marks index as received and returns the received count afterwards
func (s *Session) record(index int, size int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received.Add(index)
	s.sizes[index] = size
	s.touchedAt = time.Now()
	return s.received.Cardinality()
}

// Received returns the number of distinct indices received so far
func (s *Session) Received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received.Cardinality()
}

// Has reports whether the chunk at index was received
func (s *Session) Has(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received.Contains(index)
}

// ChunkSize returns the recorded payload size of the chunk at index
func (s *Session) ChunkSize(index int) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.sizes[index]
	return size, ok
}

// Size returns the sum of all recorded chunk sizes
func (s *Session) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, size := range s.sizes {
		total += size
	}
	return total
}

func (s *Session) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// claim moves the session from open to assembling if every chunk is present.
// Exactly one caller wins.
func (s *Session) claim() bool {
	s.gate.Lock()
	defer s.gate.Unlock()

	if s.Received() != s.Total {
		return false
	}
	return s.state.CompareAndSwap(uint32(StateOpen), uint32(StateAssembling))
}

// finish moves an assembling session to its terminal state
func (s *Session) finish(ok bool) bool {
	next := StateFailed
	if ok {
		next = StateClosed
	}
	return s.state.CompareAndSwap(uint32(StateAssembling), uint32(next))
}
