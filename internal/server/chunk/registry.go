package chunk

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const maxTombstones = 65536

// registry is the source of truth for upload sessions.
// Closed session ids are tombstoned so late chunks cannot reopen them.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   *expirable.LRU[string, time.Time]
}

func newRegistry(tombstoneTTL time.Duration) *registry {
	return &registry{
		sessions: make(map[string]*Session),
		closed:   expirable.NewLRU[string, time.Time](maxTombstones, nil, tombstoneTTL),
	}
}

// acquire returns the session for id, creating it on first use.
// Every successful acquire is paired with a release once the chunk write is over.
func (r *registry) acquire(id string, total int) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Contains(id) {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}

	sess, ok := r.sessions[id]
	if !ok {
		sess = newSession(id, total)
		r.sessions[id] = sess
	} else if sess.Total != total {
		return nil, fmt.Errorf("%w: session %s declared %d, got %d", ErrTotalMismatch, id, sess.Total, total)
	}

	sess.writers++
	return sess, nil
}

// release ends a write started by acquire. An open session that has no chunk recorded
// and no other write in flight is forgotten, so a failed first chunk does not bind the
// id to its total. onForget runs under the registry lock, before the id can be reused.
func (r *registry) release(sess *Session, onForget func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess.writers--
	if sess.writers > 0 || sess.State() != StateOpen || sess.Received() > 0 {
		return
	}
	if r.sessions[sess.ID] != sess {
		return
	}

	delete(r.sessions, sess.ID)
	if onForget != nil {
		onForget()
	}
}

func (r *registry) get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// drop removes the session and optionally tombstones its id
func (r *registry) drop(id string, tombstone bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tombstone {
		r.closed.Add(id, time.Now())
	}
	delete(r.sessions, id)
}

// snapshot returns the current sessions, safe to range without holding the lock
func (r *registry) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
