package chunk

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

const sweepInterval = 15 * time.Minute

// StartSweeper periodically removes sessions idle for longer than the session ttl, until ctx is done
func (s *Store) StartSweeper(ctx context.Context) {
	interval := min(sweepInterval, s.sessionTTL)
	ttl := s.sessionTTL

	s.logger.Debug("session sweeper started", "interval", interval, "ttl", ttl)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("session sweeper stopped")
				return
			case <-ticker.C:
				s.Sweep(time.Now().Add(-ttl))
			}
		}
	}()
}

// Sweep removes sessions not touched since cutoff, along with session directories on disk
// that no registered session owns (left over from an earlier process).
// Sessions being assembled are never swept. Returns the number of sessions removed.
func (s *Store) Sweep(cutoff time.Time) int {
	removed := 0
	owned := make(map[string]struct{})

	for _, sess := range s.registry.snapshot() {
		dir := s.SessionDir(sess.ID)
		owned[filepath.Base(dir)] = struct{}{}

		if sess.lastTouched().After(cutoff) {
			continue
		}
		if s.expire(sess) {
			removed++
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("sweep read chunks dir", "error", err)
		}
		return removed
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := owned[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Warn("sweep orphan dir", "dir", entry.Name(), "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("sessions swept", "removed", removed, "active", s.registry.len())
	}
	return removed
}

// expire drops an idle open or failed session, fencing out concurrent chunk writes
func (s *Store) expire(sess *Session) bool {
	sess.gate.Lock()
	defer sess.gate.Unlock()

	state := sess.State()
	if state == StateAssembling {
		return false
	}
	if state == StateOpen && !sess.state.CompareAndSwap(uint32(StateOpen), uint32(StateFailed)) {
		return false
	}

	// remove the files before the id can be reused
	if err := os.RemoveAll(s.SessionDir(sess.ID)); err != nil {
		s.logger.Warn("sweep session dir", "session", sess.ID, "error", err)
	}
	s.registry.drop(sess.ID, false)
	return true
}
