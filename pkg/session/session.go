// ABOUTME: Tracks editor sessions per document and queues update fanout
// ABOUTME: Commits enqueue changed ids to every other session, polls drain them

package session

import (
	"strings"
	"sync"
	"time"

	"github.com/lingtools/docserve/internal/metrics"
	"github.com/lingtools/docserve/pkg/document"
)

// Sentinel session id suffix. Clients that only read use it; such
// requests never create session state and never receive updates.
const noSessionSuffix = "NOSID"

// DefaultExpiry is how long a session may stay idle before a sweep
// discards it.
const DefaultExpiry = 12 * time.Hour

type state struct {
	pending    []string
	lastAccess time.Time
}

// Tracker keeps, for every open document, the set of active editor
// sessions and the element ids each still has to pick up. Time is injected
// so sweeps are testable.
type Tracker struct {
	mu     sync.Mutex
	docs   map[document.Key]map[string]*state
	expiry time.Duration
	now    func() time.Time
}

// NewTracker returns a tracker with the given idle expiry. A zero expiry
// uses the default.
func NewTracker(expiry time.Duration) *Tracker {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Tracker{
		docs:   make(map[document.Key]map[string]*state),
		expiry: expiry,
		now:    time.Now,
	}
}

func tracked(sid string) bool {
	return sid != "" && !strings.HasSuffix(sid, noSessionSuffix)
}

// Touch registers activity of a session on a document, creating session
// state on first contact. Sentinel session ids are ignored.
func (t *Tracker) Touch(key document.Key, sid string) {
	if !tracked(sid) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session(key, sid).lastAccess = t.now()
}

// session returns the state for (key, sid), creating it when absent.
// Caller holds t.mu.
func (t *Tracker) session(key document.Key, sid string) *state {
	sessions, ok := t.docs[key]
	if !ok {
		sessions = make(map[string]*state)
		t.docs[key] = sessions
	}
	st, ok := sessions[sid]
	if !ok {
		st = &state{}
		sessions[sid] = st
		metrics.SessionsActive.Inc()
	}
	return st
}

// Broadcast queues the changed element ids for every session on the
// document except the one that made the change.
func (t *Tracker) Broadcast(key document.Key, exclude string, ids []string) {
	if len(ids) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for sid, st := range t.docs[key] {
		if sid == exclude {
			continue
		}
		st.pending = append(st.pending, ids...)
	}
}

// Poll drains and returns the pending element ids for a session, de-
// duplicated in arrival order. It never blocks; a session with nothing
// queued gets nil.
func (t *Tracker) Poll(key document.Key, sid string) []string {
	if !tracked(sid) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.session(key, sid)
	st.lastAccess = t.now()
	if len(st.pending) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(st.pending))
	var out []string
	for _, id := range st.pending {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	st.pending = nil
	return out
}

// Discard removes ids from a session's pending queue without delivering
// them. Used when the elements no longer exist.
func (t *Tracker) Discard(key document.Key, sid string, ids []string) {
	if !tracked(sid) || len(ids) == 0 {
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sessions := t.docs[key]
	if sessions == nil {
		return
	}
	st := sessions[sid]
	if st == nil {
		return
	}
	kept := st.pending[:0]
	for _, id := range st.pending {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	st.pending = kept
}

// Sessions reports how many sessions are active on a document.
func (t *Tracker) Sessions(key document.Key) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.docs[key])
}

// Sweep discards sessions idle longer than the expiry and forgets
// documents whose last session went away. It returns the keys of
// documents that no longer have any session, so the caller can consider
// unloading them.
func (t *Tracker) Sweep() []document.Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-t.expiry)
	var orphaned []document.Key
	for key, sessions := range t.docs {
		for sid, st := range sessions {
			if st.lastAccess.Before(cutoff) {
				delete(sessions, sid)
				metrics.SessionsActive.Dec()
			}
		}
		if len(sessions) == 0 {
			delete(t.docs, key)
			orphaned = append(orphaned, key)
		}
	}
	return orphaned
}
