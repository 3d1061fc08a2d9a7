package memory

import (
	"sort"
	"sync"
	"time"

	"finverse-chatbot/pkg/store"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultSessionTTL = 30 * time.Minute
	DefaultMaxTurns   = 10
)

type sessionEntry struct {
	mu      sync.Mutex
	session store.Session
}

// SessionRepository keeps conversations in memory. Sessions expire after
// ttl of inactivity; every append refreshes the expiry.
type SessionRepository struct {
	cache    *cache.Cache
	ttl      time.Duration
	maxTurns int
	createMu sync.Mutex
	now      func() time.Time
}

func NewSessionRepository(ttl time.Duration, maxTurns int) *SessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	// janitor sweeps expired sessions every ttl/3
	c := cache.New(ttl, ttl/3)
	return &SessionRepository{
		cache:    c,
		ttl:      ttl,
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

func (r *SessionRepository) entry(sessionID string, create bool) (*sessionEntry, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*sessionEntry), true
	}
	if !create {
		return nil, false
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()
	if x, found := r.cache.Get(sessionID); found {
		return x.(*sessionEntry), true
	}
	now := r.now()
	e := &sessionEntry{session: store.Session{ID: sessionID, CreatedAt: now, LastActivity: now}}
	r.cache.Set(sessionID, e, cache.DefaultExpiration)
	return e, true
}

// Append adds turn to the session, creating it on first use.
// History is trimmed to the most recent maxTurns turns.
func (r *SessionRepository) Append(sessionID string, turn store.Turn) {
	e, _ := r.entry(sessionID, true)

	e.mu.Lock()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = r.now()
	}
	e.session.Turns = append(e.session.Turns, turn)
	if over := len(e.session.Turns) - r.maxTurns; over > 0 {
		e.session.Turns = append([]store.Turn(nil), e.session.Turns[over:]...)
	}
	e.session.LastActivity = turn.Timestamp
	e.mu.Unlock()

	// re-set to push the expiry out
	r.cache.Set(sessionID, e, cache.DefaultExpiration)
}

// History returns a copy of the last n turns, oldest first. n <= 0 returns all.
func (r *SessionRepository) History(sessionID string, n int) []store.Turn {
	e, ok := r.entry(sessionID, false)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	turns := e.session.Turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]store.Turn, len(turns))
	copy(out, turns)
	return out
}

// Get returns a snapshot of the session
func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	e, ok := r.entry(sessionID, false)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	s.Turns = append([]store.Turn(nil), e.session.Turns...)
	return &s, true
}

func (r *SessionRepository) Exists(sessionID string) bool {
	_, ok := r.cache.Get(sessionID)
	return ok
}

// Delete removes the session and reports whether it existed
func (r *SessionRepository) Delete(sessionID string) bool {
	existed := r.Exists(sessionID)
	r.cache.Delete(sessionID)
	return existed
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

// List returns up to limit session snapshots without their turns, most
// recently active first. limit <= 0 returns all.
func (r *SessionRepository) List(limit int) []store.Session {
	items := r.cache.Items()
	sessions := make([]store.Session, 0, len(items))
	for id, item := range items {
		e := item.Object.(*sessionEntry)
		e.mu.Lock()
		s := e.session
		s.ID = id
		s.Turns = nil
		s.TurnCount = len(e.session.Turns)
		e.mu.Unlock()
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].LastActivity.Equal(sessions[j].LastActivity) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].LastActivity.After(sessions[j].LastActivity)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions
}

// Cleanup deletes sessions idle for longer than olderThan and returns how many went
func (r *SessionRepository) Cleanup(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)
	deleted := 0
	for id, item := range r.cache.Items() {
		e := item.Object.(*sessionEntry)
		e.mu.Lock()
		idle := e.session.LastActivity.Before(cutoff)
		e.mu.Unlock()
		if idle {
			r.cache.Delete(id)
			deleted++
		}
	}
	return deleted
}
