// Package session keeps conversation state in process memory. Each session
// owns one turn.Conversation and serializes every operation on it. Sessions
// idle longer than the store's TTL are swept, and the store never holds more
// than its configured maximum.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/marquee/internal/metrics"
	"github.com/MikeSquared-Agency/marquee/internal/turn"
)

var ErrNotFound = errors.New("conversation not found")

// State is the mutable part of a session. It is only touched inside Update.
type State struct {
	Conversation *turn.Conversation
	Transcript   []turn.Message
	// ShownPosters holds titles whose poster was already attached.
	ShownPosters map[string]struct{}
}

func newState(opening []turn.Message) State {
	return State{
		Conversation: &turn.Conversation{},
		Transcript:   slices.Clone(opening),
		ShownPosters: make(map[string]struct{}),
	}
}

type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	// lastUsed is unix nanoseconds, readable without waiting on a running turn.
	lastUsed atomic.Int64
	clock    func() time.Time

	mu    sync.Mutex
	state State
}

func (s *Session) touch() {
	s.lastUsed.Store(s.clock().UnixNano())
}

// LastUsed reports when the session was last created, updated or reset.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load()).UTC()
}

// Update runs fn with exclusive access to the session state. Turns on the
// same conversation run one at a time.
func (s *Session) Update(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	fn(&s.state)
}

// Snapshot returns a copy of the state that is safe to read concurrently.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	shown := make(map[string]struct{}, len(s.state.ShownPosters))
	for k := range s.state.ShownPosters {
		shown[k] = struct{}{}
	}
	return State{
		Conversation: s.state.Conversation.Clone(),
		Transcript:   slices.Clone(s.state.Transcript),
		ShownPosters: shown,
	}
}

// Reset clears used titles, history, transcript and shown posters, leaving
// only the opening messages.
func (s *Session) Reset(opening ...turn.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.state = newState(opening)
}

type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	max      int
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore returns an empty store. ttl <= 0 disables idle expiry and
// maxSessions <= 0 disables the cap.
func NewStore(ttl time.Duration, maxSessions int, logger *slog.Logger) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		max:      maxSessions,
		now:      time.Now,
		logger:   logger,
	}
}

// Create registers a new session whose transcript starts with opening. When
// the store is full the least recently used session is evicted first.
func (s *Store) Create(opening ...turn.Message) *Session {
	created := s.now().UTC()
	sess := &Session{
		ID:        uuid.New(),
		CreatedAt: created,
		clock:     s.now,
		state:     newState(opening),
	}
	sess.touch()

	s.mu.Lock()
	var evicted uuid.UUID
	if s.max > 0 && len(s.sessions) >= s.max {
		evicted = s.oldestLocked()
		delete(s.sessions, evicted)
	}
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveConversations.Set(float64(n))
	if evicted != uuid.Nil {
		metrics.EvictedConversations.WithLabelValues("capacity").Inc()
		s.logger.Info("conversation evicted", "conversation_id", evicted.String(), "reason", "capacity")
	}
	s.logger.Info("conversation created", "conversation_id", sess.ID.String(), "active", n)
	return sess
}

func (s *Store) oldestLocked() uuid.UUID {
	var (
		oldest uuid.UUID
		at     int64
	)
	for id, sess := range s.sessions {
		if t := sess.lastUsed.Load(); oldest == uuid.Nil || t < at {
			oldest, at = id, t
		}
	}
	return oldest
}

func (s *Store) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Lookup parses a conversation id and returns its session.
func (s *Store) Lookup(rawID string) (*Session, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.Get(id)
}

// Delete removes a session. A turn already running on it finishes against the
// detached state.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveConversations.Set(float64(n))
	s.logger.Info("conversation deleted", "conversation_id", id.String(), "active", n)
	return nil
}

// Sweep removes sessions idle for longer than the TTL as of now and returns
// how many were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-s.ttl).UnixNano()

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Load() < cutoff {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		metrics.ActiveConversations.Set(float64(n))
		metrics.EvictedConversations.WithLabelValues("idle").Add(float64(removed))
		s.logger.Info("idle conversations swept", "removed", removed, "active", n)
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
