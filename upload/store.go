package upload

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an abandoned upload session survives before the
// store's sweep evicts it.
const DefaultTTL = 30 * time.Minute

// entry pairs a Session with the time its tracker store slot expires absent
// further activity. Get extends expiry on every lookup.
type entry struct {
	session *Session
	expires time.Time
}

// Store is the process-local TTL cache of in-flight upload sessions.
// Sessions are created by Create, mutated by
// concurrent AcceptChunkStream calls obtained via Get, and removed by Remove
// before Merge/Commit runs — callers must not submit new chunks once a
// session has been removed.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
	ttl      time.Duration
	logger   *slog.Logger

	stop chan struct{}
	once sync.Once
}

// NewStore builds a Store with the given TTL (DefaultTTL if ttl <= 0) and
// starts its background sweep goroutine.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		sessions: make(map[uuid.UUID]*entry),
		ttl:      ttl,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Create registers a new Session under a fresh UUID v4 session id.
func (s *Store) Create(meta SessionMeta, chunkSize uint32, tmpDir, finalDir string) (uuid.UUID, *Session, error) {
	sessionID, err := uuid.NewRandom()
	if err != nil {
		return uuid.UUID{}, nil, err
	}
	sess, err := NewSession(meta, sessionID, chunkSize, tmpDir, finalDir)
	if err != nil {
		return uuid.UUID{}, nil, err
	}
	s.mu.Lock()
	s.sessions[sessionID] = &entry{session: sess, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return sessionID, sess, nil
}

// Get returns the live Session for id, extending its TTL, or ok=false if no
// such session exists (never created, already committed, or TTL-evicted).
func (s *Store) Get(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	e.expires = time.Now().Add(s.ttl)
	return e.session, true
}

// Remove deletes id from the store. Commit callers must Remove before
// calling Session.Commit so no further chunk can be submitted concurrently
// with the merge/commit sequence.
func (s *Store) Remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Close stops the background sweep goroutine.
func (s *Store) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	evicted := make(map[uuid.UUID]*Session)
	for id, e := range s.sessions {
		if now.After(e.expires) {
			evicted[id] = e.session
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for id, sess := range evicted {
		sess.Cleanup()
		s.logger.Info("upload: session evicted by ttl", "session_id", id.String())
	}
}
