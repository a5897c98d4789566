package session

import (
	"sync"

	"github.com/ksugimoto/hislipd/hislip"
)

// Registry is the process-wide mapping from session_id to Session. The
// registry lock guards only the map and the id counter; it is never held
// across I/O, and is never acquired while a Session's own lock is held
// (lock ordering: registry before session, never the reverse), matching
// spec.md's concurrency model.
type Registry struct {
	mu       sync.Mutex
	sessions map[uint16]*Session
	nextID   uint16
	maxCount int
}

// NewRegistry creates an empty Registry. maxCount bounds the number of
// concurrently live sessions (spec.md's resource bound, default 64).
func NewRegistry(maxCount int) *Registry {
	return &Registry{
		sessions: make(map[uint16]*Session),
		nextID:   1, // 0 is reserved as "no session"
		maxCount: maxCount,
	}
}

// Create allocates the next session id, constructs a Session, and
// registers it. Returns ErrAtCapacity if the registry is already at its
// configured ceiling.
func (r *Registry) Create(subAddress string, version hislip.Version, overlapMode bool, syncHandler ChannelHandler, maxMessageSize uint64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.maxCount {
		return nil, ErrAtCapacity
	}

	id := r.allocateIDLocked()
	s := New(id, subAddress, version, overlapMode, syncHandler, maxMessageSize)
	r.sessions[id] = s
	return s, nil
}

// allocateIDLocked finds the next unused 16-bit id, skipping 0 and any id
// currently held by a live session. Ids are handed out in strictly
// increasing order within a wraparound sweep, so two concurrently live
// sessions never collide.
func (r *Registry) allocateIDLocked() uint16 {
	for {
		if r.nextID == 0 {
			r.nextID = 1
		}
		id := r.nextID
		r.nextID++
		if _, taken := r.sessions[id]; !taken {
			return id
		}
	}
}

// Get returns the session registered under id.
func (r *Registry) Get(id uint16) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// AttachAsync looks up a session by id and attaches the async handler to
// it, refusing a second attach (spec.md scenario 6: dual-attach refusal).
func (r *Registry) AttachAsync(id uint16, h ChannelHandler) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	if !s.AttachAsync(h) {
		return nil, ErrAlreadyAttached
	}
	return s, nil
}

// Disconnect removes a session from the registry. Idempotent: removing an
// id already absent is a no-op. Does not itself close any socket; callers
// (the Connection Handler) are responsible for tearing down both
// underlying TCP connections.
func (r *Registry) Disconnect(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.ID())
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
