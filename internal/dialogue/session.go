package dialogue

import (
	"sync"
	"time"

	"voicepay/internal/domain"
)

// session is guarded by its own mutex for the length of a turn, so turns on
// one session run one at a time while distinct sessions proceed in parallel.
type session struct {
	mu sync.Mutex

	id          string
	deviceID    string
	startedAt   time.Time
	lastActive  time.Time
	tx          *domain.TransactionState
	snapshotKey string
	ended       bool
}

func (s *session) state() domain.DialogueState {
	if s.tx != nil && s.tx.ConfirmationPending {
		return domain.StateAwaitingConfirmation
	}
	return domain.StateIdle
}

type sessionRegistry struct {
	mu   sync.Mutex
	data map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{data: make(map[string]*session)}
}

func (r *sessionRegistry) getOrCreate(id string, now time.Time) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		s = &session{id: id, startedAt: now, lastActive: now}
		r.data[id] = s
	}
	return s
}

func (r *sessionRegistry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	return s, ok
}

func (r *sessionRegistry) remove(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	delete(r.data, id)
	return s, ok
}

// removeIf drops id only while it still maps to s.
func (r *sessionRegistry) removeIf(id string, s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data[id] != s {
		return false
	}
	delete(r.data, id)
	return true
}

func (r *sessionRegistry) snapshot() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session, 0, len(r.data))
	for _, s := range r.data {
		out = append(out, s)
	}
	return out
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}
