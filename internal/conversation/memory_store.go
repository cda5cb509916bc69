package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in a process-local map. Suitable for a
// single API instance; multi-instance deployments use RedisSessionStore.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*CallSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*CallSession)}
}

// Get returns a deep copy so callers never mutate shared state outside Put.
func (s *MemorySessionStore) Get(_ context.Context, callID string) (*CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[callID]
	if !ok {
		return nil, nil
	}
	return cloneSession(session), nil
}

func (s *MemorySessionStore) Put(_ context.Context, session *CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.CallID] = cloneSession(session)
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callID)
	return nil
}

func (s *MemorySessionStore) SweepExpired(_ context.Context, now time.Time, grace time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reaped []string
	for id, session := range s.sessions {
		if session.Expired(now, grace) {
			delete(s.sessions, id)
			reaped = append(reaped, id)
		}
	}
	return reaped, nil
}

// Len reports the number of live sessions. Used by tests and metrics.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func cloneSession(in *CallSession) *CallSession {
	// JSON round-trip keeps the copy honest as the struct evolves.
	data, err := json.Marshal(in)
	if err != nil {
		out := *in
		return &out
	}
	var out CallSession
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *in
		return &cp
	}
	return &out
}
