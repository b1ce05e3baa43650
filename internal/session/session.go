package session

import (
	"context"
	"sync"
)

// Form names a multi-step conversation.
type Form string

const (
	FormNewTicket        Form = "new_ticket"
	FormStatusChange     Form = "status_change"
	FormAssignSpecialist Form = "assign_specialist"
	FormCheckStatus      Form = "check_status"
)

// Step names the input a form is waiting for.
type Step string

// Session is the transient state of one actor's active form.
type Session struct {
	Form Form              `json:"form"`
	Step Step              `json:"step"`
	Data map[string]string `json:"data"`
}

// New starts a session for form at its first step.
func New(form Form, step Step) *Session {
	return &Session{Form: form, Step: step, Data: map[string]string{}}
}

// Get returns a collected field, empty when absent.
func (s *Session) Get(key string) string {
	if s == nil || s.Data == nil {
		return ""
	}
	return s.Data[key]
}

// Set stores a collected field.
func (s *Session) Set(key, value string) {
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	s.Data[key] = value
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := &Session{Form: s.Form, Step: s.Step, Data: make(map[string]string, len(s.Data))}
	for k, v := range s.Data {
		c.Data[k] = v
	}
	return c
}

// Store keeps at most one session per actor. Saving replaces whatever was
// there before.
type Store interface {
	// Load returns nil, nil when the actor has no active session.
	Load(ctx context.Context, actorID int64) (*Session, error)
	Save(ctx context.Context, actorID int64, s *Session) error
	Clear(ctx context.Context, actorID int64) error
}

// MemoryStore keeps sessions in process memory; they are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

func (m *MemoryStore) Load(_ context.Context, actorID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[actorID].Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, actorID int64, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[actorID] = s.Clone()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, actorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, actorID)
	return nil
}
