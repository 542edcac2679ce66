package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/ragchat/model"
)

// Session is the conversation state of one user.
// Its history and documents flag change together under one lock.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu                 sync.Mutex
	messages           []model.ConversationTurn
	documentsProcessed bool
	lastUsed           time.Time
}

func New() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New(),
		CreatedAt: now,
		messages:  []model.ConversationTurn{},
		lastUsed:  now,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastUsed) {
		s.lastUsed = now
	}
}

// LastUsed returns the time the session was last looked up.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Append adds a turn to the history.
func (s *Session) Append(role model.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, model.ConversationTurn{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
}

// Messages returns a copy of the history in order.
func (s *Session) Messages() []model.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]model.ConversationTurn, len(s.messages))
	copy(messages, s.messages)
	return messages
}

func (s *Session) MarkDocumentsProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentsProcessed = true
}

func (s *Session) DocumentsProcessed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentsProcessed
}

// ClearMessages drops the history but keeps the documents flag.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []model.ConversationTurn{}
}

// Reset drops the history and the documents flag at once.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []model.ConversationTurn{}
	s.documentsProcessed = false
}
