package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"myshop-backend/internal/models"
	"myshop-backend/internal/services"
)

// Localized fallback bubbles shown in place of an assistant reply when
// the proxy call fails. Errors are rendered like normal replies so the
// user always sees a response instead of a crash or a blank state.
const (
	bubbleUnavailable = "Сервис ИИ временно недоступен. Попробуйте позже."
	bubbleGeneric     = "Произошла ошибка при обработке запроса"
)

var (
	// ErrBusy is returned when a send arrives while another one for the
	// same session is still in flight.
	ErrBusy = errors.New("a message is already being processed")

	// ErrEmptyMessage is returned when the trimmed message is empty.
	ErrEmptyMessage = errors.New("message is empty")
)

// assistant is the slice of the Ollama service a session needs.
type assistant interface {
	Probe(ctx context.Context) services.Status
	Chat(ctx context.Context, message string, conversation []models.ChatMessage) (string, error)
}

// Session drives one user's chat: probe on open, single-flight sends,
// optimistic user-message append, reply or fallback bubble append. It is
// either idle or sending; sends are rejected unless idle, so the
// single-flight rule holds regardless of how the UI is wired.
type Session struct {
	userID uuid.UUID
	store  *Store
	ai     assistant

	mu      sync.Mutex
	sending bool
}

func NewSession(store *Store, ai assistant, userID uuid.UUID) *Session {
	return &Session{userID: userID, store: store, ai: ai}
}

// Open probes the model server and loads the stored transcript, the two
// effects the widget triggers when it opens.
func (s *Session) Open(ctx context.Context) (services.Status, []models.ChatMessage) {
	status := s.ai.Probe(ctx)
	conversation := s.store.Load(ctx, s.userID)
	return status, conversation
}

// Send runs one full chat turn and returns the updated conversation.
// Proxy failures never fail the turn: they are appended as localized
// assistant bubbles. Only ErrBusy and ErrEmptyMessage are returned as
// errors.
func (s *Session) Send(ctx context.Context, text string) ([]models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.sending = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	// Snapshot before the optimistic append; the proxy gets the
	// conversation as it was when the user hit send.
	snapshot := s.store.Load(ctx, s.userID)

	conversation, err := s.store.Append(ctx, s.userID, models.ChatMessage{
		Sender: models.SenderUser,
		Text:   text,
	})
	if err != nil {
		log.Printf("chat: failed to persist user message for %s: %v", s.userID, err)
	}

	reply, chatErr := s.ai.Chat(ctx, text, snapshot)
	if chatErr != nil {
		reply = bubbleGeneric
		if errors.Is(chatErr, services.ErrServiceUnavailable) {
			reply = bubbleUnavailable
		}
		log.Printf("chat: proxy call failed for %s: %v", s.userID, chatErr)
	}

	conversation, err = s.store.Append(ctx, s.userID, models.ChatMessage{
		Sender: models.SenderAssistant,
		Text:   reply,
	})
	if err != nil {
		log.Printf("chat: failed to persist assistant message for %s: %v", s.userID, err)
	}

	return conversation, nil
}

// Clear wipes the stored transcript, independent of the sending state.
func (s *Session) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.userID)
}

// Manager hands out one session per user so the single-flight guard
// spans concurrent HTTP requests from the same account.
type Manager struct {
	store *Store
	ai    assistant

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager(store *Store, ai assistant) *Manager {
	return &Manager{
		store:    store,
		ai:       ai,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (m *Manager) Session(userID uuid.UUID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := NewSession(m.store, m.ai, userID)
	m.sessions[userID] = s
	return s
}
