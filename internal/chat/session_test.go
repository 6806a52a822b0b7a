package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"myshop-backend/internal/models"
	"myshop-backend/internal/services"
)

// fakeAssistant scripts the proxy result and records invocations.
type fakeAssistant struct {
	mu        sync.Mutex
	status    services.Status
	reply     string
	err       error
	chatCalls int
	gotMsg    string
	gotConv   []models.ChatMessage
	block     chan struct{} // when set, Chat blocks until closed
}

func (f *fakeAssistant) Probe(ctx context.Context) services.Status {
	return f.status
}

func (f *fakeAssistant) Chat(ctx context.Context, message string, conversation []models.ChatMessage) (string, error) {
	f.mu.Lock()
	f.chatCalls++
	f.gotMsg = message
	f.gotConv = conversation
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return f.reply, f.err
}

func newTestSession(t *testing.T, ai *fakeAssistant) (*Session, *Store, uuid.UUID) {
	t.Helper()
	store := NewStore(newTestRedis(t))
	userID := uuid.New()
	return NewSession(store, ai, userID), store, userID
}

func TestSendSuccessAppendsBothMessages(t *testing.T) {
	ai := &fakeAssistant{status: services.Status{Online: true}, reply: "Здравствуйте"}
	session, store, userID := newTestSession(t, ai)

	conversation, err := session.Send(context.Background(), "Привет")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	want := []models.ChatMessage{
		{Sender: models.SenderUser, Text: "Привет"},
		{Sender: models.SenderAssistant, Text: "Здравствуйте"},
	}
	if len(conversation) != 2 || conversation[0] != want[0] || conversation[1] != want[1] {
		t.Fatalf("unexpected conversation: %+v", conversation)
	}

	// Persisted, not just returned.
	stored := store.Load(context.Background(), userID)
	if len(stored) != 2 || stored[1].Text != "Здравствуйте" {
		t.Errorf("unexpected stored transcript: %+v", stored)
	}
}

func TestSendPassesPreAppendSnapshot(t *testing.T) {
	ai := &fakeAssistant{status: services.Status{Online: true}, reply: "ok"}
	session, store, userID := newTestSession(t, ai)
	ctx := context.Background()

	store.Append(ctx, userID, models.ChatMessage{Sender: models.SenderUser, Text: "earlier"})
	store.Append(ctx, userID, models.ChatMessage{Sender: models.SenderAssistant, Text: "reply"})

	if _, err := session.Send(ctx, "new question"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if ai.gotMsg != "new question" {
		t.Errorf("expected message %q, got %q", "new question", ai.gotMsg)
	}
	// The proxy sees the conversation as it was before the optimistic
	// append of the new user message.
	if len(ai.gotConv) != 2 {
		t.Fatalf("expected 2-message snapshot, got %d", len(ai.gotConv))
	}
	if ai.gotConv[1].Text != "reply" {
		t.Errorf("unexpected snapshot tail: %+v", ai.gotConv[1])
	}
}

func TestSendUnavailableAppendsLocalizedBubble(t *testing.T) {
	ai := &fakeAssistant{
		status: services.Status{Online: false},
		err:    services.ErrServiceUnavailable,
	}
	session, store, userID := newTestSession(t, ai)

	conversation, err := session.Send(context.Background(), "Привет")
	if err != nil {
		t.Fatalf("send should absorb proxy failures, got %v", err)
	}

	if len(conversation) != 2 {
		t.Fatalf("expected user message plus one bubble, got %+v", conversation)
	}
	if conversation[1].Sender != models.SenderAssistant || conversation[1].Text != bubbleUnavailable {
		t.Errorf("unexpected bubble: %+v", conversation[1])
	}

	stored := store.Load(context.Background(), userID)
	if len(stored) != 2 || stored[0].Text != "Привет" {
		t.Errorf("original user message must remain present: %+v", stored)
	}
}

func TestSendGenericFailureAppendsGenericBubble(t *testing.T) {
	ai := &fakeAssistant{
		status: services.Status{Online: true},
		err:    services.ErrInvalidResponse,
	}
	session, _, _ := newTestSession(t, ai)

	conversation, err := session.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if conversation[1].Text != bubbleGeneric {
		t.Errorf("expected generic bubble, got %q", conversation[1].Text)
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	ai := &fakeAssistant{status: services.Status{Online: true}, reply: "ok"}
	session, store, userID := newTestSession(t, ai)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := session.Send(context.Background(), text); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("text %q: expected ErrEmptyMessage, got %v", text, err)
		}
	}

	if ai.chatCalls != 0 {
		t.Errorf("expected no proxy calls, got %d", ai.chatCalls)
	}
	if stored := store.Load(context.Background(), userID); len(stored) != 0 {
		t.Errorf("expected nothing persisted, got %+v", stored)
	}
}

func TestSendSingleFlight(t *testing.T) {
	block := make(chan struct{})
	ai := &fakeAssistant{status: services.Status{Online: true}, reply: "ok", block: block}
	session, _, _ := newTestSession(t, ai)

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Send(context.Background(), "first")
	}()

	// Wait until the first send is inside the proxy call.
	for {
		ai.mu.Lock()
		calls := ai.chatCalls
		ai.mu.Unlock()
		if calls == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := session.Send(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy while sending, got %v", err)
	}

	close(block)
	<-done

	// Back to idle: sends are accepted again.
	if _, err := session.Send(context.Background(), "third"); err != nil {
		t.Errorf("expected send to succeed after idle, got %v", err)
	}
}

func TestOpenReturnsStatusAndTranscript(t *testing.T) {
	ai := &fakeAssistant{status: services.Status{Online: true, Version: "0.1.30"}}
	session, store, userID := newTestSession(t, ai)
	ctx := context.Background()

	store.Append(ctx, userID, models.ChatMessage{Sender: models.SenderUser, Text: "hi"})

	status, conversation := session.Open(ctx)
	if !status.Online {
		t.Error("expected online status")
	}
	if len(conversation) != 1 || conversation[0].Text != "hi" {
		t.Errorf("unexpected transcript: %+v", conversation)
	}
}

func TestClearResetsTranscript(t *testing.T) {
	ai := &fakeAssistant{status: services.Status{Online: true}, reply: "ok"}
	session, store, userID := newTestSession(t, ai)
	ctx := context.Background()

	session.Send(ctx, "hello")
	if err := session.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if stored := store.Load(ctx, userID); len(stored) != 0 {
		t.Errorf("expected empty transcript after clear, got %+v", stored)
	}
}

func TestManagerReturnsSameSessionPerUser(t *testing.T) {
	ai := &fakeAssistant{status: services.Status{Online: true}}
	manager := NewManager(NewStore(newTestRedis(t)), ai)

	a := uuid.New()
	b := uuid.New()

	if manager.Session(a) != manager.Session(a) {
		t.Error("expected the same session for the same user")
	}
	if manager.Session(a) == manager.Session(b) {
		t.Error("expected distinct sessions for distinct users")
	}
}
