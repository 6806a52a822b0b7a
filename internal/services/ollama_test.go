package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"myshop-backend/internal/models"
)

func newTestService(upstreamURL string) *OllamaService {
	return NewOllamaService(OllamaConfig{
		Host:         upstreamURL,
		Model:        "llama2",
		ProbeTimeout: time.Second,
		ChatTimeout:  2 * time.Second,
	})
}

func okUpstream(t *testing.T, reply string, gotMessages *[]upstreamMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			json.NewEncoder(w).Encode(map[string]string{"version": "0.1.30"})
			return
		}
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		var payload chatPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode upstream payload: %v", err)
		}
		if payload.Stream {
			t.Error("expected stream to be disabled")
		}
		if payload.Options.Temperature != 0.7 || payload.Options.NumCtx != 2048 {
			t.Errorf("unexpected options %+v", payload.Options)
		}
		if gotMessages != nil {
			*gotMessages = payload.Messages
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": reply},
		})
	}))
}

func TestProbeOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"version": "0.1.30"})
	}))
	defer server.Close()

	svc := newTestService(server.URL)
	status := svc.Probe(context.Background())

	if !status.Online {
		t.Fatalf("expected online, got %+v", status)
	}
	if status.Version != "0.1.30" {
		t.Errorf("expected version 0.1.30, got %q", status.Version)
	}
}

func TestProbePlainTextBodyStillOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	}))
	defer server.Close()

	status := newTestService(server.URL).Probe(context.Background())
	if !status.Online {
		t.Fatalf("expected online, got %+v", status)
	}
	if status.Version != "unknown" {
		t.Errorf("expected version unknown, got %q", status.Version)
	}
}

func TestProbeOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	status := newTestService(server.URL).Probe(context.Background())
	if status.Online {
		t.Fatal("expected offline for unreachable server")
	}
	if status.Error == "" || status.Details == "" {
		t.Errorf("expected error and details to be set, got %+v", status)
	}
}

func TestProbeNon2xxIsOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if status := newTestService(server.URL).Probe(context.Background()); status.Online {
		t.Fatal("expected offline for 500 response")
	}
}

func TestProbeIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"version": "0.1.30"})
	}))
	defer server.Close()

	svc := newTestService(server.URL)
	first := svc.Probe(context.Background())
	second := svc.Probe(context.Background())

	if first != second {
		t.Errorf("consecutive probes disagree: %+v vs %+v", first, second)
	}
}

func TestChatBuildsSystemPlusUserMessages(t *testing.T) {
	var got []upstreamMessage
	server := okUpstream(t, "Здравствуйте", &got)
	defer server.Close()

	svc := newTestService(server.URL)
	reply, err := svc.Chat(context.Background(), "Привет", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Здравствуйте" {
		t.Errorf("expected reply Здравствуйте, got %q", reply)
	}

	if len(got) != 2 {
		t.Fatalf("expected [system, user], got %d messages", len(got))
	}
	if got[0].Role != "system" || got[0].Content != DefaultSystemPrompt {
		t.Errorf("unexpected system message %+v", got[0])
	}
	if got[1].Role != "user" || got[1].Content != "Привет" {
		t.Errorf("unexpected user message %+v", got[1])
	}
}

func TestChatTrimsConversationToLastSix(t *testing.T) {
	conversation := make([]models.ChatMessage, 0, 8)
	for i := 1; i <= 8; i++ {
		sender := models.SenderUser
		if i%2 == 0 {
			sender = models.SenderAssistant
		}
		conversation = append(conversation, models.ChatMessage{
			Sender: sender,
			Text:   fmt.Sprintf("msg-%d", i),
		})
	}

	var got []upstreamMessage
	server := okUpstream(t, "ok", &got)
	defer server.Close()

	svc := newTestService(server.URL)
	if _, err := svc.Chat(context.Background(), "next", conversation); err != nil {
		t.Fatalf("chat: %v", err)
	}

	// 1 system + 6 window + 1 new message
	if len(got) != 8 {
		t.Fatalf("expected 8 upstream messages, got %d", len(got))
	}
	for i := 0; i < 6; i++ {
		want := fmt.Sprintf("msg-%d", i+3)
		if got[i+1].Content != want {
			t.Errorf("window position %d: expected %q, got %q", i, want, got[i+1].Content)
		}
	}
	if got[7].Role != "user" || got[7].Content != "next" {
		t.Errorf("unexpected final message %+v", got[7])
	}
}

func TestChatMapsSendersToRoles(t *testing.T) {
	conversation := []models.ChatMessage{
		{Sender: models.SenderUser, Text: "q1"},
		{Sender: models.SenderAssistant, Text: "a1"},
		{Sender: "ai", Text: "a2"}, // legacy sender value maps to assistant
	}

	var got []upstreamMessage
	server := okUpstream(t, "ok", &got)
	defer server.Close()

	if _, err := newTestService(server.URL).Chat(context.Background(), "q2", conversation); err != nil {
		t.Fatalf("chat: %v", err)
	}

	roles := []string{"system", "user", "assistant", "assistant", "user"}
	for i, want := range roles {
		if got[i].Role != want {
			t.Errorf("message %d: expected role %q, got %q", i, want, got[i].Role)
		}
	}
}

func TestChatOfflineSkipsUpstreamCall(t *testing.T) {
	var chatCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" {
			chatCalls.Add(1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := newTestService(server.URL)
	_, err := svc.Chat(context.Background(), "hello", nil)

	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if n := chatCalls.Load(); n != 0 {
		t.Errorf("expected zero upstream chat calls, got %d", n)
	}
}

func TestChatMalformedBodyIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			json.NewEncoder(w).Encode(map[string]string{"version": "0.1.30"})
			return
		}
		fmt.Fprint(w, "{}")
	}))
	defer server.Close()

	_, err := newTestService(server.URL).Chat(context.Background(), "hello", nil)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestChatUpstreamErrorCarriesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'llama2' not found"})
	}))
	defer server.Close()

	_, err := newTestService(server.URL).Chat(context.Background(), "hello", nil)

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstreamErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", upstreamErr.StatusCode)
	}
	if upstreamErr.Detail != "model 'llama2' not found" {
		t.Errorf("unexpected detail %q", upstreamErr.Detail)
	}
}

func TestParseChatResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"valid reply", `{"message":{"role":"assistant","content":"hi"}}`, "hi", false},
		{"empty object", `{}`, "", true},
		{"empty content", `{"message":{"content":""}}`, "", true},
		{"not json", `<html>`, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseChatResponse([]byte(tc.body))
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidResponse) {
					t.Fatalf("expected ErrInvalidResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
