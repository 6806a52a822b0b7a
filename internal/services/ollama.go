package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"myshop-backend/internal/models"
)

// ContextWindow is how many trailing conversation messages are forwarded
// to the model with each request.
const ContextWindow = 6

// DefaultSystemPrompt pins the assistant to Russian-only replies.
const DefaultSystemPrompt = "Ты ассистент, который отвечает только на русском языке. Все ответы должны быть на русском."

var (
	// ErrServiceUnavailable covers every connectivity-like failure: the
	// probe reported offline, the upstream refused the connection, or the
	// call timed out.
	ErrServiceUnavailable = errors.New("ollama service unavailable")

	// ErrInvalidResponse means the upstream answered 2xx but the body did
	// not carry a message content field.
	ErrInvalidResponse = errors.New("invalid response format from Ollama")
)

// UpstreamError carries the error detail Ollama returned with a non-2xx
// status.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ollama returned status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("ollama returned status %d", e.StatusCode)
}

// Status is the result of one availability probe. It is advisory UI
// state; Chat re-probes before every upstream call regardless.
type Status struct {
	Online  bool
	Version string
	Error   string
	Details string
}

type OllamaConfig struct {
	Host         string
	Model        string
	SystemPrompt string
	ProbeTimeout time.Duration
	ChatTimeout  time.Duration
	HTTPClient   *http.Client
}

type OllamaService struct {
	cfg OllamaConfig
}

func NewOllamaService(cfg OllamaConfig) *OllamaService {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama2"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &OllamaService{cfg: cfg}
}

// Probe checks whether the model server answers at all. Failures are
// absorbed into an offline status, never returned as an error.
func (s *OllamaService) Probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(s.cfg.Host, "/"), nil)
	if err != nil {
		return offlineStatus(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return offlineStatus(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return offlineStatus(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	status := Status{Online: true, Version: "unknown"}

	// The root endpoint may answer with plain text ("Ollama is running")
	// or JSON carrying a version field; either counts as online.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil {
		var versionInfo struct {
			Version string `json:"version"`
		}
		if json.Unmarshal(body, &versionInfo) == nil && versionInfo.Version != "" {
			status.Version = versionInfo.Version
		}
	}

	return status
}

func offlineStatus(err error) Status {
	return Status{
		Online:  false,
		Error:   "Ollama service is not running",
		Details: err.Error(),
	}
}

// Chat forwards one user message plus the trailing conversation window to
// the model server and returns the reply text. Exactly one of reply or
// error is produced; the caller's conversation is never mutated here.
func (s *OllamaService) Chat(ctx context.Context, message string, conversation []models.ChatMessage) (string, error) {
	// Availability is re-checked right before sending; the widget's
	// status indicator can be stale by the time the user hits send.
	if status := s.Probe(ctx); !status.Online {
		return "", fmt.Errorf("%w: %s", ErrServiceUnavailable, status.Details)
	}

	payload, err := json.Marshal(s.buildChatPayload(message, conversation))
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ChatTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(s.cfg.Host, "/")+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{
			StatusCode: resp.StatusCode,
			Detail:     upstreamErrorDetail(body),
		}
	}

	return parseChatResponse(body)
}

type upstreamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model    string            `json:"model"`
	Messages []upstreamMessage `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  chatOptions       `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx"`
}

// buildChatPayload assembles the upstream message list: the fixed system
// instruction, the last ContextWindow conversation entries in original
// order, then the new message as a final user turn.
func (s *OllamaService) buildChatPayload(message string, conversation []models.ChatMessage) chatPayload {
	window := conversation
	if len(window) > ContextWindow {
		window = window[len(window)-ContextWindow:]
	}

	messages := make([]upstreamMessage, 0, len(window)+2)
	messages = append(messages, upstreamMessage{Role: "system", Content: s.cfg.SystemPrompt})
	for _, msg := range window {
		role := "assistant"
		if msg.Sender == models.SenderUser {
			role = "user"
		}
		messages = append(messages, upstreamMessage{Role: role, Content: msg.Text})
	}
	messages = append(messages, upstreamMessage{Role: "user", Content: message})

	return chatPayload{
		Model:    s.cfg.Model,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{Temperature: 0.7, NumCtx: 2048},
	}
}

func parseChatResponse(body []byte) (string, error) {
	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", ErrInvalidResponse
	}
	if resp.Message.Content == "" {
		return "", ErrInvalidResponse
	}
	return resp.Message.Content, nil
}

func upstreamErrorDetail(body []byte) string {
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return strings.TrimSpace(string(body))
}
