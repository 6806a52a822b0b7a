package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"myshop-backend/internal/chat"
	"myshop-backend/internal/middleware"
	"myshop-backend/internal/models"
	"myshop-backend/internal/services"
)

type AIHandler struct {
	ollama   *services.OllamaService
	sessions *chat.Manager
}

func NewAIHandler(ollama *services.OllamaService, sessions *chat.Manager) *AIHandler {
	return &AIHandler{ollama: ollama, sessions: sessions}
}

// Status reports model-server availability: 200 when online, 503 when
// offline. The result is advisory; Chat re-probes on every call.
func (h *AIHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.ollama.Probe(r.Context())

	if !status.Online {
		writeJSON(w, http.StatusServiceUnavailable, models.StatusResponse{
			Status:  "offline",
			Error:   status.Error,
			Details: status.Details,
		})
		return
	}

	writeJSON(w, http.StatusOK, models.StatusResponse{
		Status:  "online",
		Version: status.Version,
	})
}

// Chat proxies one message plus the trailing conversation window to the
// model server and relays the reply.
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	reply, err := h.ollama.Chat(r.Context(), req.Message, req.Conversation)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}

func (h *AIHandler) writeChatError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrServiceUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":    "Ollama service unavailable",
			"solution": "Please ensure Ollama is running with `ollama serve`",
		})
		return
	}

	var upstreamErr *services.UpstreamError
	if errors.As(err, &upstreamErr) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "AI service error",
			"details": upstreamErr.Detail,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "AI service error",
		"details": err.Error(),
	})
}

// History returns the model-server status and the caller's stored
// transcript, the two things the chat widget needs when it opens.
func (h *AIHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	session := h.sessions.Session(userID)

	status, conversation := session.Open(r.Context())

	statusStr := "offline"
	if status.Online {
		statusStr = "online"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       statusStr,
		"conversation": conversation,
	})
}

// ClearHistory wipes the caller's stored transcript.
func (h *AIHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	session := h.sessions.Session(userID)

	if err := session.Clear(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to clear history", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}
