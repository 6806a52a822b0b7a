package models

// Message senders as stored in a conversation. Anything that is not the
// user is treated as the assistant when mapping to upstream roles.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// ChatMessage is a single bubble in a conversation. Messages are
// append-only; the transcript order is chronological.
type ChatMessage struct {
	Sender string `json:"sender"` // "user" or "assistant"
	Text   string `json:"text"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message      string        `json:"message"`
	Conversation []ChatMessage `json:"conversation"`
}

// ChatResponse is the reply relayed from the model server.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// StatusResponse reports model-server availability.
type StatusResponse struct {
	Status  string `json:"status"` // "online" or "offline"
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}
