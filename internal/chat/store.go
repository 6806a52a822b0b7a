package chat

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"myshop-backend/internal/models"
)

const historyKeyPrefix = "chat:history:"

// Store persists one conversation per user as a single serialized blob.
// Every append rewrites the whole blob; there is no concurrent-writer
// protection, the last write wins. That is acceptable because each user
// drives exactly one chat session at a time.
type Store struct {
	redis *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func historyKey(userID uuid.UUID) string {
	return historyKeyPrefix + userID.String()
}

// Load returns the stored conversation. A missing or unparsable blob
// yields an empty conversation — corrupt state resets instead of
// blocking the chat.
func (s *Store) Load(ctx context.Context, userID uuid.UUID) []models.ChatMessage {
	blob, err := s.redis.Get(ctx, historyKey(userID)).Bytes()
	if err != nil {
		return []models.ChatMessage{}
	}

	var conversation []models.ChatMessage
	if err := json.Unmarshal(blob, &conversation); err != nil {
		return []models.ChatMessage{}
	}
	return conversation
}

// Append adds msg to the end of the conversation and rewrites the blob.
// The updated conversation is returned even when persistence fails;
// persistence is best-effort.
func (s *Store) Append(ctx context.Context, userID uuid.UUID, msg models.ChatMessage) ([]models.ChatMessage, error) {
	conversation := append(s.Load(ctx, userID), msg)

	blob, err := json.Marshal(conversation)
	if err != nil {
		return conversation, err
	}

	if err := s.redis.Set(ctx, historyKey(userID), blob, 0).Err(); err != nil {
		return conversation, err
	}
	return conversation, nil
}

// Clear removes the stored conversation.
func (s *Store) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.redis.Del(ctx, historyKey(userID)).Err()
}
