// conversation.go
package main

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/djamal195/last/mistral"
)

const (
	// Number of turns kept per user.
	maxHistoryLength = 10

	// History older than this is dropped and idle conversations are
	// deleted outright.
	maxHistoryAge = 24 * time.Hour

	// Character budget for history sent to the model, roughly 4000
	// tokens at 4 characters per token.
	maxHistoryChars = 16000
)

// ConversationStore keeps per-user chat history in the conversations
// collection so the assistant remembers recent turns.
type ConversationStore struct {
	conversations *mongo.Collection
}

func NewConversationStore(db *mongo.Database) *ConversationStore {
	return &ConversationStore{conversations: db.Collection("conversations")}
}

// AddMessage appends one turn to the user's history, keeping only the
// most recent turns.
func (s *ConversationStore) AddMessage(ctx context.Context, userID, role, content string) error {
	now := time.Now()
	msg := StoredMessage{
		Role:      role,
		Content:   content,
		Timestamp: now,
	}

	_, err := s.conversations.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$push": bson.M{
				"messages": bson.M{
					"$each":  bson.A{msg},
					"$slice": -maxHistoryLength,
				},
			},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error saving message for user %s: %v", userID, err)
	}

	LogDebug("💾 Message added to history for user %s (role: %s)", userID, role)
	return nil
}

// History returns the user's recent turns formatted for the model.
// Stale turns are dropped and the total size is capped; when either
// trims something, the stored document is rewritten to match.
func (s *ConversationStore) History(ctx context.Context, userID string) ([]mistral.Message, error) {
	var conv Conversation
	err := s.conversations.FindOne(ctx, bson.M{"user_id": userID}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading history for user %s: %v", userID, err)
	}

	now := time.Now()
	kept := filterRecentMessages(conv.Messages, now)
	kept = trimToCharBudget(kept, maxHistoryChars)

	if len(kept) != len(conv.Messages) {
		// Best effort: a failed rewrite only means we trim again next
		// time.
		_, err := s.conversations.UpdateOne(ctx,
			bson.M{"user_id": userID},
			bson.M{"$set": bson.M{"messages": kept, "updated_at": now}},
		)
		if err != nil {
			LogWarn("Could not persist trimmed history for user %s: %v", userID, err)
		}
	}

	history := make([]mistral.Message, 0, len(kept))
	for _, msg := range kept {
		history = append(history, mistral.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return history, nil
}

// ClearUserHistory deletes one user's conversation document.
func (s *ConversationStore) ClearUserHistory(ctx context.Context, userID string) error {
	result, err := s.conversations.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("error clearing history for user %s: %v", userID, err)
	}

	if result.DeletedCount > 0 {
		log.Printf("🧹 History cleared for user %s", userID)
	}
	return nil
}

// ClearOldHistories deletes conversations idle past the retention window
// and strips stale turns from the remaining ones. Returns the number of
// deleted conversations.
func (s *ConversationStore) ClearOldHistories(ctx context.Context) (int64, error) {
	now := time.Now()
	cutoff := now.Add(-maxHistoryAge)

	result, err := s.conversations.DeleteMany(ctx, bson.M{
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("error deleting idle conversations: %v", err)
	}

	cursor, err := s.conversations.Find(ctx, bson.M{})
	if err != nil {
		return result.DeletedCount, fmt.Errorf("error listing conversations: %v", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var conv Conversation
		if err := cursor.Decode(&conv); err != nil {
			LogWarn("Skipping undecodable conversation: %v", err)
			continue
		}

		kept := filterRecentMessages(conv.Messages, now)
		if len(kept) == len(conv.Messages) {
			continue
		}

		_, err := s.conversations.UpdateOne(ctx,
			bson.M{"user_id": conv.UserID},
			bson.M{"$set": bson.M{"messages": kept, "updated_at": now}},
		)
		if err != nil {
			LogWarn("Could not trim history for user %s: %v", conv.UserID, err)
			continue
		}
		log.Printf("🧹 Trimmed %d stale messages for user %s", len(conv.Messages)-len(kept), conv.UserID)
	}
	if err := cursor.Err(); err != nil {
		return result.DeletedCount, fmt.Errorf("error iterating conversations: %v", err)
	}

	log.Printf("🧹 History cleanup done, %d conversations deleted", result.DeletedCount)
	return result.DeletedCount, nil
}

// filterRecentMessages keeps only the turns younger than the retention
// window.
func filterRecentMessages(messages []StoredMessage, now time.Time) []StoredMessage {
	kept := make([]StoredMessage, 0, len(messages))
	for _, msg := range messages {
		if now.Sub(msg.Timestamp) < maxHistoryAge {
			kept = append(kept, msg)
		}
	}
	return kept
}

// trimToCharBudget drops the oldest turns until the total content length
// in characters fits the budget. A single oversized turn can empty the
// result.
func trimToCharBudget(messages []StoredMessage, budget int) []StoredMessage {
	total := 0
	for _, msg := range messages {
		total += utf8.RuneCountInString(msg.Content)
	}

	start := 0
	for total > budget && start < len(messages) {
		total -= utf8.RuneCountInString(messages[start].Content)
		start++
	}
	return messages[start:]
}
