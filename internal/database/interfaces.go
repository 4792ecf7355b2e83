package database

import (
	"context"
	"time"

	"chatline/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, req *models.RegisterRequest, passwordHash string) (*models.User, error)
	GetUserByUserName(ctx context.Context, userName string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserVisibilityPreference(ctx context.Context, userID string) (bool, error)
	SetUserVisibilityPreference(ctx context.Context, userID string, visible bool) error
}

type ConversationRepository interface {
	// GetOrCreateDirectConversation returns the existing direct conversation
	// between the two users, creating it if none exists.
	GetOrCreateDirectConversation(ctx context.Context, userID, otherID string) (*models.Conversation, error)
	CreateGroupConversation(ctx context.Context, creatorID, name string, memberIDs []string) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	ListConversationIDsForUser(ctx context.Context, userID string) ([]string, error)
	DeleteConversation(ctx context.Context, id string) error
	// RemoveParticipant drops the user from the conversation along with their
	// unread/seen bookkeeping and returns the remaining participant count.
	RemoveParticipant(ctx context.Context, conversationID, userID string) (int, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

type MessageRepository interface {
	// ApplyMessageSideEffects persists a new message and, in the same
	// transaction, updates the conversation's lastMessage snapshot, clears
	// seenBy and bumps every recipient's unread count (the sender's stays 0).
	ApplyMessageSideEffects(ctx context.Context, conversationID, senderID, content string) (*models.Message, *models.ConversationSummary, error)
	// ApplySeenSideEffects records that the user has seen the current last
	// message and zeroes their unread count. Returns a nil snapshot when
	// there is nothing to mark (no last message, or the caller sent it).
	ApplySeenSideEffects(ctx context.Context, conversationID, userID string) (*models.ConversationSummary, error)
	LoadMessagePage(ctx context.Context, conversationID string, limit int, before *time.Time) ([]*models.Message, *time.Time, error)
}

type Store interface {
	UserRepository
	ConversationRepository
	MessageRepository
	Close() error
}
