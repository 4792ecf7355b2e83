package models

import "time"

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

type Participant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LastMessage is the denormalized snapshot kept on the conversation.
type LastMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Conversation struct {
	ID            string           `json:"id"`
	Type          ConversationType `json:"type"`
	Name          string           `json:"name,omitempty"`
	CreatedBy     string           `json:"createdBy"`
	Participants  []*Participant   `json:"participants"`
	LastMessage   *LastMessage     `json:"lastMessage,omitempty"`
	LastMessageAt time.Time        `json:"lastMessageAt"`
	UnreadCounts  map[string]int   `json:"unreadCounts"`
	SeenBy        []string         `json:"seenBy"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// ConversationSummary carries the live-sensitive fields of a conversation:
// everything a connected client needs to update its list entry without
// re-fetching the whole conversation.
type ConversationSummary struct {
	ID            string         `json:"id"`
	LastMessage   *LastMessage   `json:"lastMessage,omitempty"`
	LastMessageAt time.Time      `json:"lastMessageAt"`
	UnreadCounts  map[string]int `json:"unreadCounts"`
	SeenBy        []string       `json:"seenBy"`
}

type CreateConversationRequest struct {
	Type      ConversationType `json:"type"`
	Name      string           `json:"name,omitempty"`
	MemberIDs []string         `json:"memberIds"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type MessagePage struct {
	Messages   []*Message `json:"messages"`
	NextCursor string     `json:"nextCursor,omitempty"`
}
