package models

import "encoding/json"

type EventName string

// Server-to-client events.
const (
	EventOnlineUsers         EventName = "online-users"
	EventNewMessage          EventName = "new-message"
	EventReadMessage         EventName = "read-message"
	EventNewGroup            EventName = "new-group"
	EventConversationDeleted EventName = "conversation:deleted"
	EventConversationLeft    EventName = "conversation:left"
	EventMemberLeft          EventName = "conversation:member-left"
)

// Client-to-server control messages.
const (
	ControlJoinConversation EventName = "join-conversation"
	ControlShowOnlineStatus EventName = "preferences:showOnlineStatus"
)

// Envelope is the wire frame for every websocket message, both directions.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type NewMessagePayload struct {
	Message      *Message             `json:"message"`
	Conversation *ConversationSummary `json:"conversation"`
}

type ReadMessagePayload struct {
	Conversation *ConversationSummary `json:"conversation"`
}

type ConversationDeletedPayload struct {
	ConversationID string `json:"conversationId"`
}

type ConversationLeftPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MemberLeftPayload struct {
	ConversationID    string `json:"conversationId"`
	UserID            string `json:"userId"`
	ParticipantsCount int    `json:"participantsCount"`
}
