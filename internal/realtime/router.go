package realtime

import (
	"encoding/json"

	"chatline/internal/models"
	"chatline/pkg/logger"
)

// Router fans domain events out to the sessions that should see them. Every
// method implements one addressing rule; callers invoke it only after the
// durable write behind the event has committed, so subscribers always observe
// state that exists. Addressing a group nobody is subscribed to delivers
// nothing and is not an error.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// OnlineUsers broadcasts the full visible-online snapshot to every session.
func (r *Router) OnlineUsers(userIDs []string) {
	frame, ok := encode(models.EventOnlineUsers, userIDs)
	if !ok {
		return
	}
	r.registry.publishToAll(frame)
}

// NewMessage goes to the conversation's group: the message body plus the
// updated conversation summary.
func (r *Router) NewMessage(message *models.Message, conversation *models.ConversationSummary) {
	frame, ok := encode(models.EventNewMessage, models.NewMessagePayload{
		Message:      message,
		Conversation: conversation,
	})
	if !ok {
		return
	}
	r.registry.publishToGroup(conversation.ID, frame)
}

// ReadMessage goes to the conversation's group: summary only, no body.
func (r *Router) ReadMessage(conversation *models.ConversationSummary) {
	frame, ok := encode(models.EventReadMessage, models.ReadMessagePayload{Conversation: conversation})
	if !ok {
		return
	}
	r.registry.publishToGroup(conversation.ID, frame)
}

// NewGroup goes to each invited participant's personal channel with the full
// conversation snapshot. Recipients self-subscribe to the new group on
// receipt; the conversation group itself has no subscribers yet.
func (r *Router) NewGroup(conversation *models.Conversation) {
	frame, ok := encode(models.EventNewGroup, conversation)
	if !ok {
		return
	}
	for _, p := range conversation.Participants {
		r.registry.publishToUser(p.UserID, frame)
	}
}

// ConversationDeleted goes to each former participant's personal channel and
// to the conversation group itself, so every tab drops the conversation even
// if it never joined the group.
func (r *Router) ConversationDeleted(conversationID string, memberIDs []string) {
	frame, ok := encode(models.EventConversationDeleted, models.ConversationDeletedPayload{
		ConversationID: conversationID,
	})
	if !ok {
		return
	}
	for _, userID := range memberIDs {
		r.registry.publishToUser(userID, frame)
	}
	r.registry.publishToGroup(conversationID, frame)
}

// ConversationLeft self-notifies the leaving member on their personal channel.
func (r *Router) ConversationLeft(conversationID, userID string) {
	frame, ok := encode(models.EventConversationLeft, models.ConversationLeftPayload{
		ConversationID: conversationID,
		UserID:         userID,
	})
	if !ok {
		return
	}
	r.registry.publishToUser(userID, frame)
}

// MemberLeft tells the remaining members, via the conversation group, who
// left and how many participants remain.
func (r *Router) MemberLeft(conversationID, userID string, participantsCount int) {
	frame, ok := encode(models.EventMemberLeft, models.MemberLeftPayload{
		ConversationID:    conversationID,
		UserID:            userID,
		ParticipantsCount: participantsCount,
	})
	if !ok {
		return
	}
	r.registry.publishToGroup(conversationID, frame)
}

func encode(event models.EventName, payload interface{}) ([]byte, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error marshaling %s payload: %v", event, err)
		return nil, false
	}
	frame, err := json.Marshal(models.Envelope{Event: event, Data: data})
	if err != nil {
		logger.Error("Error marshaling %s envelope: %v", event, err)
		return nil, false
	}
	return frame, true
}
