package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"chatline/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func receiveEvent(t *testing.T, s *Session) models.Envelope {
	t.Helper()
	select {
	case frame := <-s.Outbound():
		var envelope models.Envelope
		require.NoError(t, json.Unmarshal(frame, &envelope))
		return envelope
	default:
		t.Fatal("expected a frame on the session's outbound channel")
		return models.Envelope{}
	}
}

func TestRouter_OnlineUsersReachesEverySession(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router := NewRouter(registry)

	a := NewSession("alice")
	b := NewSession("bob")
	registry.Register(a)
	registry.Register(b)

	router.OnlineUsers([]string{"alice", "bob"})

	for _, s := range []*Session{a, b} {
		envelope := receiveEvent(t, s)
		req.Equal(models.EventOnlineUsers, envelope.Event)

		var users []string
		req.NoError(json.Unmarshal(envelope.Data, &users))
		req.Equal([]string{"alice", "bob"}, users)
	}
}

func TestRouter_NewMessageGoesToConversationGroup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router := NewRouter(registry)
	conversationID := uuid.NewString()

	member := NewSession("alice")
	outsider := NewSession("mallory")
	registry.Register(member)
	registry.Register(outsider)
	registry.Subscribe(member, conversationID)

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       "bob",
		Content:        "hi",
		CreatedAt:      time.Now(),
	}
	summary := &models.ConversationSummary{
		ID:           conversationID,
		UnreadCounts: map[string]int{"alice": 1, "bob": 0},
		SeenBy:       []string{},
	}
	router.NewMessage(message, summary)

	envelope := receiveEvent(t, member)
	req.Equal(models.EventNewMessage, envelope.Event)

	var payload models.NewMessagePayload
	req.NoError(json.Unmarshal(envelope.Data, &payload))
	req.Equal(message.ID, payload.Message.ID)
	req.Equal("hi", payload.Message.Content)
	req.Equal(map[string]int{"alice": 1, "bob": 0}, payload.Conversation.UnreadCounts)

	req.Empty(outsider.Outbound())
}

func TestRouter_ReadMessageCarriesSummaryOnly(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router := NewRouter(registry)
	conversationID := uuid.NewString()

	member := NewSession("alice")
	registry.Register(member)
	registry.Subscribe(member, conversationID)

	router.ReadMessage(&models.ConversationSummary{
		ID:           conversationID,
		UnreadCounts: map[string]int{"alice": 0},
		SeenBy:       []string{"alice"},
	})

	envelope := receiveEvent(t, member)
	req.Equal(models.EventReadMessage, envelope.Event)

	var payload models.ReadMessagePayload
	req.NoError(json.Unmarshal(envelope.Data, &payload))
	req.Equal([]string{"alice"}, payload.Conversation.SeenBy)
}

func TestRouter_NewGroupGoesToEachParticipantsPersonalChannel(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router := NewRouter(registry)

	owner := NewSession("owner")
	invited := NewSession("invited")
	offline := "offline-user"
	registry.Register(owner)
	registry.Register(invited)
	registry.Subscribe(owner, "owner")
	registry.Subscribe(invited, "invited")

	conversation := &models.Conversation{
		ID:   uuid.NewString(),
		Type: models.ConversationGroup,
		Name: "weekend plans",
		Participants: []*models.Participant{
			{UserID: "owner"}, {UserID: "invited"}, {UserID: offline},
		},
	}
	router.NewGroup(conversation)

	for _, s := range []*Session{owner, invited} {
		envelope := receiveEvent(t, s)
		req.Equal(models.EventNewGroup, envelope.Event)

		var got models.Conversation
		req.NoError(json.Unmarshal(envelope.Data, &got))
		req.Equal(conversation.ID, got.ID)
		req.Len(got.Participants, 3)
	}
}

func TestRouter_ConversationDeletedGoesToMembersAndGroup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router := NewRouter(registry)
	conversationID := uuid.NewString()

	owner := NewSession("owner")
	memberB := NewSession("b")
	memberC := NewSession("c")
	for _, s := range []*Session{owner, memberB, memberC} {
		registry.Register(s)
		registry.Subscribe(s, s.UserID)
	}
	// Only the owner's tab is still joined to the conversation group.
	registry.Subscribe(owner, conversationID)

	router.ConversationDeleted(conversationID, []string{"owner", "b", "c"})

	// Personal channels: everyone gets exactly one copy, the owner a second
	// via the group.
	for _, s := range []*Session{memberB, memberC} {
		envelope := receiveEvent(t, s)
		req.Equal(models.EventConversationDeleted, envelope.Event)

		var payload models.ConversationDeletedPayload
		req.NoError(json.Unmarshal(envelope.Data, &payload))
		req.Equal(conversationID, payload.ConversationID)
		req.Empty(s.Outbound())
	}

	req.Equal(models.EventConversationDeleted, receiveEvent(t, owner).Event)
	req.Equal(models.EventConversationDeleted, receiveEvent(t, owner).Event)
}

func TestRouter_MemberLeftEvents(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router := NewRouter(registry)
	conversationID := uuid.NewString()

	leaver := NewSession("leaver")
	remaining := NewSession("remaining")
	registry.Register(leaver)
	registry.Register(remaining)
	registry.Subscribe(leaver, "leaver")
	registry.Subscribe(remaining, conversationID)

	router.ConversationLeft(conversationID, "leaver")
	router.MemberLeft(conversationID, "leaver", 2)

	left := receiveEvent(t, leaver)
	req.Equal(models.EventConversationLeft, left.Event)

	var leftPayload models.ConversationLeftPayload
	req.NoError(json.Unmarshal(left.Data, &leftPayload))
	req.Equal("leaver", leftPayload.UserID)

	memberLeft := receiveEvent(t, remaining)
	req.Equal(models.EventMemberLeft, memberLeft.Event)

	var memberLeftPayload models.MemberLeftPayload
	req.NoError(json.Unmarshal(memberLeft.Data, &memberLeftPayload))
	req.Equal(2, memberLeftPayload.ParticipantsCount)
}

func TestRouter_EmptyGroupDeliveryIsSilent(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter(registry)

	router.NewMessage(&models.Message{ID: "m"}, &models.ConversationSummary{ID: uuid.NewString()})
	router.MemberLeft(uuid.NewString(), "ghost", 0)
}
