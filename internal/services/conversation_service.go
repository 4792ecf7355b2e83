package services

import (
	"context"
	"fmt"
	"time"

	"chatline/internal/database"
	"chatline/internal/models"
	"chatline/internal/realtime"
)

// EventPublisher is the fan-out surface the service drives. Every call
// happens strictly after the durable write it reports has committed.
type EventPublisher interface {
	NewMessage(message *models.Message, conversation *models.ConversationSummary)
	ReadMessage(conversation *models.ConversationSummary)
	NewGroup(conversation *models.Conversation)
	ConversationDeleted(conversationID string, memberIDs []string)
	ConversationLeft(conversationID, userID string)
	MemberLeft(conversationID, userID string, participantsCount int)
}

type ConversationService struct {
	db          database.Store
	coordinator *realtime.Coordinator
	events      EventPublisher
}

func NewConversationService(db database.Store, coordinator *realtime.Coordinator, events EventPublisher) *ConversationService {
	return &ConversationService{
		db:          db,
		coordinator: coordinator,
		events:      events,
	}
}

func (s *ConversationService) CreateConversation(ctx context.Context, userID string, req *models.CreateConversationRequest) (*models.Conversation, error) {
	if len(req.MemberIDs) == 0 {
		return nil, fmt.Errorf("member list is required")
	}

	switch req.Type {
	case models.ConversationDirect:
		return s.db.GetOrCreateDirectConversation(ctx, userID, req.MemberIDs[0])

	case models.ConversationGroup:
		if req.Name == "" {
			return nil, fmt.Errorf("group name is required")
		}

		members := dedupeMembers(req.MemberIDs, userID)
		conversation, err := s.db.CreateGroupConversation(ctx, userID, req.Name, members)
		if err != nil {
			return nil, err
		}

		// Participants learn about the group on their personal channels
		// and self-subscribe on receipt.
		s.events.NewGroup(conversation)
		return conversation, nil

	default:
		return nil, fmt.Errorf("invalid conversation type %q", req.Type)
	}
}

func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	return s.db.ListConversationsForUser(ctx, userID)
}

func (s *ConversationService) GetMessages(ctx context.Context, conversationID, userID string, limit int, before *time.Time) (*models.MessagePage, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, nextCursor, err := s.db.LoadMessagePage(ctx, conversationID, limit, before)
	if err != nil {
		return nil, err
	}

	page := &models.MessagePage{Messages: messages}
	if nextCursor != nil {
		page.NextCursor = nextCursor.Format(time.RFC3339Nano)
	}
	return page, nil
}

// SendMessage persists the message with its unread/seen side effects, then
// fans it out to the conversation's group.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("message content is required")
	}
	if err := s.requireParticipant(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	message, summary, err := s.coordinator.OnMessageSent(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, err
	}

	s.events.NewMessage(message, summary)
	return message, nil
}

// MarkSeen records the read receipt and fans the updated summary out. A nil
// summary means there was nothing to mark and nothing is broadcast.
func (s *ConversationService) MarkSeen(ctx context.Context, conversationID, userID string) (*models.ConversationSummary, error) {
	summary, err := s.coordinator.OnMarkSeen(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	if summary != nil {
		s.events.ReadMessage(summary)
	}
	return summary, nil
}

// DeleteOrLeave removes a group conversation. The owner deletes it for
// everyone; any other member just leaves. Returns whether the conversation
// was deleted.
func (s *ConversationService) DeleteOrLeave(ctx context.Context, conversationID, userID string) (bool, error) {
	conversation, err := s.db.GetConversationByID(ctx, conversationID)
	if err != nil {
		return false, fmt.Errorf("conversation not found: %w", err)
	}

	if conversation.Type != models.ConversationGroup {
		return false, fmt.Errorf("only group conversations can be deleted or left")
	}

	isMember := false
	memberIDs := make([]string, 0, len(conversation.Participants))
	for _, p := range conversation.Participants {
		memberIDs = append(memberIDs, p.UserID)
		if p.UserID == userID {
			isMember = true
		}
	}
	if !isMember {
		return false, fmt.Errorf("not a member of this conversation")
	}

	if conversation.CreatedBy == userID {
		if err := s.db.DeleteConversation(ctx, conversationID); err != nil {
			return false, err
		}
		s.events.ConversationDeleted(conversationID, memberIDs)
		return true, nil
	}

	remaining, err := s.db.RemoveParticipant(ctx, conversationID, userID)
	if err != nil {
		return false, err
	}
	s.events.ConversationLeft(conversationID, userID)
	s.events.MemberLeft(conversationID, userID, remaining)
	return false, nil
}

func (s *ConversationService) requireParticipant(ctx context.Context, conversationID, userID string) error {
	isMember, err := s.db.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return fmt.Errorf("not a member of this conversation")
	}
	return nil
}

// dedupeMembers drops duplicates and the creator from the invited member
// list; the creator is added separately.
func dedupeMembers(memberIDs []string, creatorID string) []string {
	seen := make(map[string]struct{}, len(memberIDs))
	members := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == creatorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return members
}
