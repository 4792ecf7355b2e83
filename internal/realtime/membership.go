package realtime

import (
	"context"

	"chatline/pkg/logger"

	"github.com/google/uuid"
)

// conversationLister is the slice of the durable store the resolver needs.
type conversationLister interface {
	ListConversationIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// Resolver subscribes each new session to the broadcast groups it belongs
// to: one group per conversation the user participates in, plus the user's
// personal channel.
type Resolver struct {
	registry *Registry
	store    conversationLister
}

func NewResolver(registry *Registry, store conversationLister) *Resolver {
	return &Resolver{
		registry: registry,
		store:    store,
	}
}

// OnConnect wires up a freshly registered session. The personal channel is
// always subscribed first; a user with zero conversations still receives
// direct events there. If the membership lookup fails the session keeps its
// personal channel and can still be reached for new conversations.
func (r *Resolver) OnConnect(ctx context.Context, s *Session) {
	r.registry.Subscribe(s, s.UserID)

	ids, err := r.store.ListConversationIDsForUser(ctx, s.UserID)
	if err != nil {
		logger.Error("Error loading conversations for user %s: %v", s.UserID, err)
		return
	}

	for _, id := range ids {
		r.registry.Subscribe(s, id)
	}
}

// JoinGroup handles a client-initiated subscription, needed for conversations
// created after the session connected. A malformed ID is ignored; the
// connection stays up.
func (r *Resolver) JoinGroup(s *Session, conversationID string) {
	if _, err := uuid.Parse(conversationID); err != nil {
		logger.Debug("Ignoring join for malformed conversation ID %q from user %s", conversationID, s.UserID)
		return
	}
	r.registry.Subscribe(s, conversationID)
}
