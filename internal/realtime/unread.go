package realtime

import (
	"context"
	"hash/fnv"
	"sync"

	"chatline/internal/models"
)

// sideEffectStore is the slice of the durable store that mutates the
// per-conversation unread/seen/lastMessage triple.
type sideEffectStore interface {
	ApplyMessageSideEffects(ctx context.Context, conversationID, senderID, content string) (*models.Message, *models.ConversationSummary, error)
	ApplySeenSideEffects(ctx context.Context, conversationID, userID string) (*models.ConversationSummary, error)
}

const coordinatorShards = 64

// Coordinator serializes message-sent and mark-seen mutations per
// conversation, so a mark-seen can never land between a new message's write
// and its seen-reset. Conversations hash onto a fixed set of mutex shards;
// unrelated conversations proceed in parallel (modulo shard collisions).
type Coordinator struct {
	store  sideEffectStore
	shards [coordinatorShards]sync.Mutex
}

func NewCoordinator(store sideEffectStore) *Coordinator {
	return &Coordinator{store: store}
}

func (c *Coordinator) lockFor(conversationID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &c.shards[h.Sum32()%coordinatorShards]
}

// OnMessageSent persists the message and its conversation side effects:
// lastMessage is replaced, seenBy is emptied, and every participant except
// the sender gets their unread count bumped. The sender's count is 0.
func (c *Coordinator) OnMessageSent(ctx context.Context, conversationID, senderID, content string) (*models.Message, *models.ConversationSummary, error) {
	mu := c.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	return c.store.ApplyMessageSideEffects(ctx, conversationID, senderID, content)
}

// OnMarkSeen adds the user to seenBy and zeroes their unread count. It is a
// no-op, returning a nil snapshot, when the conversation has no last message
// or the user sent it themselves.
func (c *Coordinator) OnMarkSeen(ctx context.Context, conversationID, userID string) (*models.ConversationSummary, error) {
	mu := c.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	return c.store.ApplySeenSideEffects(ctx, conversationID, userID)
}
