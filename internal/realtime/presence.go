package realtime

import (
	"sort"
	"sync"
)

// occupancy is the slice of Registry the tracker reads.
type occupancy interface {
	SessionCount(userID string) int
	OnlineUserIDs() []string
}

// presencePublisher pushes the visible-online snapshot to every connected
// session. The event router implements it.
type presencePublisher interface {
	OnlineUsers(userIDs []string)
}

// Tracker derives each user's visible-online status from session occupancy
// and a per-user visibility preference. Every change republishes the full
// snapshot; the online set is small enough that deltas are not worth it.
type Tracker struct {
	mu         sync.Mutex
	visibility map[string]bool

	sessions  occupancy
	publisher presencePublisher
}

func NewTracker(sessions occupancy, publisher presencePublisher) *Tracker {
	return &Tracker{
		visibility: make(map[string]bool),
		sessions:   sessions,
		publisher:  publisher,
	}
}

// SeedVisibility records the durable preference for a user, keeping any value
// already set at runtime. Called at connect time, before the session
// registers, so the first snapshot is already correct.
func (t *Tracker) SeedVisibility(userID string, visible bool) {
	t.mu.Lock()
	if _, ok := t.visibility[userID]; !ok {
		t.visibility[userID] = visible
	}
	t.mu.Unlock()
}

// SetVisibility applies a runtime toggle. Last write wins, also while the
// user has no live sessions; the value is kept for their next connect.
func (t *Tracker) SetVisibility(userID string, visible bool) {
	t.mu.Lock()
	t.visibility[userID] = visible
	t.mu.Unlock()

	t.publish()
}

// IsVisible reports the user's visibility preference, defaulting to true when
// nothing is known (fail-open for presence display).
func (t *Tracker) IsVisible(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	visible, ok := t.visibility[userID]
	return !ok || visible
}

// OnSessionCountChanged is invoked by the registry after any register or
// unregister.
func (t *Tracker) OnSessionCountChanged(string) {
	t.publish()
}

// VisibleOnline returns the current visible-online set: users with at least
// one live session whose visibility preference is on.
func (t *Tracker) VisibleOnline() []string {
	online := t.sessions.OnlineUserIDs()

	t.mu.Lock()
	defer t.mu.Unlock()

	visible := make([]string, 0, len(online))
	for _, userID := range online {
		if v, ok := t.visibility[userID]; !ok || v {
			visible = append(visible, userID)
		}
	}
	sort.Strings(visible)
	return visible
}

func (t *Tracker) publish() {
	t.publisher.OnlineUsers(t.VisibleOnline())
}
