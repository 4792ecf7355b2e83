package realtime

import (
	"sync"

	"chatline/pkg/logger"
)

// Registry tracks every live session, keyed by user, and the broadcast
// groups each session is subscribed to. A group key is either a conversation
// ID or a user ID (the user's personal channel).
//
// All maps are guarded by a single registry lock. Delivery happens under the
// read lock so a frame can never hit a session the registry has already
// closed.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Session
	groups map[string]map[string]*Session

	onSessionCountChanged func(userID string)
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Session),
		groups: make(map[string]map[string]*Session),
	}
}

// OnSessionCountChanged wires the presence tracker's recompute hook. Must be
// set before the first connection is accepted.
func (r *Registry) OnSessionCountChanged(fn func(userID string)) {
	r.onSessionCountChanged = fn
}

func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	sessions, ok := r.byUser[s.UserID]
	if !ok {
		sessions = make(map[string]*Session)
		r.byUser[s.UserID] = sessions
	}
	sessions[s.ID] = s
	r.mu.Unlock()

	logger.Info("Session %s registered for user %s", s.ID, s.UserID)

	if r.onSessionCountChanged != nil {
		r.onSessionCountChanged(s.UserID)
	}
}

// Unregister removes one session. Unknown sessions are a no-op: disconnect
// handlers may race and must stay idempotent.
func (r *Registry) Unregister(userID, sessionID string) {
	r.mu.Lock()
	sessions, ok := r.byUser[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	s, ok := sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}

	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.byUser, userID)
	}
	for group := range s.groups {
		members := r.groups[group]
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.groups, group)
		}
	}
	s.close()
	r.mu.Unlock()

	logger.Info("Session %s unregistered for user %s", sessionID, userID)

	if r.onSessionCountChanged != nil {
		r.onSessionCountChanged(userID)
	}
}

// Subscribe adds the session to a broadcast group. Subscribing an
// unregistered session is a no-op.
func (r *Registry) Subscribe(s *Session, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessions, ok := r.byUser[s.UserID]; !ok || sessions[s.ID] != s {
		return
	}

	members, ok := r.groups[group]
	if !ok {
		members = make(map[string]*Session)
		r.groups[group] = members
	}
	members[s.ID] = s
	s.groups[group] = struct{}{}
}

func (r *Registry) SessionsFor(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.byUser[userID]))
	for _, s := range r.byUser[userID] {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Registry) SessionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	return ids
}

// publishToGroup delivers a frame to every session subscribed to the group.
// An empty group is a silent no-op.
func (r *Registry) publishToGroup(group string, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.groups[group] {
		s.deliver(frame)
	}
}

// publishToUser delivers a frame to every one of the user's sessions.
func (r *Registry) publishToUser(userID string, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.byUser[userID] {
		s.deliver(frame)
	}
}

// publishToAll delivers a frame to every connected session.
func (r *Registry) publishToAll(frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sessions := range r.byUser {
		for _, s := range sessions {
			s.deliver(frame)
		}
	}
}
