package realtime

import (
	"sync"

	"chatline/pkg/logger"

	"github.com/google/uuid"
)

const sendBufferSize = 256

// Session is one live client connection. The registry owns its lifecycle;
// the write pump drains its send channel until the registry closes it.
type Session struct {
	ID     string
	UserID string

	send      chan []byte
	closeOnce sync.Once

	// groups the session is subscribed to, mutated only under the
	// registry's lock.
	groups map[string]struct{}
}

func NewSession(userID string) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, sendBufferSize),
		groups: make(map[string]struct{}),
	}
}

// Outbound returns the channel the write pump drains. It is closed when the
// session is unregistered.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// deliver enqueues a frame without blocking. A session whose buffer is full
// is lagging badly; frames are dropped rather than stalling the fan-out.
func (s *Session) deliver(frame []byte) {
	select {
	case s.send <- frame:
	default:
		logger.Warn("Dropping frame for slow session %s (user %s)", s.ID, s.UserID)
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}
