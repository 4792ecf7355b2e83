package realtime

import (
	"context"
	"encoding/json"
	"time"

	"chatline/internal/models"
	"chatline/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// visibilityStore persists the show-online-status preference toggled over the
// socket.
type visibilityStore interface {
	SetUserVisibilityPreference(ctx context.Context, userID string, visible bool) error
}

// Client binds one websocket connection to its session and runs the two
// pumps. Inbound frames are control messages only; actual chat traffic goes
// through the REST handlers.
type Client struct {
	session  *Session
	conn     *websocket.Conn
	registry *Registry
	resolver *Resolver
	tracker  *Tracker
	prefs    visibilityStore
}

func NewClient(session *Session, conn *websocket.Conn, registry *Registry, resolver *Resolver, tracker *Tracker, prefs visibilityStore) *Client {
	return &Client{
		session:  session,
		conn:     conn,
		registry: registry,
		resolver: resolver,
		tracker:  tracker,
		prefs:    prefs,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.registry.Unregister(c.session.UserID, c.session.ID)
		c.conn.Close()
	}()

	// Set read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			break
		}

		c.handleControlMessage(frame)
	}
}

// handleControlMessage dispatches one inbound frame. Malformed frames are
// logged and dropped; the connection stays alive.
func (c *Client) handleControlMessage(frame []byte) {
	var envelope models.Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		logger.Debug("Ignoring malformed frame from user %s: %v", c.session.UserID, err)
		return
	}

	switch envelope.Event {
	case models.ControlJoinConversation:
		var conversationID string
		if err := json.Unmarshal(envelope.Data, &conversationID); err != nil {
			logger.Debug("Ignoring malformed join-conversation from user %s: %v", c.session.UserID, err)
			return
		}
		c.resolver.JoinGroup(c.session, conversationID)

	case models.ControlShowOnlineStatus:
		var visible bool
		if err := json.Unmarshal(envelope.Data, &visible); err != nil {
			logger.Debug("Ignoring malformed visibility toggle from user %s: %v", c.session.UserID, err)
			return
		}
		c.tracker.SetVisibility(c.session.UserID, visible)
		if err := c.prefs.SetUserVisibilityPreference(context.Background(), c.session.UserID, visible); err != nil {
			logger.Error("Error persisting visibility preference for user %s: %v", c.session.UserID, err)
		}

	default:
		logger.Debug("Ignoring unknown control message %q from user %s", envelope.Event, c.session.UserID)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.session.Outbound():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
