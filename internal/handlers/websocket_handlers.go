package handlers

import (
	"net/http"

	"chatline/internal/auth"
	"chatline/internal/database"
	"chatline/internal/realtime"
	"chatline/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	registry    *realtime.Registry
	resolver    *realtime.Resolver
	tracker     *realtime.Tracker
	db          database.Store
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, registry *realtime.Registry, resolver *realtime.Resolver, tracker *realtime.Tracker, db database.Store) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		registry:    registry,
		resolver:    resolver,
		tracker:     tracker,
		db:          db,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get JWT token from query parameters
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	// Identity resolution failure refuses the connection; no session is created.
	user, err := h.authService.GetUserFromToken(r.Context(), tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// Resolve the durable visibility preference before the session registers,
	// so the first presence snapshot is already correct. Unknown stays open.
	visible := true
	if pref, err := h.db.GetUserVisibilityPreference(r.Context(), user.ID); err == nil {
		visible = pref
	} else {
		logger.Error("Error loading visibility preference for user %s: %v", user.ID, err)
	}
	h.tracker.SeedVisibility(user.ID, visible)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	session := realtime.NewSession(user.ID)
	client := realtime.NewClient(session, conn, h.registry, h.resolver, h.tracker, h.db)

	// Register publishes the presence snapshot; membership subscriptions
	// follow, including the personal channel.
	h.registry.Register(session)
	h.resolver.OnConnect(r.Context(), session)

	go client.WritePump()
	go client.ReadPump()
}
