package main

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatline/internal/auth"
	"chatline/internal/config"
	"chatline/internal/database"
	"chatline/internal/handlers"
	"chatline/internal/realtime"
	"chatline/internal/services"
	"chatline/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize the realtime core: registry owns sessions and groups, the
	// router fans events out, the tracker derives visible-online state.
	registry := realtime.NewRegistry()
	router := realtime.NewRouter(registry)
	tracker := realtime.NewTracker(registry, router)
	registry.OnSessionCountChanged(tracker.OnSessionCountChanged)
	resolver := realtime.NewResolver(registry, db)
	coordinator := realtime.NewCoordinator(db)

	// Initialize services
	authService := auth.NewService(db, cfg)
	conversationService := services.NewConversationService(db, coordinator, router)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService, db)
	conversationHandlers := handlers.NewConversationHandlers(conversationService, authService)
	wsHandlers := handlers.NewWebSocketHandlers(authService, registry, resolver, tracker, db)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, conversationHandlers, wsHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(cfg.CORS.AllowedOrigin, mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	printAPIEndpoints()

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, conversationHandlers *handlers.ConversationHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Auth routes
	mux.HandleFunc("/api/auth/signup", authHandlers.Register)
	mux.HandleFunc("/api/auth/signin", authHandlers.Login)

	// User routes
	mux.HandleFunc("/api/users/me", authHandlers.Me)
	mux.HandleFunc("/api/users/search", authHandlers.SearchUser)

	// Conversation routes
	mux.HandleFunc("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			conversationHandlers.ListConversations(w, r)
		case http.MethodPost:
			conversationHandlers.CreateConversation(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Conversation sub-routes
	mux.HandleFunc("/api/conversations/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		if len(parts) < 4 || parts[3] == "" {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}

		// /api/conversations/{id}/messages
		if len(parts) == 5 && parts[4] == "messages" {
			switch r.Method {
			case http.MethodGet:
				conversationHandlers.GetMessages(w, r)
			case http.MethodPost:
				conversationHandlers.SendMessage(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		// /api/conversations/{id}/seen
		if len(parts) == 5 && parts[4] == "seen" && r.Method == http.MethodPost {
			conversationHandlers.MarkSeen(w, r)
			return
		}

		// /api/conversations/{id} DELETE
		if len(parts) == 4 && r.Method == http.MethodDelete {
			conversationHandlers.DeleteOrLeave(w, r)
			return
		}

		http.Error(w, "endpoint not found", http.StatusNotFound)
	})

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
}

func corsMiddleware(allowedOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   POST /api/auth/signup")
	logger.Info("   POST /api/auth/signin")
	logger.Info("   GET  /api/users/me")
	logger.Info("   GET  /api/users/search")
	logger.Info("   GET  /api/conversations")
	logger.Info("   POST /api/conversations")
	logger.Info("   GET  /api/conversations/{id}/messages")
	logger.Info("   POST /api/conversations/{id}/messages")
	logger.Info("   POST /api/conversations/{id}/seen")
	logger.Info("   DELETE /api/conversations/{id}")
}
