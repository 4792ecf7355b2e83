package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatline/internal/auth"
	"chatline/internal/models"
	"chatline/internal/services"
	"chatline/pkg/logger"
)

type ConversationHandlers struct {
	conversationService *services.ConversationService
	authService         *auth.Service
}

func NewConversationHandlers(conversationService *services.ConversationService, authService *auth.Service) *ConversationHandlers {
	return &ConversationHandlers{
		conversationService: conversationService,
		authService:         authService,
	}
}

func (h *ConversationHandlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	conversation, err := h.conversationService.CreateConversation(r.Context(), user.ID, &req)
	if err != nil {
		logger.Error("Create conversation error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]*models.Conversation{"conversation": conversation})
}

func (h *ConversationHandlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conversations, err := h.conversationService.ListConversations(r.Context(), user.ID)
	if err != nil {
		logger.Error("List conversations error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]*models.Conversation{"conversations": conversations})
}

func (h *ConversationHandlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := conversationIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid conversation ID", http.StatusBadRequest)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	var before *time.Time
	if cursor := strings.TrimSpace(r.URL.Query().Get("cursor")); cursor != "" {
		if t, err := time.Parse(time.RFC3339Nano, cursor); err == nil {
			before = &t
		}
	}

	page, err := h.conversationService.GetMessages(r.Context(), conversationID, user.ID, limit, before)
	if err != nil {
		logger.Error("Get messages error: %v", err)
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

func (h *ConversationHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := conversationIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	message, err := h.conversationService.SendMessage(r.Context(), conversationID, user.ID, req.Content)
	if err != nil {
		logger.Error("Send message error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]*models.Message{"message": message})
}

func (h *ConversationHandlers) MarkSeen(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := conversationIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid conversation ID", http.StatusBadRequest)
		return
	}

	summary, err := h.conversationService.MarkSeen(r.Context(), conversationID, user.ID)
	if err != nil {
		logger.Error("Mark seen error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if summary == nil {
		json.NewEncoder(w).Encode(map[string]string{"message": "nothing to mark as seen"})
		return
	}
	json.NewEncoder(w).Encode(map[string]*models.ConversationSummary{"conversation": summary})
}

func (h *ConversationHandlers) DeleteOrLeave(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := conversationIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid conversation ID", http.StatusBadRequest)
		return
	}

	deleted, err := h.conversationService.DeleteOrLeave(r.Context(), conversationID, user.ID)
	if err != nil {
		logger.Error("Delete or leave error: %v", err)
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"deleted": deleted, "left": !deleted})
}

// conversationIDFromPath extracts the ID from /api/conversations/{id}/...
func conversationIDFromPath(r *http.Request) (string, error) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 4 || parts[3] == "" {
		return "", fmt.Errorf("invalid path")
	}

	return parts[3], nil
}
