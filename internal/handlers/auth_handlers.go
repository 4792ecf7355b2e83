package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"chatline/internal/auth"
	"chatline/internal/database"
	"chatline/internal/models"
	"chatline/pkg/logger"
)

type AuthHandlers struct {
	authService *auth.Service
	db          database.Store
}

func NewAuthHandlers(authService *auth.Service, db database.Store) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		db:          db,
	}
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	response, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		logger.Error("Registration error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	response, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		logger.Error("Login error: %v", err)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]*models.User{"user": user})
}

func (h *AuthHandlers) SearchUser(w http.ResponseWriter, r *http.Request) {
	if _, err := userFromRequest(r, h.authService); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userName := strings.TrimSpace(r.URL.Query().Get("userName"))
	if userName == "" {
		http.Error(w, "userName query parameter is required", http.StatusBadRequest)
		return
	}

	user, err := h.db.GetUserByUserName(r.Context(), userName)
	if err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]*models.UserInfo{"user": {
		ID:          user.ID,
		UserName:    user.UserName,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	}})
}

// userFromRequest resolves the bearer token to an authenticated user.
func userFromRequest(r *http.Request, authService *auth.Service) (*models.User, error) {
	header := r.Header.Get("Authorization")
	tokenStr, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenStr == "" {
		return nil, fmt.Errorf("missing bearer token")
	}

	return authService.GetUserFromToken(r.Context(), tokenStr)
}
