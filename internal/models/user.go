package models

import "time"

type User struct {
	ID               string    `json:"id"`
	UserName         string    `json:"userName"`
	DisplayName      string    `json:"displayName"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	AvatarURL        string    `json:"avatarUrl,omitempty"`
	ShowOnlineStatus bool      `json:"showOnlineStatus"`
	CreatedAt        time.Time `json:"createdAt"`
}

// UserInfo is the subset of a user shared with other participants.
type UserInfo struct {
	ID          string `json:"id"`
	UserName    string `json:"userName"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type RegisterRequest struct {
	UserName    string `json:"userName"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
