package dto

import (
	"nearme-service/internal/domain"
	"time"
)

type UpdateDisplayNameRequest struct {
	DisplayName string `json:"display_name" validate:"required"`
}

type UserResponse struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Anonymous   bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuthResponse struct {
	UserID      string `json:"user_id"`
	Token       string `json:"token"`
	DisplayName string `json:"display_name"`
}

func NewUserResponse(u domain.User) UserResponse {
	return UserResponse{
		UserID:      u.ID,
		DisplayName: u.Name(),
		Anonymous:   u.Anonymous,
		CreatedAt:   u.CreatedAt,
	}
}
