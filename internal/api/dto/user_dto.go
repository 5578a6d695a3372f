package dto

import (
	"time"

	"github.com/spec-kit/credit-transfer/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Password       string      `json:"password"`
	Department     string      `json:"department"`
	Role           domain.Role `json:"role"`
	RegisterNumber *string     `json:"registerNumber"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest payload.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest payload; the token travels in the path.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// UserResponse is the safe profile; it never carries password or reset fields.
type UserResponse struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Role           domain.Role `json:"role"`
	Department     string      `json:"department"`
	RegisterNumber *string     `json:"registerNumber,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewUserResponse maps a user to its public view.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Role:           user.Role,
		Department:     user.Department,
		RegisterNumber: user.RegisterNumber,
		CreatedAt:      user.CreatedAt,
	}
}
