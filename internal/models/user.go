package models

import (
	"time"

	"github.com/google/uuid"
)

// Role determines a user's privileges
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User represents a registered account
type User struct {
	ID                   uuid.UUID  `json:"id"`
	Username             string     `json:"username"`
	Email                string     `json:"email"`
	Password             string     `json:"-"`
	Role                 Role       `json:"role"`
	Level                int        `json:"level"`
	LevelUpFailureCount  int        `json:"level_up_failure_count"`
	LastLevelUpAt        *time.Time `json:"last_level_up_at,omitempty"`
	LastLevelUpAttemptAt *time.Time `json:"last_level_up_attempt_at,omitempty"`
	BannedFromLevelUp    bool       `json:"banned_from_level_up"`
	IsRateLimitExempt    bool       `json:"is_rate_limit_exempt"`
	CreatedAt            time.Time  `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LoginRequest represents the login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response after successful login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// RegisterRequest completes a registration using a preflight token
type RegisterRequest struct {
	PreflightToken string `json:"preflight_token" binding:"required"`
	Username       string `json:"username" binding:"required,min=3,max=50,nospaces"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
}
