package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptKind identifies which protected action a verification attempt guards
type AttemptKind string

const (
	AttemptRegistration AttemptKind = "registration"
	AttemptLevelUp      AttemptKind = "level_up"
)

// VerificationAttempt is an immutable record of one verification try.
// Exactly one row is written per preflight call, success or failure;
// the success rows are what fingerprint reuse detection queries.
type VerificationAttempt struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               *uuid.UUID      `json:"user_id,omitempty"`
	Kind                 AttemptKind     `json:"attempt_type"`
	IsSuccess            bool            `json:"is_success"`
	IPAddress            string          `json:"ip_address"`
	ReputationID         string          `json:"reputation_id,omitempty"`
	ReputationJSON       json.RawMessage `json:"reputation_json,omitempty"`
	FingerprintJSON      json.RawMessage `json:"fingerprint_json,omitempty"`
	HashWebglCanvasAudio string          `json:"hash_webgl_canvas_audio,omitempty"`
	HashWebglCanvas      string          `json:"hash_webgl_canvas,omitempty"`
	HashWebglAudio       string          `json:"hash_webgl_audio,omitempty"`
	HashCanvasAudio      string          `json:"hash_canvas_audio,omitempty"`
	RejectionReason      *string         `json:"rejection_reason,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// PreflightToken is a short-lived, single-use credential proving a client
// passed the preflight checks. Consumption is a used_at compare-and-swap.
type PreflightToken struct {
	ID        uuid.UUID  `json:"id"`
	Token     string     `json:"token"`
	AttemptID uuid.UUID  `json:"attempt_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// PreflightRequest carries both challenge tokens and the fingerprint payload
type PreflightRequest struct {
	ChallengeToken          string          `json:"challenge_token" binding:"required"`
	SecondaryChallengeToken string          `json:"secondary_challenge_token" binding:"required"`
	FingerprintData         json.RawMessage `json:"fingerprintData" binding:"required"`
}

// PreflightResponse carries the opaque token on success
type PreflightResponse struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	PreflightToken string    `json:"preflight_token"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// FinalizeRequest carries only the preflight token
type FinalizeRequest struct {
	PreflightToken string `json:"preflight_token" binding:"required"`
}

// VerificationStatusResponse reports whether a user may start a new attempt
type VerificationStatusResponse struct {
	CanAttempt           bool   `json:"can_attempt"`
	IsLocked             bool   `json:"is_locked"`
	LockExpiresInSeconds *int64 `json:"lock_expires_in_seconds,omitempty"`
	Message              string `json:"message"`
}
