package repository

import (
	"boardgate/internal/models"
	"context"
	"time"

	"github.com/google/uuid"
)

// PreflightTokenRepository stores single-use preflight credentials
type PreflightTokenRepository interface {
	// Create mints a fresh random token bound to a verification attempt.
	Create(ctx context.Context, attemptID uuid.UUID, ttl time.Duration) (*models.PreflightToken, error)
	// Consume atomically marks the token used. It returns ErrTokenInvalid if
	// the token does not exist or was already consumed (losing a concurrent
	// race is indistinguishable from "already used"), and ErrTokenExpired if
	// it exists but its expiry has passed. The expired token is consumed too,
	// so probing an expired token cannot succeed later.
	Consume(ctx context.Context, token string) (*models.PreflightToken, error)
}
