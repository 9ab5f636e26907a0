package repository

import (
	"boardgate/internal/models"
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxUserLevel is the level cap used when no setting row overrides it
const DefaultMaxUserLevel = 10

// UserRepository provides access to user accounts
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// IncrementLevel raises the user's level by one, records the success time
	// and resets the failure counter.
	IncrementLevel(ctx context.Context, id uuid.UUID) error
	// RecordVerificationFailure bumps the failure counter and last-attempt time.
	RecordVerificationFailure(ctx context.Context, id uuid.UUID, at time.Time) error
	// MaxLevel returns the configured level cap.
	MaxLevel(ctx context.Context) (int, error)
}
