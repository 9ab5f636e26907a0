package repository

import (
	"boardgate/internal/models"
	"context"
	"time"

	"github.com/google/uuid"
)

// HashReuse reports which composite-hash window matched a prior successful
// attempt during the reuse check.
type HashReuse struct {
	ThreeWayFound bool
	TwoWayFound   bool
}

// CompositeHashes carries the four fingerprint digests queried by the reuse check
type CompositeHashes struct {
	WebglCanvasAudio string
	WebglCanvas      string
	WebglAudio       string
	CanvasAudio      string
}

// VerificationAttemptRepository stores immutable verification attempt records
type VerificationAttemptRepository interface {
	// Create inserts the attempt and fills in its ID and creation time.
	Create(ctx context.Context, attempt *models.VerificationAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationAttempt, error)
	// CheckHashReuse looks for prior successful attempts carrying the same
	// composite hashes: the 3-way hash within threeWaySince, any of the three
	// 2-way hashes within twoWaySince.
	CheckHashReuse(ctx context.Context, hashes CompositeHashes, threeWaySince, twoWaySince time.Time) (HashReuse, error)
}
