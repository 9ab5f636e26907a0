package postgres

import (
	"boardgate/internal/models"
	"boardgate/internal/repository"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// TokenLength is the number of random bytes behind a preflight token
const TokenLength = 32

type preflightTokenRepository struct {
	repository.BaseRepository
}

// NewPreflightTokenRepository creates a Postgres-backed preflight token repository
func NewPreflightTokenRepository(db *sql.DB) repository.PreflightTokenRepository {
	return &preflightTokenRepository{BaseRepository: repository.NewBaseRepository(db)}
}

func generateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (r *preflightTokenRepository) Create(ctx context.Context, attemptID uuid.UUID, ttl time.Duration) (*models.PreflightToken, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	pt := &models.PreflightToken{
		ID:        uuid.New(),
		Token:     token,
		AttemptID: attemptID,
		ExpiresAt: time.Now().Add(ttl),
	}

	query := `
		INSERT INTO preflight_tokens (id, token, attempt_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err = r.DB().QueryRowContext(ctx, query,
		pt.ID, pt.Token, pt.AttemptID, pt.ExpiresAt,
	).Scan(&pt.CreatedAt)
	if err != nil {
		return nil, err
	}
	return pt, nil
}

func (r *preflightTokenRepository) Consume(ctx context.Context, token string) (*models.PreflightToken, error) {
	// Single-use is enforced by the used_at IS NULL predicate: of two
	// concurrent consumers exactly one sees an affected row. The loser gets
	// no row back and cannot tell "lost the race" from "already used".
	query := `
		UPDATE preflight_tokens
		SET used_at = CURRENT_TIMESTAMP
		WHERE token = $1 AND used_at IS NULL
		RETURNING id, attempt_id, expires_at, used_at, created_at`

	var pt models.PreflightToken
	pt.Token = token
	err := r.DB().QueryRowContext(ctx, query, token).Scan(
		&pt.ID, &pt.AttemptID, &pt.ExpiresAt, &pt.UsedAt, &pt.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if pt.UsedAt != nil && pt.UsedAt.After(pt.ExpiresAt) {
		return nil, repository.ErrTokenExpired
	}
	return &pt, nil
}
