package postgres

import (
	"boardgate/internal/models"
	"boardgate/internal/repository"
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type verificationAttemptRepository struct {
	repository.BaseRepository
}

// NewVerificationAttemptRepository creates a Postgres-backed attempt repository
func NewVerificationAttemptRepository(db *sql.DB) repository.VerificationAttemptRepository {
	return &verificationAttemptRepository{BaseRepository: repository.NewBaseRepository(db)}
}

func (r *verificationAttemptRepository) Create(ctx context.Context, attempt *models.VerificationAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}

	query := `
		INSERT INTO verification_attempts (
			id, user_id, attempt_type, is_success, ip_address, reputation_id,
			reputation_json, fingerprint_json,
			hash_webgl_canvas_audio, hash_webgl_canvas, hash_webgl_audio, hash_canvas_audio,
			rejection_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`

	return r.DB().QueryRowContext(ctx, query,
		attempt.ID,
		attempt.UserID,
		attempt.Kind,
		attempt.IsSuccess,
		attempt.IPAddress,
		nullString(attempt.ReputationID),
		nullJSON(attempt.ReputationJSON),
		nullJSON(attempt.FingerprintJSON),
		nullString(attempt.HashWebglCanvasAudio),
		nullString(attempt.HashWebglCanvas),
		nullString(attempt.HashWebglAudio),
		nullString(attempt.HashCanvasAudio),
		attempt.RejectionReason,
	).Scan(&attempt.CreatedAt)
}

func (r *verificationAttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationAttempt, error) {
	query := `
		SELECT id, user_id, attempt_type, is_success, ip_address,
			COALESCE(reputation_id, ''), reputation_json, fingerprint_json,
			COALESCE(hash_webgl_canvas_audio, ''), COALESCE(hash_webgl_canvas, ''),
			COALESCE(hash_webgl_audio, ''), COALESCE(hash_canvas_audio, ''),
			rejection_reason, created_at
		FROM verification_attempts WHERE id = $1`

	var a models.VerificationAttempt
	var reputationJSON, fingerprintJSON []byte
	err := r.DB().QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.Kind, &a.IsSuccess, &a.IPAddress,
		&a.ReputationID, &reputationJSON, &fingerprintJSON,
		&a.HashWebglCanvasAudio, &a.HashWebglCanvas,
		&a.HashWebglAudio, &a.HashCanvasAudio,
		&a.RejectionReason, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ReputationJSON = reputationJSON
	a.FingerprintJSON = fingerprintJSON
	return &a, nil
}

func (r *verificationAttemptRepository) CheckHashReuse(ctx context.Context, hashes repository.CompositeHashes, threeWaySince, twoWaySince time.Time) (repository.HashReuse, error) {
	// Both windows are resolved in one round trip; only successful attempts
	// count, so a rejected probe cannot extend anyone's lockout.
	query := `
		SELECT
			EXISTS (
				SELECT 1 FROM verification_attempts
				WHERE is_success = true
				  AND hash_webgl_canvas_audio = $1
				  AND created_at > $2
			),
			EXISTS (
				SELECT 1 FROM verification_attempts
				WHERE is_success = true
				  AND (hash_webgl_canvas = $3 OR hash_webgl_audio = $4 OR hash_canvas_audio = $5)
				  AND created_at > $6
			)`

	var result repository.HashReuse
	err := r.DB().QueryRowContext(ctx, query,
		hashes.WebglCanvasAudio, threeWaySince,
		hashes.WebglCanvas, hashes.WebglAudio, hashes.CanvasAudio, twoWaySince,
	).Scan(&result.ThreeWayFound, &result.TwoWayFound)
	return result, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
