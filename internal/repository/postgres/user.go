package postgres

import (
	"boardgate/internal/models"
	"boardgate/internal/repository"
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type userRepository struct {
	repository.BaseRepository
}

// NewUserRepository creates a Postgres-backed user repository
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{BaseRepository: repository.NewBaseRepository(db)}
}

const userColumns = `id, username, email, password_hash, role, level, level_up_failure_count,
	last_level_up_at, last_level_up_attempt_at, banned_from_level_up, is_rate_limit_exempt, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.Role, &u.Level,
		&u.LevelUpFailureCount, &u.LastLevelUpAt, &u.LastLevelUpAttemptAt,
		&u.BannedFromLevelUp, &u.IsRateLimitExempt, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, role, level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.DB().QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.Password, user.Role, user.Level,
	).Scan(&user.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_username_key":
			return repository.ErrUsernameExists
		case "users_email_key":
			return repository.ErrEmailExists
		}
		return repository.ErrDuplicate
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.DB().QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(r.DB().QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *userRepository) IncrementLevel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET level = level + 1, last_level_up_at = NOW(), level_up_failure_count = 0
		WHERE id = $1`

	result, err := r.DB().ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) RecordVerificationFailure(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET level_up_failure_count = level_up_failure_count + 1, last_level_up_attempt_at = $2
		WHERE id = $1`

	_, err := r.DB().ExecContext(ctx, query, id, at)
	return err
}

func (r *userRepository) MaxLevel(ctx context.Context) (int, error) {
	var value string
	err := r.DB().QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'max_user_level'`).Scan(&value)
	if err == sql.ErrNoRows {
		return repository.DefaultMaxUserLevel, nil
	}
	if err != nil {
		return 0, err
	}

	level, err := strconv.Atoi(value)
	if err != nil || level <= 0 {
		return repository.DefaultMaxUserLevel, nil
	}
	return level, nil
}
