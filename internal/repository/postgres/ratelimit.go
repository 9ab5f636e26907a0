package postgres

import (
	"boardgate/internal/models"
	"boardgate/internal/repository"
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type rateLimitRepository struct {
	repository.BaseRepository
}

// NewRateLimitRepository creates a Postgres-backed rate limit repository
func NewRateLimitRepository(db *sql.DB) repository.RateLimitRepository {
	return &rateLimitRepository{BaseRepository: repository.NewBaseRepository(db)}
}

const ruleColumns = `id, name, target, action_type, threshold, window_seconds,
	lockout_seconds, is_enabled, created_by, created_at, updated_at`

func scanRule(scanner interface{ Scan(...interface{}) error }, rule *models.RateLimitRule) error {
	return scanner.Scan(
		&rule.ID, &rule.Name, &rule.Target, &rule.ActionType, &rule.Threshold,
		&rule.WindowSeconds, &rule.LockoutSeconds, &rule.IsEnabled,
		&rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt,
	)
}

func (r *rateLimitRepository) CreateRule(ctx context.Context, rule *models.RateLimitRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}

	query := `
		INSERT INTO rate_limit_rules (id, name, target, action_type, threshold, window_seconds, lockout_seconds, is_enabled, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return r.DB().QueryRowContext(ctx, query,
		rule.ID, rule.Name, rule.Target, rule.ActionType, rule.Threshold,
		rule.WindowSeconds, rule.LockoutSeconds, rule.IsEnabled, rule.CreatedBy,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

func (r *rateLimitRepository) UpdateRule(ctx context.Context, rule *models.RateLimitRule) error {
	query := `
		UPDATE rate_limit_rules
		SET name = $2, target = $3, action_type = $4, threshold = $5,
			window_seconds = $6, lockout_seconds = $7, is_enabled = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_by, created_at, updated_at`

	err := r.DB().QueryRowContext(ctx, query,
		rule.ID, rule.Name, rule.Target, rule.ActionType, rule.Threshold,
		rule.WindowSeconds, rule.LockoutSeconds, rule.IsEnabled,
	).Scan(&rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt)
	if err == sql.ErrNoRows {
		return repository.ErrRuleNotFound
	}
	return err
}

func (r *rateLimitRepository) ToggleRule(ctx context.Context, id uuid.UUID) (*models.RateLimitRule, error) {
	query := `
		UPDATE rate_limit_rules
		SET is_enabled = NOT is_enabled, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + ruleColumns

	var rule models.RateLimitRule
	err := scanRule(r.DB().QueryRowContext(ctx, query, id), &rule)
	if err == sql.ErrNoRows {
		return nil, repository.ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *rateLimitRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	// Locks reference their rule, so both go in one transaction.
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rate_limit_locks WHERE rule_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rate_limit_events WHERE rule_id = $1`, id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM rate_limit_rules WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return repository.ErrRuleNotFound
		}
		return nil
	})
}

func (r *rateLimitRepository) GetRule(ctx context.Context, id uuid.UUID) (*models.RateLimitRule, error) {
	var rule models.RateLimitRule
	err := scanRule(r.DB().QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM rate_limit_rules WHERE id = $1`, id), &rule)
	if err == sql.ErrNoRows {
		return nil, repository.ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *rateLimitRepository) ListRules(ctx context.Context) ([]models.RateLimitRuleInfo, error) {
	query := `
		SELECT r.id, r.name, r.target, r.action_type, r.threshold, r.window_seconds,
			r.lockout_seconds, r.is_enabled, r.created_by, r.created_at, r.updated_at,
			u.username
		FROM rate_limit_rules r
		LEFT JOIN users u ON r.created_by = u.id
		ORDER BY r.created_at DESC`

	rows, err := r.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.RateLimitRuleInfo
	for rows.Next() {
		var info models.RateLimitRuleInfo
		err := rows.Scan(
			&info.ID, &info.Name, &info.Target, &info.ActionType, &info.Threshold,
			&info.WindowSeconds, &info.LockoutSeconds, &info.IsEnabled,
			&info.CreatedBy, &info.CreatedAt, &info.UpdatedAt,
			&info.CreatedByUsername,
		)
		if err != nil {
			return nil, err
		}
		rules = append(rules, info)
	}
	return rules, rows.Err()
}

func (r *rateLimitRepository) EnabledRulesForAction(ctx context.Context, action models.RateLimitAction) ([]models.RateLimitRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rate_limit_rules WHERE is_enabled = true AND action_type = $1`

	rows, err := r.DB().QueryContext(ctx, query, action)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.RateLimitRule
	for rows.Next() {
		var rule models.RateLimitRule
		if err := scanRule(rows, &rule); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *rateLimitRepository) ActiveLock(ctx context.Context, keys []string, now time.Time) (*models.RateLimitLock, error) {
	query := `
		SELECT target_key, rule_id, expires_at
		FROM rate_limit_locks
		WHERE target_key = ANY($1) AND expires_at > $2
		ORDER BY expires_at DESC
		LIMIT 1`

	var lock models.RateLimitLock
	err := r.DB().QueryRowContext(ctx, query, pq.Array(keys), now).Scan(
		&lock.TargetKey, &lock.RuleID, &lock.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrLockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

func (r *rateLimitRepository) RecordAndEvaluate(ctx context.Context, pairs []repository.RuleKey, now time.Time) ([]models.RateLimitLock, error) {
	var locks []models.RateLimitLock

	err := r.Transaction(ctx, func(tx *sql.Tx) error {
		for _, pair := range pairs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO rate_limit_events (id, rule_id, target_key, created_at) VALUES ($1, $2, $3, $4)`,
				uuid.New(), pair.Rule.ID, pair.Key, now,
			); err != nil {
				return err
			}

			windowStart := now.Add(-time.Duration(pair.Rule.WindowSeconds) * time.Second)
			var count int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM rate_limit_events WHERE rule_id = $1 AND target_key = $2 AND created_at > $3`,
				pair.Rule.ID, pair.Key, windowStart,
			).Scan(&count); err != nil {
				return err
			}

			if count < pair.Rule.Threshold {
				continue
			}

			expiresAt := now.Add(time.Duration(pair.Rule.LockoutSeconds) * time.Second)
			// Two requests crossing the threshold together both land here;
			// the conflict clause keeps a single row with the later expiry.
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO rate_limit_locks (target_key, rule_id, expires_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (target_key)
				DO UPDATE SET rule_id = EXCLUDED.rule_id, expires_at = GREATEST(rate_limit_locks.expires_at, EXCLUDED.expires_at)`,
				pair.Key, pair.Rule.ID, expiresAt,
			); err != nil {
				return err
			}

			locks = append(locks, models.RateLimitLock{
				TargetKey: pair.Key,
				RuleID:    pair.Rule.ID,
				ExpiresAt: expiresAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locks, nil
}

func (r *rateLimitRepository) ListActiveLocks(ctx context.Context) ([]models.RateLimitLockInfo, error) {
	query := `
		SELECT l.target_key, l.rule_id, r.name, l.expires_at
		FROM rate_limit_locks l
		LEFT JOIN rate_limit_rules r ON l.rule_id = r.id
		WHERE l.expires_at > NOW()
		ORDER BY l.expires_at ASC`

	rows, err := r.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []models.RateLimitLockInfo
	for rows.Next() {
		var info models.RateLimitLockInfo
		if err := rows.Scan(&info.TargetKey, &info.RuleID, &info.RuleName, &info.ExpiresAt); err != nil {
			return nil, err
		}
		locks = append(locks, info)
	}
	return locks, rows.Err()
}

func (r *rateLimitRepository) DeleteLock(ctx context.Context, targetKey string) error {
	result, err := r.DB().ExecContext(ctx, `DELETE FROM rate_limit_locks WHERE target_key = $1`, targetKey)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrLockNotFound
	}
	return nil
}

func (r *rateLimitRepository) SweepEvents(ctx context.Context, now time.Time) (int64, error) {
	// Keep twice the widest window so sliding-window counts never lose
	// events they may still need.
	var maxWindow int
	err := r.DB().QueryRowContext(ctx,
		`SELECT COALESCE(MAX(window_seconds), 3600) FROM rate_limit_rules`).Scan(&maxWindow)
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-2 * time.Duration(maxWindow) * time.Second)
	result, err := r.DB().ExecContext(ctx,
		`DELETE FROM rate_limit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *rateLimitRepository) SweepLocks(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.DB().ExecContext(ctx,
		`DELETE FROM rate_limit_locks WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
