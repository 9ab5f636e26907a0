package repository

import (
	"boardgate/internal/models"
	"context"
	"time"

	"github.com/google/uuid"
)

// RuleKey pairs a rule with the target key derived for the current actor
type RuleKey struct {
	Rule models.RateLimitRule
	Key  string
}

// RateLimitRepository stores rules, events and locks for the rate limiter
type RateLimitRepository interface {
	// Rule administration
	CreateRule(ctx context.Context, rule *models.RateLimitRule) error
	UpdateRule(ctx context.Context, rule *models.RateLimitRule) error
	ToggleRule(ctx context.Context, id uuid.UUID) (*models.RateLimitRule, error)
	// DeleteRule removes the rule and its dependent locks in one transaction.
	DeleteRule(ctx context.Context, id uuid.UUID) error
	GetRule(ctx context.Context, id uuid.UUID) (*models.RateLimitRule, error)
	ListRules(ctx context.Context) ([]models.RateLimitRuleInfo, error)
	EnabledRulesForAction(ctx context.Context, action models.RateLimitAction) ([]models.RateLimitRule, error)

	// ActiveLock returns the unexpired lock with the latest expiry among the
	// given target keys, or ErrLockNotFound.
	ActiveLock(ctx context.Context, keys []string, now time.Time) (*models.RateLimitLock, error)

	// RecordAndEvaluate inserts one event per rule/key pair and, for every
	// pair whose in-window event count has reached the rule's threshold,
	// upserts a lock expiring at now+lockout. All writes happen in a single
	// transaction; the lock upsert keeps the later expiry on conflict.
	// Returns the locks created or extended by this call.
	RecordAndEvaluate(ctx context.Context, pairs []RuleKey, now time.Time) ([]models.RateLimitLock, error)

	// Lock administration
	ListActiveLocks(ctx context.Context) ([]models.RateLimitLockInfo, error)
	DeleteLock(ctx context.Context, targetKey string) error

	// Maintenance
	SweepEvents(ctx context.Context, now time.Time) (int64, error)
	SweepLocks(ctx context.Context, now time.Time) (int64, error)
}
