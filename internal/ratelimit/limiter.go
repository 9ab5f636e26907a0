// Package ratelimit implements the database-backed action rate limiter with
// administrator-defined rules, identity-scoped target keys and lockouts.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"boardgate/internal/models"
	"boardgate/internal/repository"
)

// Identity carries the three hashed identity axes a rule can target. UserID
// is empty for anonymous actors, which disables the user-scoped targets.
type Identity struct {
	UserID     string
	IPHash     string
	DeviceHash string
}

// Decision is the limiter's verdict for one action
type Decision struct {
	Allowed bool
	// LockExpiresAt is the latest lock expiry when denied.
	LockExpiresAt time.Time
}

// Limiter evaluates governed actions against the enabled rules. Events are
// recorded even for denied actions, so sustained abuse keeps extending locks
// instead of draining them.
type Limiter struct {
	repo repository.RateLimitRepository
	now  func() time.Time
}

// NewLimiter creates a limiter over the given repository
func NewLimiter(repo repository.RateLimitRepository) *Limiter {
	return &Limiter{repo: repo, now: time.Now}
}

// CheckAndRecord evaluates one action for one actor. Exempt actors are always
// allowed and leave no events. Otherwise the event is recorded against every
// applicable enabled rule, active locks deny, and threshold breaches create
// or extend locks; a denial reports the longest-lived lock.
func (l *Limiter) CheckAndRecord(ctx context.Context, action models.RateLimitAction, id Identity, exempt bool) (Decision, error) {
	if exempt {
		return Decision{Allowed: true}, nil
	}
	now := l.now()

	existing, err := l.repo.ActiveLock(ctx, allTargetKeys(id), now)
	if err != nil && err != repository.ErrLockNotFound {
		return Decision{}, err
	}

	rules, rulesErr := l.repo.EnabledRulesForAction(ctx, action)
	if rulesErr != nil {
		return Decision{}, rulesErr
	}

	pairs := make([]repository.RuleKey, 0, len(rules))
	for _, rule := range rules {
		key, ok := targetKeyForRule(rule.Target, id)
		if !ok {
			continue
		}
		pairs = append(pairs, repository.RuleKey{Rule: rule, Key: key})
	}

	locks, err := l.repo.RecordAndEvaluate(ctx, pairs, now)
	if err != nil {
		return Decision{}, err
	}

	latest := time.Time{}
	if existing != nil {
		latest = existing.ExpiresAt
	}
	for _, lock := range locks {
		if lock.ExpiresAt.After(latest) {
			latest = lock.ExpiresAt
		}
	}

	if !latest.IsZero() {
		return Decision{Allowed: false, LockExpiresAt: latest}, nil
	}
	return Decision{Allowed: true}, nil
}

// Sweep deletes events older than twice the longest rule window and expired
// locks. Run from the maintenance schedule.
func (l *Limiter) Sweep(ctx context.Context) {
	now := l.now()
	if n, err := l.repo.SweepEvents(ctx, now); err != nil {
		log.Printf("Rate limit event sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("Rate limit sweep removed %d events", n)
	}
	if n, err := l.repo.SweepLocks(ctx, now); err != nil {
		log.Printf("Rate limit lock sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("Rate limit sweep removed %d expired locks", n)
	}
}

// targetKeyForRule derives the lock/event key for a rule target. Targets that
// need a user are skipped for anonymous actors.
func targetKeyForRule(target models.RateLimitTarget, id Identity) (string, bool) {
	switch target {
	case models.TargetUser:
		if id.UserID == "" {
			return "", false
		}
		return "user:" + id.UserID, true
	case models.TargetIP:
		return "ip:" + id.IPHash, true
	case models.TargetDevice:
		return "device:" + id.DeviceHash, true
	case models.TargetUserAndIP:
		if id.UserID == "" {
			return "", false
		}
		return fmt.Sprintf("user_ip:%s:%s", id.UserID, id.IPHash), true
	case models.TargetUserAndDevice:
		if id.UserID == "" {
			return "", false
		}
		return fmt.Sprintf("user_device:%s:%s", id.UserID, id.DeviceHash), true
	case models.TargetIPAndDevice:
		return fmt.Sprintf("ip_device:%s:%s", id.IPHash, id.DeviceHash), true
	case models.TargetAll:
		return "all:", true
	}
	return "", false
}

// allTargetKeys enumerates every key shape the actor could be locked under
func allTargetKeys(id Identity) []string {
	keys := []string{
		"ip:" + id.IPHash,
		"device:" + id.DeviceHash,
		fmt.Sprintf("ip_device:%s:%s", id.IPHash, id.DeviceHash),
		"all:",
	}
	if id.UserID != "" {
		keys = append(keys,
			"user:"+id.UserID,
			fmt.Sprintf("user_ip:%s:%s", id.UserID, id.IPHash),
			fmt.Sprintf("user_device:%s:%s", id.UserID, id.DeviceHash),
		)
	}
	return keys
}
