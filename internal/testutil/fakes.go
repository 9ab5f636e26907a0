// Package testutil provides in-memory repository and service fakes for tests
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"boardgate/internal/challenge"
	"boardgate/internal/models"
	"boardgate/internal/reputation"
	"boardgate/internal/repository"

	"github.com/google/uuid"
)

// UserRepo is an in-memory repository.UserRepository
type UserRepo struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*models.User
	MaxUserLevel int
}

// NewUserRepo creates an empty in-memory user repository
func NewUserRepo() *UserRepo {
	return &UserRepo{
		users:        make(map[uuid.UUID]*models.User),
		MaxUserLevel: repository.DefaultMaxUserLevel,
	}
}

// Add seeds a user directly
func (r *UserRepo) Add(user *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	copied := *user
	r.users[user.ID] = &copied
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrUsernameExists
		}
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = time.Now()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *UserRepo) IncrementLevel(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	now := time.Now()
	u.Level++
	u.LastLevelUpAt = &now
	u.LevelUpFailureCount = 0
	return nil
}

func (r *UserRepo) RecordVerificationFailure(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.LevelUpFailureCount++
	u.LastLevelUpAttemptAt = &at
	return nil
}

func (r *UserRepo) MaxLevel(ctx context.Context) (int, error) {
	return r.MaxUserLevel, nil
}

// AttemptRepo is an in-memory repository.VerificationAttemptRepository
type AttemptRepo struct {
	mu       sync.Mutex
	attempts []*models.VerificationAttempt
}

// NewAttemptRepo creates an empty in-memory attempt repository
func NewAttemptRepo() *AttemptRepo {
	return &AttemptRepo{}
}

// All returns every stored attempt
func (r *AttemptRepo) All() []*models.VerificationAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.VerificationAttempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

func (r *AttemptRepo) Create(ctx context.Context, attempt *models.VerificationAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	copied := *attempt
	r.attempts = append(r.attempts, &copied)
	return nil
}

func (r *AttemptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.ID == id {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AttemptRepo) CheckHashReuse(ctx context.Context, hashes repository.CompositeHashes, threeWaySince, twoWaySince time.Time) (repository.HashReuse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result repository.HashReuse
	for _, a := range r.attempts {
		if !a.IsSuccess {
			continue
		}
		if a.HashWebglCanvasAudio == hashes.WebglCanvasAudio && a.CreatedAt.After(threeWaySince) {
			result.ThreeWayFound = true
		}
		if a.CreatedAt.After(twoWaySince) &&
			(a.HashWebglCanvas == hashes.WebglCanvas ||
				a.HashWebglAudio == hashes.WebglAudio ||
				a.HashCanvasAudio == hashes.CanvasAudio) {
			result.TwoWayFound = true
		}
	}
	return result, nil
}

// TokenRepo is an in-memory repository.PreflightTokenRepository with the same
// single-use consumption semantics as the database implementation.
type TokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.PreflightToken
}

// NewTokenRepo creates an empty in-memory token repository
func NewTokenRepo() *TokenRepo {
	return &TokenRepo{tokens: make(map[string]*models.PreflightToken)}
}

func (r *TokenRepo) Create(ctx context.Context, attemptID uuid.UUID, ttl time.Duration) (*models.PreflightToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	pt := &models.PreflightToken{
		ID:        uuid.New(),
		Token:     hex.EncodeToString(raw),
		AttemptID: attemptID,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *pt
	r.tokens[pt.Token] = &copied
	return pt, nil
}

func (r *TokenRepo) Consume(ctx context.Context, token string) (*models.PreflightToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pt, ok := r.tokens[token]
	if !ok || pt.UsedAt != nil {
		return nil, repository.ErrTokenInvalid
	}
	now := time.Now()
	pt.UsedAt = &now
	if now.After(pt.ExpiresAt) {
		return nil, repository.ErrTokenExpired
	}
	copied := *pt
	return &copied, nil
}

// BanRepo is an in-memory repository.BanRepository
type BanRepo struct {
	mu     sync.Mutex
	hashes map[string]bool
}

// NewBanRepo creates an empty in-memory ban repository
func NewBanRepo() *BanRepo {
	return &BanRepo{hashes: make(map[string]bool)}
}

// Ban marks a hash as banned
func (r *BanRepo) Ban(hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes[hash] = true
}

func (r *BanRepo) IsBanned(ctx context.Context, userHash, ipHash, deviceHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hashes[userHash] || r.hashes[ipHash] || r.hashes[deviceHash], nil
}

// BoardRepo is an in-memory repository.BoardRepository
type BoardRepo struct {
	mu       sync.Mutex
	boards   map[string]*models.Board
	threads  []*models.Thread
	comments []*models.Comment
}

// NewBoardRepo creates an empty in-memory board repository
func NewBoardRepo() *BoardRepo {
	return &BoardRepo{boards: make(map[string]*models.Board)}
}

// Threads returns every stored thread
func (r *BoardRepo) Threads() []*models.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Thread, len(r.threads))
	copy(out, r.threads)
	return out
}

// Comments returns every stored comment
func (r *BoardRepo) Comments() []*models.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Comment, len(r.comments))
	copy(out, r.comments)
	return out
}

func (r *BoardRepo) GetBoardByKey(ctx context.Context, key string) (*models.Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boards[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *BoardRepo) CreateBoard(ctx context.Context, board *models.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.boards[board.Key]; ok {
		return repository.ErrDuplicate
	}
	if board.ID == uuid.Nil {
		board.ID = uuid.New()
	}
	board.CreatedAt = time.Now()
	copied := *board
	r.boards[board.Key] = &copied
	return nil
}

func (r *BoardRepo) CreateThread(ctx context.Context, thread *models.Thread, first *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		if t.BoardID == thread.BoardID && t.ThreadKey == thread.ThreadKey {
			return repository.ErrDuplicate
		}
	}
	if thread.ID == uuid.Nil {
		thread.ID = uuid.New()
	}
	if first.ID == uuid.Nil {
		first.ID = uuid.New()
	}
	thread.CreatedAt = time.Now()
	first.ThreadID = thread.ID
	first.CreatedAt = thread.CreatedAt
	threadCopy := *thread
	commentCopy := *first
	r.threads = append(r.threads, &threadCopy)
	r.comments = append(r.comments, &commentCopy)
	return nil
}

func (r *BoardRepo) GetThreadByKey(ctx context.Context, boardID uuid.UUID, threadKey int64) (*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		if t.BoardID == boardID && t.ThreadKey == threadKey {
			copied := *t
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *BoardRepo) CreateComment(ctx context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	comment.CreatedAt = time.Now()
	copied := *comment
	r.comments = append(r.comments, &copied)
	return nil
}

// RateLimitRepo is an in-memory repository.RateLimitRepository
type RateLimitRepo struct {
	mu     sync.Mutex
	rules  []*models.RateLimitRule
	events []models.RateLimitEvent
	locks  map[string]*models.RateLimitLock
}

// NewRateLimitRepo creates an empty in-memory rate limit repository
func NewRateLimitRepo() *RateLimitRepo {
	return &RateLimitRepo{locks: make(map[string]*models.RateLimitLock)}
}

// Events returns every recorded event
func (r *RateLimitRepo) Events() []models.RateLimitEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RateLimitEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *RateLimitRepo) CreateRule(ctx context.Context, rule *models.RateLimitRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	copied := *rule
	r.rules = append(r.rules, &copied)
	return nil
}

func (r *RateLimitRepo) UpdateRule(ctx context.Context, rule *models.RateLimitRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.rules {
		if existing.ID == rule.ID {
			rule.CreatedBy = existing.CreatedBy
			rule.CreatedAt = existing.CreatedAt
			rule.UpdatedAt = time.Now()
			copied := *rule
			r.rules[i] = &copied
			return nil
		}
	}
	return repository.ErrRuleNotFound
}

func (r *RateLimitRepo) ToggleRule(ctx context.Context, id uuid.UUID) (*models.RateLimitRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.ID == id {
			rule.IsEnabled = !rule.IsEnabled
			rule.UpdatedAt = time.Now()
			copied := *rule
			return &copied, nil
		}
	}
	return nil, repository.ErrRuleNotFound
}

func (r *RateLimitRepo) DeleteRule(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rule := range r.rules {
		if rule.ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			for key, lock := range r.locks {
				if lock.RuleID == id {
					delete(r.locks, key)
				}
			}
			kept := r.events[:0]
			for _, e := range r.events {
				if e.RuleID != id {
					kept = append(kept, e)
				}
			}
			r.events = kept
			return nil
		}
	}
	return repository.ErrRuleNotFound
}

func (r *RateLimitRepo) GetRule(ctx context.Context, id uuid.UUID) (*models.RateLimitRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.ID == id {
			copied := *rule
			return &copied, nil
		}
	}
	return nil, repository.ErrRuleNotFound
}

func (r *RateLimitRepo) ListRules(ctx context.Context) ([]models.RateLimitRuleInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RateLimitRuleInfo, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, models.RateLimitRuleInfo{RateLimitRule: *rule})
	}
	return out, nil
}

func (r *RateLimitRepo) EnabledRulesForAction(ctx context.Context, action models.RateLimitAction) ([]models.RateLimitRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RateLimitRule
	for _, rule := range r.rules {
		if rule.IsEnabled && rule.ActionType == action {
			out = append(out, *rule)
		}
	}
	return out, nil
}

func (r *RateLimitRepo) ActiveLock(ctx context.Context, keys []string, now time.Time) (*models.RateLimitLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.RateLimitLock
	for _, key := range keys {
		lock, ok := r.locks[key]
		if !ok || !lock.ExpiresAt.After(now) {
			continue
		}
		if best == nil || lock.ExpiresAt.After(best.ExpiresAt) {
			best = lock
		}
	}
	if best == nil {
		return nil, repository.ErrLockNotFound
	}
	copied := *best
	return &copied, nil
}

func (r *RateLimitRepo) RecordAndEvaluate(ctx context.Context, pairs []repository.RuleKey, now time.Time) ([]models.RateLimitLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var created []models.RateLimitLock
	for _, pair := range pairs {
		r.events = append(r.events, models.RateLimitEvent{
			ID:        uuid.New(),
			RuleID:    pair.Rule.ID,
			TargetKey: pair.Key,
			CreatedAt: now,
		})

		windowStart := now.Add(-time.Duration(pair.Rule.WindowSeconds) * time.Second)
		count := 0
		for _, e := range r.events {
			if e.RuleID == pair.Rule.ID && e.TargetKey == pair.Key && e.CreatedAt.After(windowStart) {
				count++
			}
		}
		if count < pair.Rule.Threshold {
			continue
		}

		expiresAt := now.Add(time.Duration(pair.Rule.LockoutSeconds) * time.Second)
		if existing, ok := r.locks[pair.Key]; ok && existing.ExpiresAt.After(expiresAt) {
			expiresAt = existing.ExpiresAt
		}
		lock := models.RateLimitLock{TargetKey: pair.Key, RuleID: pair.Rule.ID, ExpiresAt: expiresAt}
		stored := lock
		r.locks[pair.Key] = &stored
		created = append(created, lock)
	}
	return created, nil
}

func (r *RateLimitRepo) ListActiveLocks(ctx context.Context) ([]models.RateLimitLockInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []models.RateLimitLockInfo
	for _, lock := range r.locks {
		if lock.ExpiresAt.After(now) {
			out = append(out, models.RateLimitLockInfo{
				TargetKey: lock.TargetKey,
				RuleID:    lock.RuleID,
				ExpiresAt: lock.ExpiresAt,
			})
		}
	}
	return out, nil
}

func (r *RateLimitRepo) DeleteLock(ctx context.Context, targetKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locks[targetKey]; !ok {
		return repository.ErrLockNotFound
	}
	delete(r.locks, targetKey)
	return nil
}

func (r *RateLimitRepo) SweepEvents(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	maxWindow := 3600
	for _, rule := range r.rules {
		if rule.WindowSeconds > maxWindow {
			maxWindow = rule.WindowSeconds
		}
	}
	cutoff := now.Add(-2 * time.Duration(maxWindow) * time.Second)
	kept := r.events[:0]
	removed := int64(0)
	for _, e := range r.events {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return removed, nil
}

func (r *RateLimitRepo) SweepLocks(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := int64(0)
	for key, lock := range r.locks {
		if lock.ExpiresAt.Before(now) {
			delete(r.locks, key)
			removed++
		}
	}
	return removed, nil
}

// StubVerifier is a canned challenge provider
type StubVerifier struct {
	ProviderName string
	Success      bool
	Err          error
}

// Name returns the provider identifier
func (s *StubVerifier) Name() string { return s.ProviderName }

// Verify returns the canned result
func (s *StubVerifier) Verify(ctx context.Context, token, remoteIP string) (challenge.Result, error) {
	if s.Err != nil {
		return challenge.Result{}, s.Err
	}
	return challenge.Result{Provider: s.ProviderName, Success: s.Success}, nil
}

// StubReputation is a canned reputation lookup
type StubReputation struct {
	Result reputation.Result
	Err    error
}

// Lookup returns the canned result
func (s *StubReputation) Lookup(ctx context.Context, ip string) (reputation.Result, error) {
	if s.Err != nil {
		return reputation.Result{}, s.Err
	}
	return s.Result, nil
}
