package ratelimit

import (
	"context"
	"testing"
	"time"

	"boardgate/internal/models"
	"boardgate/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*Limiter, *testutil.RateLimitRepo) {
	t.Helper()
	repo := testutil.NewRateLimitRepo()
	return NewLimiter(repo), repo
}

func addRule(t *testing.T, repo *testutil.RateLimitRepo, target models.RateLimitTarget, action models.RateLimitAction, threshold, window, lockout int) *models.RateLimitRule {
	t.Helper()
	rule := &models.RateLimitRule{
		Name:           "test rule",
		Target:         target,
		ActionType:     action,
		Threshold:      threshold,
		WindowSeconds:  window,
		LockoutSeconds: lockout,
		IsEnabled:      true,
		CreatedBy:      uuid.New(),
	}
	require.NoError(t, repo.CreateRule(context.Background(), rule))
	return rule
}

func testIdentity() Identity {
	return Identity{
		UserID:     "user-1",
		IPHash:     "iphash-1",
		DeviceHash: "devicehash-1",
	}
}

func TestCheckAndRecordThreshold(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	addRule(t, repo, models.TargetUser, models.ActionCreateComment, 3, 60, 120)
	id := testIdentity()

	// The first two actions pass, the third crosses the threshold.
	for i := 0; i < 2; i++ {
		decision, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, id, false)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "action %d should be allowed", i+1)
	}

	decision, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, id, false)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.WithinDuration(t, time.Now().Add(120*time.Second), decision.LockExpiresAt, 2*time.Second)
}

func TestCheckAndRecordDeniedActionsStillRecorded(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	addRule(t, repo, models.TargetUser, models.ActionCreateComment, 2, 60, 300)
	id := testIdentity()

	for i := 0; i < 5; i++ {
		_, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, id, false)
		require.NoError(t, err)
	}

	// Hammering while locked keeps adding events rather than draining them.
	assert.Len(t, repo.Events(), 5)
}

func TestCheckAndRecordExistingLockDenies(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	addRule(t, repo, models.TargetIP, models.ActionCreateThread, 1, 60, 600)
	id := testIdentity()

	decision, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateThread, id, false)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// A different user behind the same address is denied by the standing lock.
	other := id
	other.UserID = "user-2"
	decision, err = limiter.CheckAndRecord(context.Background(), models.ActionCreateThread, other, false)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCheckAndRecordExemptActor(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	addRule(t, repo, models.TargetUser, models.ActionCreateComment, 1, 60, 600)
	id := testIdentity()

	for i := 0; i < 3; i++ {
		decision, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, id, true)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}

	// Exempt actors leave no trace.
	assert.Empty(t, repo.Events())
}

func TestCheckAndRecordDisabledRuleIgnored(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	rule := addRule(t, repo, models.TargetUser, models.ActionCreateComment, 1, 60, 600)
	_, err := repo.ToggleRule(context.Background(), rule.ID)
	require.NoError(t, err)

	decision, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, testIdentity(), false)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckAndRecordOtherActionUnaffected(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	addRule(t, repo, models.TargetUser, models.ActionCreateThread, 1, 60, 600)
	id := testIdentity()

	decision, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateThread, id, false)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// The thread lock keys on its own target; comments use the same key shape
	// and are caught by the standing lock, but a board creation under a rule
	// with no lock is fine.
	decision, err = limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, id, false)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCheckAndRecordAnonymousSkipsUserTargets(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	addRule(t, repo, models.TargetUser, models.ActionCreateComment, 1, 60, 600)
	addRule(t, repo, models.TargetUserAndIP, models.ActionCreateComment, 1, 60, 600)

	anonymous := Identity{IPHash: "iphash-9", DeviceHash: "devicehash-9"}
	decision, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, anonymous, false)
	require.NoError(t, err)

	// No user-scoped rule applies, so nothing is recorded and nothing locks.
	assert.True(t, decision.Allowed)
	assert.Empty(t, repo.Events())
}

func TestCheckAndRecordLongestLockWins(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	addRule(t, repo, models.TargetUser, models.ActionCreateComment, 1, 60, 60)
	addRule(t, repo, models.TargetIP, models.ActionCreateComment, 1, 60, 3600)

	decision, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, testIdentity(), false)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.WithinDuration(t, time.Now().Add(time.Hour), decision.LockExpiresAt, 2*time.Second)
}

func TestCheckAndRecordLockExpiryRollover(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	addRule(t, repo, models.TargetUser, models.ActionCreateComment, 2, 60, 300)
	id := testIdentity()

	base := time.Now()
	limiter.now = func() time.Time { return base }

	decision, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, id, false)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, id, false)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, base.Add(300*time.Second), decision.LockExpiresAt)

	// Past the lockout, with the counting window rolled over, the same actor
	// posts again.
	limiter.now = func() time.Time { return base.Add(301 * time.Second) }
	decision, err = limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, id, false)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Len(t, repo.Events(), 3)
}

func TestTargetKeyForRule(t *testing.T) {
	id := testIdentity()

	tests := []struct {
		target models.RateLimitTarget
		key    string
		ok     bool
	}{
		{models.TargetUser, "user:user-1", true},
		{models.TargetIP, "ip:iphash-1", true},
		{models.TargetDevice, "device:devicehash-1", true},
		{models.TargetUserAndIP, "user_ip:user-1:iphash-1", true},
		{models.TargetUserAndDevice, "user_device:user-1:devicehash-1", true},
		{models.TargetIPAndDevice, "ip_device:iphash-1:devicehash-1", true},
		{models.TargetAll, "all:", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			key, ok := targetKeyForRule(tt.target, id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestAllTargetKeysAnonymous(t *testing.T) {
	keys := allTargetKeys(Identity{IPHash: "ih", DeviceHash: "dh"})

	assert.ElementsMatch(t, []string{
		"ip:ih", "device:dh", "ip_device:ih:dh", "all:",
	}, keys)
}

func TestSweep(t *testing.T) {
	limiter, repo := newTestLimiter(t)
	addRule(t, repo, models.TargetAll, models.ActionCreateComment, 1, 60, 1)
	id := testIdentity()

	_, err := limiter.CheckAndRecord(context.Background(), models.ActionCreateComment, id, false)
	require.NoError(t, err)

	// Force the lock past expiry, then sweep.
	limiter.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	limiter.Sweep(context.Background())

	assert.Empty(t, repo.Events())
	locks, err := repo.ListActiveLocks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, locks)
}
