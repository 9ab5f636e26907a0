// Package verification implements the preflight/finalize flow guarding
// registration and level-up.
package verification

import (
	"context"
	"fmt"
	"time"

	"boardgate/internal/challenge"
	"boardgate/internal/config"
	"boardgate/internal/fingerprint"
	"boardgate/internal/models"
	"boardgate/internal/reputation"
	"boardgate/internal/repository"
)

// Public rejection reasons returned to clients. Internal detail never leaves
// the server log.
const (
	ReasonChallengeFailed       = "challenge_failed"
	ReasonChallengeUnavailable  = "challenge_unavailable"
	ReasonBanned                = "banned"
	ReasonFingerprintInvalid    = "fingerprint_invalid"
	ReasonFingerprintReuse      = "fingerprint_reuse"
	ReasonReputationUnavailable = "reputation_unavailable"
	ReasonLocked                = "locked"
	ReasonMaxLevel              = "max_level_reached"
)

// RejectedError is a policy rejection as opposed to an infrastructure
// failure. Reason is safe to show the client; Detail is for the log.
type RejectedError struct {
	Reason string
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
	return e.Reason
}

// TokenVerifier checks one challenge provider's token
type TokenVerifier interface {
	Name() string
	Verify(ctx context.Context, token, remoteIP string) (challenge.Result, error)
}

// ReputationLookup queries the IP reputation service
type ReputationLookup interface {
	Lookup(ctx context.Context, ip string) (reputation.Result, error)
}

// Input is everything the pipeline needs about one preflight call. User is
// nil for registration attempts.
type Input struct {
	Kind     models.AttemptKind
	User     *models.User
	RemoteIP string
	Request  models.PreflightRequest
}

// Outcome is a successful preflight: the persisted attempt and its token
type Outcome struct {
	Attempt *models.VerificationAttempt
	Token   *models.PreflightToken
}

// Pipeline runs the ordered preflight checks and the finalize consumption.
// Checks run cheapest first; the attempt row is written exactly once per
// preflight, rejected or not.
type Pipeline struct {
	attempts   repository.VerificationAttemptRepository
	tokens     repository.PreflightTokenRepository
	users      repository.UserRepository
	bans       repository.BanRepository
	primary    TokenVerifier
	secondary  TokenVerifier
	reputation ReputationLookup
	identity   *fingerprint.Hasher
	cfg        config.VerificationConfig
	repCfg     config.ReputationConfig

	now func() time.Time
}

// NewPipeline wires the pipeline. The reputation lookup may be nil when the
// service is not configured; lookups are then skipped entirely.
func NewPipeline(
	attempts repository.VerificationAttemptRepository,
	tokens repository.PreflightTokenRepository,
	users repository.UserRepository,
	bans repository.BanRepository,
	primary, secondary TokenVerifier,
	rep ReputationLookup,
	identity *fingerprint.Hasher,
	cfg config.VerificationConfig,
	repCfg config.ReputationConfig,
) *Pipeline {
	return &Pipeline{
		attempts:   attempts,
		tokens:     tokens,
		users:      users,
		bans:       bans,
		primary:    primary,
		secondary:  secondary,
		reputation: rep,
		identity:   identity,
		cfg:        cfg,
		repCfg:     repCfg,
		now:        time.Now,
	}
}

// Preflight runs every check for one attempt. On success it persists a
// success attempt and mints a single-use token. On rejection it persists a
// failure attempt, bumps the user's failure counter for level-up, and
// returns a RejectedError.
func (p *Pipeline) Preflight(ctx context.Context, in Input) (*Outcome, error) {
	now := p.now()

	if in.Kind == models.AttemptLevelUp {
		if err := p.checkEligibility(ctx, in.User, now); err != nil {
			return nil, err
		}
	}

	hashes, hashErr := fingerprint.Compute(in.Request.FingerprintData)

	attempt := &models.VerificationAttempt{
		Kind:                 in.Kind,
		IPAddress:            in.RemoteIP,
		FingerprintJSON:      in.Request.FingerprintData,
		HashWebglCanvasAudio: hashes.H3,
		HashWebglCanvas:      hashes.HWC,
		HashWebglAudio:       hashes.HWA,
		HashCanvasAudio:      hashes.HCA,
	}
	if in.User != nil {
		id := in.User.ID
		attempt.UserID = &id
	}

	if err := p.runChecks(ctx, in, attempt, hashes, hashErr, now); err != nil {
		rejected, ok := err.(*RejectedError)
		if !ok {
			return nil, err
		}
		reason := rejected.Reason
		attempt.RejectionReason = &reason
		if createErr := p.attempts.Create(ctx, attempt); createErr != nil {
			return nil, createErr
		}
		if in.Kind == models.AttemptLevelUp && in.User != nil {
			if failErr := p.users.RecordVerificationFailure(ctx, in.User.ID, now); failErr != nil {
				return nil, failErr
			}
		}
		return nil, rejected
	}

	attempt.IsSuccess = true
	if err := p.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	token, err := p.tokens.Create(ctx, attempt.ID, p.cfg.PreflightTokenTTL)
	if err != nil {
		return nil, err
	}

	return &Outcome{Attempt: attempt, Token: token}, nil
}

// runChecks executes the rejectable middle of the pipeline and mutates the
// attempt with reputation data as it goes.
func (p *Pipeline) runChecks(ctx context.Context, in Input, attempt *models.VerificationAttempt, hashes fingerprint.Hashes, hashErr error, now time.Time) error {
	admin := in.User != nil && in.User.IsAdmin()

	for _, verifier := range []TokenVerifier{p.primary, p.secondary} {
		token := in.Request.ChallengeToken
		if verifier == p.secondary {
			token = in.Request.SecondaryChallengeToken
		}
		result, err := verifier.Verify(ctx, token, in.RemoteIP)
		if err != nil {
			return &RejectedError{Reason: ReasonChallengeUnavailable, Detail: err.Error()}
		}
		if !result.Success {
			return &RejectedError{
				Reason: ReasonChallengeFailed,
				Detail: fmt.Sprintf("%s rejected token: %v", verifier.Name(), result.ErrorCodes),
			}
		}
	}

	if in.Kind == models.AttemptLevelUp && in.User != nil {
		userHash := p.identity.UserHash(in.User.ID.String())
		ipHash := p.identity.IPHash(in.RemoteIP)
		deviceHash := p.identity.DeviceHash(hashes.H3)
		banned, err := p.bans.IsBanned(ctx, userHash, ipHash, deviceHash)
		if err != nil {
			return err
		}
		if banned {
			return &RejectedError{Reason: ReasonBanned}
		}
	}

	if hashErr != nil {
		return &RejectedError{Reason: ReasonFingerprintInvalid, Detail: hashErr.Error()}
	}

	if !admin && !p.cfg.DisableReuseCheck {
		reuse, err := p.attempts.CheckHashReuse(ctx, repository.CompositeHashes{
			WebglCanvasAudio: hashes.H3,
			WebglCanvas:      hashes.HWC,
			WebglAudio:       hashes.HWA,
			CanvasAudio:      hashes.HCA,
		}, now.Add(-p.cfg.ThreeWayWindow), now.Add(-p.cfg.TwoWayWindow))
		if err != nil {
			return err
		}
		if reuse.ThreeWayFound || reuse.TwoWayFound {
			return &RejectedError{Reason: ReasonFingerprintReuse}
		}
	}

	if p.reputationEnabled(in.Kind) {
		result, err := p.reputation.Lookup(ctx, in.RemoteIP)
		if err != nil {
			// Fail closed: an unreachable reputation service rejects rather
			// than waves through.
			return &RejectedError{Reason: ReasonReputationUnavailable, Detail: err.Error()}
		}
		attempt.ReputationID = result.Node
		attempt.ReputationJSON = result.Raw
		if reason, blocked := reputation.Disallowed(result, p.repCfg.BlockedCountries); blocked && !admin {
			return &RejectedError{Reason: reason}
		}
	}

	return nil
}

func (p *Pipeline) reputationEnabled(kind models.AttemptKind) bool {
	if p.reputation == nil {
		return false
	}
	switch kind {
	case models.AttemptRegistration:
		return p.repCfg.EnabledRegistration
	case models.AttemptLevelUp:
		return p.repCfg.EnabledLevelUp
	}
	return false
}

// checkEligibility enforces the per-user level-up gates before any external
// call is made.
func (p *Pipeline) checkEligibility(ctx context.Context, user *models.User, now time.Time) error {
	if user == nil {
		return fmt.Errorf("level-up preflight requires an authenticated user")
	}
	if user.BannedFromLevelUp {
		return &RejectedError{Reason: ReasonBanned}
	}

	maxLevel, err := p.users.MaxLevel(ctx)
	if err != nil {
		return err
	}
	if user.Level >= maxLevel {
		return &RejectedError{Reason: ReasonMaxLevel}
	}

	if locked, _ := p.lockState(user, now); locked {
		return &RejectedError{Reason: ReasonLocked}
	}
	return nil
}

// lockState reports whether the user is inside the post-success lock or the
// failure lockout, and when the lock ends.
func (p *Pipeline) lockState(user *models.User, now time.Time) (bool, time.Time) {
	if user.LastLevelUpAt != nil {
		until := user.LastLevelUpAt.Add(p.cfg.SuccessLock)
		if now.Before(until) {
			return true, until
		}
	}
	if user.LevelUpFailureCount >= p.cfg.MaxFailures && user.LastLevelUpAttemptAt != nil {
		until := user.LastLevelUpAttemptAt.Add(p.cfg.FailureLockout)
		if now.Before(until) {
			return true, until
		}
	}
	return false, time.Time{}
}

// Finalize consumes a preflight token and, if the consumption wins, runs the
// protected action. The consumption is a compare-and-swap: exactly one
// concurrent caller proceeds. An action failure after consumption does not
// refund the token.
func (p *Pipeline) Finalize(ctx context.Context, token string, action func(ctx context.Context, attempt *models.VerificationAttempt) error) (*models.VerificationAttempt, error) {
	consumed, err := p.tokens.Consume(ctx, token)
	if err != nil {
		return nil, err
	}

	attempt, err := p.attempts.GetByID(ctx, consumed.AttemptID)
	if err != nil {
		return nil, err
	}

	if err := action(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// Status reports whether the user may start a level-up attempt right now
func (p *Pipeline) Status(ctx context.Context, user *models.User) (*models.VerificationStatusResponse, error) {
	now := p.now()

	if user.BannedFromLevelUp {
		return &models.VerificationStatusResponse{
			CanAttempt: false,
			Message:    "level up is not available for this account",
		}, nil
	}

	maxLevel, err := p.users.MaxLevel(ctx)
	if err != nil {
		return nil, err
	}
	if user.Level >= maxLevel {
		return &models.VerificationStatusResponse{
			CanAttempt: false,
			Message:    "maximum level reached",
		}, nil
	}

	if locked, until := p.lockState(user, now); locked {
		seconds := int64(until.Sub(now).Seconds())
		return &models.VerificationStatusResponse{
			CanAttempt:           false,
			IsLocked:             true,
			LockExpiresInSeconds: &seconds,
			Message:              "level up is locked",
		}, nil
	}

	return &models.VerificationStatusResponse{CanAttempt: true, Message: "ready"}, nil
}
