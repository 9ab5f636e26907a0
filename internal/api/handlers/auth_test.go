package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boardgate/internal/auth"
	"boardgate/internal/config"
	"boardgate/internal/fingerprint"
	"boardgate/internal/models"
	"boardgate/internal/testutil"
	"boardgate/internal/validation"
	"boardgate/internal/verification"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authEnv struct {
	router      *gin.Engine
	users       *testutil.UserRepo
	authService *auth.Service
	primary     *testutil.StubVerifier
	secondary   *testutil.StubVerifier
	cfg         *config.Config
}

func newAuthEnv(t *testing.T, opts ...func(*config.Config)) *authEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Initialize()

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.JWTExpiration = 1
	cfg.Auth.RegistrationOpen = true
	cfg.Verification = config.VerificationConfig{
		ThreeWayWindow:    23 * time.Hour,
		TwoWayWindow:      time.Hour,
		PreflightTokenTTL: 5 * time.Minute,
		SuccessLock:       23 * time.Hour,
		MaxFailures:       3,
		FailureLockout:    5 * time.Minute,
		IdentitySalt:      "identity-salt",
		DailySalt:         "daily-salt",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	users := testutil.NewUserRepo()
	primary := &testutil.StubVerifier{ProviderName: "turnstile", Success: true}
	secondary := &testutil.StubVerifier{ProviderName: "hcaptcha", Success: true}

	pipeline := verification.NewPipeline(
		testutil.NewAttemptRepo(),
		testutil.NewTokenRepo(),
		users,
		testutil.NewBanRepo(),
		primary, secondary,
		nil, // reputation not configured
		fingerprint.NewHasher("identity-salt", "daily-salt"),
		cfg.Verification,
		cfg.Reputation,
	)

	authService := auth.NewService(cfg)
	handler := NewAuthHandler(users, authService, pipeline, cfg)

	r := gin.New()
	r.POST("/auth/login", handler.Login)
	r.POST("/auth/register/preflight", handler.RegisterPreflight)
	r.POST("/auth/register", handler.Register)

	return &authEnv{
		router:      r,
		users:       users,
		authService: authService,
		primary:     primary,
		secondary:   secondary,
		cfg:         cfg,
	}
}

func (env *authEnv) postJSON(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func preflightBody() models.PreflightRequest {
	return models.PreflightRequest{
		ChallengeToken:          "primary-token",
		SecondaryChallengeToken: "secondary-token",
		FingerprintData:         json.RawMessage(`{"webgl":"w","canvas":"c","audio":"a"}`),
	}
}

func (env *authEnv) runPreflight(t *testing.T) string {
	t.Helper()
	w := env.postJSON(t, "/auth/register/preflight", preflightBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.PreflightResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.PreflightToken)
	return resp.PreflightToken
}

func TestRegistrationFlow(t *testing.T) {
	env := newAuthEnv(t)
	token := env.runPreflight(t)

	w := env.postJSON(t, "/auth/register", models.RegisterRequest{
		PreflightToken: token,
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created, err := env.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.Equal(t, 0, created.Level)
	// Stored as a bcrypt hash, never the raw password.
	assert.NoError(t, env.authService.ComparePasswords(created.Password, "password123"))
}

func TestRegisterTokenSingleUse(t *testing.T) {
	env := newAuthEnv(t)
	token := env.runPreflight(t)

	first := env.postJSON(t, "/auth/register", models.RegisterRequest{
		PreflightToken: token,
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "password123",
	})
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.postJSON(t, "/auth/register", models.RegisterRequest{
		PreflightToken: token,
		Username:       "mallory",
		Email:          "mallory@example.com",
		Password:       "password123",
	})
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.JSONEq(t, `{"error":"invalid or expired preflight token"}`, second.Body.String())
}

func TestRegisterInvalidToken(t *testing.T) {
	env := newAuthEnv(t)

	w := env.postJSON(t, "/auth/register", models.RegisterRequest{
		PreflightToken: "no-such-token",
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid or expired preflight token"}`, w.Body.String())
}

func TestRegisterTokenStatesIndistinguishable(t *testing.T) {
	env := newAuthEnv(t, func(cfg *config.Config) {
		cfg.Verification.PreflightTokenTTL = -time.Minute
	})
	token := env.runPreflight(t)

	expired := env.postJSON(t, "/auth/register", models.RegisterRequest{
		PreflightToken: token,
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "password123",
	})
	assert.Equal(t, http.StatusBadRequest, expired.Code)

	unknown := env.postJSON(t, "/auth/register", models.RegisterRequest{
		PreflightToken: "no-such-token",
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "password123",
	})
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	// An expired token and an unknown token produce the same response, so a
	// caller cannot probe which check failed.
	assert.JSONEq(t, unknown.Body.String(), expired.Body.String())
}

func TestRegisterPreflightChallengeFails(t *testing.T) {
	env := newAuthEnv(t)
	env.secondary.Success = false

	w := env.postJSON(t, "/auth/register/preflight", preflightBody())
	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, verification.ReasonChallengeFailed, resp.Error)
}

func TestRegisterRegistrationClosed(t *testing.T) {
	env := newAuthEnv(t)
	env.cfg.Auth.RegistrationOpen = false

	w := env.postJSON(t, "/auth/register/preflight", preflightBody())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.postJSON(t, "/auth/register", models.RegisterRequest{
		PreflightToken: "x",
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "password123",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newAuthEnv(t)
	env.users.Add(&models.User{Username: "alice", Email: "other@example.com"})

	token := env.runPreflight(t)
	w := env.postJSON(t, "/auth/register", models.RegisterRequest{
		PreflightToken: token,
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin(t *testing.T) {
	env := newAuthEnv(t)
	token := env.runPreflight(t)
	created := env.postJSON(t, "/auth/register", models.RegisterRequest{
		PreflightToken: token,
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "password123",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	tests := []struct {
		name     string
		username string
		password string
		code     int
	}{
		{"valid credentials", "alice", "password123", http.StatusOK},
		{"wrong password", "alice", "nope", http.StatusUnauthorized},
		{"unknown user", "bob", "password123", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postJSON(t, "/auth/login", models.LoginRequest{
				Username: tt.username,
				Password: tt.password,
			})
			assert.Equal(t, tt.code, w.Code)

			if tt.code == http.StatusOK {
				var resp models.LoginResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.AccessToken)
				assert.Equal(t, "alice", resp.User.Username)
			}
		})
	}
}
