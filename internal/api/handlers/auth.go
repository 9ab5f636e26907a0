package handlers

import (
	"context"
	"errors"
	"net/http"

	"boardgate/internal/auth"
	"boardgate/internal/config"
	"boardgate/internal/models"
	"boardgate/internal/repository"
	"boardgate/internal/verification"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles HTTP requests for authentication and registration
type AuthHandler struct {
	userRepo    repository.UserRepository
	authService *auth.Service
	pipeline    *verification.Pipeline
	config      *config.Config
}

// NewAuthHandler creates a new authentication handler with the given dependencies
func NewAuthHandler(
	userRepo repository.UserRepository,
	authService *auth.Service,
	pipeline *verification.Pipeline,
	config *config.Config,
) *AuthHandler {
	return &AuthHandler{
		userRepo:    userRepo,
		authService: authService,
		pipeline:    pipeline,
		config:      config,
	}
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse "Login successful"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.userRepo.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
		return
	}

	if err := h.authService.ComparePasswords(user.Password, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
		return
	}

	accessToken, err := h.authService.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to generate access token"})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		AccessToken: accessToken,
		User:        user,
	})
}

// RegisterPreflight godoc
// @Summary Registration preflight
// @Description Run the anti-abuse checks for a new registration and mint a single-use preflight token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.PreflightRequest true "Challenge tokens and fingerprint payload"
// @Success 200 {object} models.PreflightResponse "Checks passed"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 403 {object} models.ErrorResponse "Checks rejected"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/register/preflight [post]
func (h *AuthHandler) RegisterPreflight(c *gin.Context) {
	if !h.config.Auth.RegistrationOpen {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "registration is disabled"})
		return
	}

	var req models.PreflightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	outcome, err := h.pipeline.Preflight(c.Request.Context(), verification.Input{
		Kind:     models.AttemptRegistration,
		RemoteIP: c.ClientIP(),
		Request:  req,
	})
	if err != nil {
		writePreflightError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PreflightResponse{
		Success:        true,
		Message:        "verification passed",
		PreflightToken: outcome.Token.Token,
		ExpiresAt:      outcome.Token.ExpiresAt,
	})
}

// Register godoc
// @Summary Register new user
// @Description Complete a registration by consuming a preflight token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "User registration details"
// @Success 201 {object} models.User "User created successfully"
// @Failure 400 {object} models.ErrorResponse "Invalid request or preflight token"
// @Failure 403 {object} models.ErrorResponse "Registration is disabled"
// @Failure 409 {object} models.ErrorResponse "Username or email already exists"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Failed to create user"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	if !h.config.Auth.RegistrationOpen {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "registration is disabled"})
		return
	}

	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	hashedPassword, err := h.authService.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to process registration"})
		return
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hashedPassword,
		Role:     models.RoleUser,
	}

	_, err = h.pipeline.Finalize(c.Request.Context(), req.PreflightToken, func(ctx context.Context, _ *models.VerificationAttempt) error {
		return h.userRepo.Create(ctx, user)
	})
	if err != nil {
		switch {
		// Invalid, used and expired tokens are indistinguishable to the
		// caller so the token state cannot be probed.
		case errors.Is(err, repository.ErrTokenInvalid), errors.Is(err, repository.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid or expired preflight token"})
		case errors.Is(err, repository.ErrUsernameExists):
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "username already exists"})
		case errors.Is(err, repository.ErrEmailExists):
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "email already exists"})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create user"})
		}
		return
	}

	c.JSON(http.StatusCreated, user)
}

// writePreflightError maps a pipeline failure to its response. Policy
// rejections expose only the public reason.
func writePreflightError(c *gin.Context, err error) {
	var rejected *verification.RejectedError
	if errors.As(err, &rejected) {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: rejected.Reason})
		return
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to process verification"})
}
