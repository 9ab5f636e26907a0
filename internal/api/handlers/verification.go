package handlers

import (
	"context"
	"errors"
	"net/http"

	"boardgate/internal/auth"
	"boardgate/internal/models"
	"boardgate/internal/repository"
	"boardgate/internal/verification"

	"github.com/gin-gonic/gin"
)

var errAttemptOwnership = errors.New("preflight token belongs to a different user")

// VerificationHandler handles the level-up preflight/finalize flow
type VerificationHandler struct {
	pipeline *verification.Pipeline
	userRepo repository.UserRepository
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(pipeline *verification.Pipeline, userRepo repository.UserRepository) *VerificationHandler {
	return &VerificationHandler{pipeline: pipeline, userRepo: userRepo}
}

// Preflight godoc
// @Summary Level-up preflight
// @Description Run the anti-abuse checks for a level up and mint a single-use preflight token
// @Tags verification
// @Accept json
// @Produce json
// @Param request body models.PreflightRequest true "Challenge tokens and fingerprint payload"
// @Success 200 {object} models.PreflightResponse "Checks passed"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 403 {object} models.ErrorResponse "Checks rejected or attempt locked"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /verification/preflight [post]
func (h *VerificationHandler) Preflight(c *gin.Context) {
	user := auth.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
		return
	}

	var req models.PreflightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	outcome, err := h.pipeline.Preflight(c.Request.Context(), verification.Input{
		Kind:     models.AttemptLevelUp,
		User:     user,
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

// Finalize godoc
// @Summary Complete a level up
// @Description Consume a preflight token and raise the user's level by one
// @Tags verification
// @Accept json
// @Produce json
// @Param request body models.FinalizeRequest true "Preflight token"
// @Success 200 {object} models.User "Level raised"
// @Failure 400 {object} models.ErrorResponse "Invalid or expired preflight token"
// @Failure 403 {object} models.ErrorResponse "Token belongs to another user"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /verification/finalize [post]
func (h *VerificationHandler) Finalize(c *gin.Context) {
	user := auth.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
		return
	}

	var req models.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	_, err := h.pipeline.Finalize(c.Request.Context(), req.PreflightToken, func(ctx context.Context, attempt *models.VerificationAttempt) error {
		if attempt.Kind != models.AttemptLevelUp || attempt.UserID == nil || *attempt.UserID != user.ID {
			return errAttemptOwnership
		}
		return h.userRepo.IncrementLevel(ctx, user.ID)
	})
	if err != nil {
		switch {
		// Invalid, used and expired tokens are indistinguishable to the
		// caller so the token state cannot be probed.
		case errors.Is(err, repository.ErrTokenInvalid), errors.Is(err, repository.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid or expired preflight token"})
		case errors.Is(err, errAttemptOwnership):
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "preflight token does not match this account"})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to complete level up"})
		}
		return
	}

	updated, err := h.userRepo.GetByID(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Status godoc
// @Summary Level-up availability
// @Description Report whether the authenticated user may start a level-up attempt
// @Tags verification
// @Produce json
// @Success 200 {object} models.VerificationStatusResponse
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /verification/status [get]
func (h *VerificationHandler) Status(c *gin.Context) {
	user := auth.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
		return
	}

	status, err := h.pipeline.Status(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to compute status"})
		return
	}

	c.JSON(http.StatusOK, status)
}
