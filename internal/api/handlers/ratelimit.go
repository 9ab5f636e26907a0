package handlers

import (
	"errors"
	"net/http"

	"boardgate/internal/auth"
	"boardgate/internal/models"
	"boardgate/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RateLimitHandler exposes the administrator surface for rules and locks
type RateLimitHandler struct {
	repo repository.RateLimitRepository
}

// NewRateLimitHandler creates a new rate limit admin handler
func NewRateLimitHandler(repo repository.RateLimitRepository) *RateLimitHandler {
	return &RateLimitHandler{repo: repo}
}

// CreateRule godoc
// @Summary Create rate limit rule
// @Tags ratelimit
// @Accept json
// @Produce json
// @Param request body models.CreateRateLimitRuleRequest true "Rule definition"
// @Success 201 {object} models.RateLimitRule
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 403 {object} models.ErrorResponse "Admin access required"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/ratelimit/rules [post]
func (h *RateLimitHandler) CreateRule(c *gin.Context) {
	var req models.CreateRateLimitRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	admin := auth.GetUserFromContext(c)
	rule := &models.RateLimitRule{
		Name:           req.Name,
		Target:         req.Target,
		ActionType:     req.ActionType,
		Threshold:      req.Threshold,
		WindowSeconds:  req.WindowSeconds,
		LockoutSeconds: req.LockoutSeconds,
		IsEnabled:      req.IsEnabled,
		CreatedBy:      admin.ID,
	}

	if err := h.repo.CreateRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create rule"})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// ListRules godoc
// @Summary List rate limit rules
// @Tags ratelimit
// @Produce json
// @Success 200 {array} models.RateLimitRuleInfo
// @Failure 403 {object} models.ErrorResponse "Admin access required"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/ratelimit/rules [get]
func (h *RateLimitHandler) ListRules(c *gin.Context) {
	rules, err := h.repo.ListRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list rules"})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// UpdateRule godoc
// @Summary Update rate limit rule
// @Tags ratelimit
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param request body models.CreateRateLimitRuleRequest true "Rule definition"
// @Success 200 {object} models.RateLimitRule
// @Failure 400 {object} models.ErrorResponse "Invalid request format or ID"
// @Failure 403 {object} models.ErrorResponse "Admin access required"
// @Failure 404 {object} models.ErrorResponse "Rule not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/ratelimit/rules/{id} [put]
func (h *RateLimitHandler) UpdateRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule id"})
		return
	}

	var req models.CreateRateLimitRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	rule, err := h.repo.GetRule(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load rule"})
		return
	}

	rule.Name = req.Name
	rule.Target = req.Target
	rule.ActionType = req.ActionType
	rule.Threshold = req.Threshold
	rule.WindowSeconds = req.WindowSeconds
	rule.LockoutSeconds = req.LockoutSeconds
	rule.IsEnabled = req.IsEnabled

	if err := h.repo.UpdateRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update rule"})
		return
	}

	c.JSON(http.StatusOK, rule)
}

// ToggleRule godoc
// @Summary Toggle rate limit rule
// @Description Flip a rule between enabled and disabled
// @Tags ratelimit
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} models.RateLimitRule
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 403 {object} models.ErrorResponse "Admin access required"
// @Failure 404 {object} models.ErrorResponse "Rule not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/ratelimit/rules/{id}/toggle [post]
func (h *RateLimitHandler) ToggleRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule id"})
		return
	}

	rule, err := h.repo.ToggleRule(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to toggle rule"})
		return
	}

	c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary Delete rate limit rule
// @Description Remove a rule together with its events and locks
// @Tags ratelimit
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 403 {object} models.ErrorResponse "Admin access required"
// @Failure 404 {object} models.ErrorResponse "Rule not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/ratelimit/rules/{id} [delete]
func (h *RateLimitHandler) DeleteRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule id"})
		return
	}

	if err := h.repo.DeleteRule(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete rule"})
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: "rule deleted"})
}

// ListLocks godoc
// @Summary List active lockouts
// @Tags ratelimit
// @Produce json
// @Success 200 {array} models.RateLimitLockInfo
// @Failure 403 {object} models.ErrorResponse "Admin access required"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/ratelimit/locks [get]
func (h *RateLimitHandler) ListLocks(c *gin.Context) {
	locks, err := h.repo.ListActiveLocks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list locks"})
		return
	}
	c.JSON(http.StatusOK, locks)
}

// DeleteLock godoc
// @Summary Clear a lockout
// @Description Remove the lock for a target key ahead of its expiry
// @Tags ratelimit
// @Produce json
// @Param key path string true "Target key"
// @Success 200 {object} models.MessageResponse
// @Failure 403 {object} models.ErrorResponse "Admin access required"
// @Failure 404 {object} models.ErrorResponse "Lock not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/ratelimit/locks/{key} [delete]
func (h *RateLimitHandler) DeleteLock(c *gin.Context) {
	key := c.Param("key")

	if err := h.repo.DeleteLock(c.Request.Context(), key); err != nil {
		if errors.Is(err, repository.ErrLockNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "lock not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete lock"})
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: "lock cleared"})
}
