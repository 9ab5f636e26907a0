package models

import (
	"time"

	"github.com/google/uuid"
)

// RateLimitAction is the governed action type a rule applies to
type RateLimitAction string

const (
	ActionCreateBoard   RateLimitAction = "create_board"
	ActionCreateThread  RateLimitAction = "create_thread"
	ActionCreateComment RateLimitAction = "create_comment"
)

// RateLimitTarget is the identity key shape a rule evaluates against
type RateLimitTarget string

const (
	TargetUser          RateLimitTarget = "user"
	TargetIP            RateLimitTarget = "ip"
	TargetDevice        RateLimitTarget = "device"
	TargetUserAndIP     RateLimitTarget = "user_ip"
	TargetUserAndDevice RateLimitTarget = "user_device"
	TargetIPAndDevice   RateLimitTarget = "ip_device"
	TargetAll           RateLimitTarget = "all"
)

// RateLimitRule is an administrator-defined throttling policy
type RateLimitRule struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Target         RateLimitTarget `json:"target"`
	ActionType     RateLimitAction `json:"action_type"`
	Threshold      int             `json:"threshold"`
	WindowSeconds  int             `json:"window_seconds"`
	LockoutSeconds int             `json:"lockout_seconds"`
	IsEnabled      bool            `json:"is_enabled"`
	CreatedBy      uuid.UUID       `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RateLimitRuleInfo pairs a rule with its creator's username for admin listings
type RateLimitRuleInfo struct {
	RateLimitRule
	CreatedByUsername *string `json:"created_by_username,omitempty"`
}

// RateLimitEvent is one timestamped occurrence of a governed action
type RateLimitEvent struct {
	ID        uuid.UUID `json:"id"`
	RuleID    uuid.UUID `json:"rule_id"`
	TargetKey string    `json:"target_key"`
	CreatedAt time.Time `json:"created_at"`
}

// RateLimitLock is an active lockout for a target key
type RateLimitLock struct {
	TargetKey string    `json:"target_key"`
	RuleID    uuid.UUID `json:"rule_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RateLimitLockInfo is a lock joined with its rule's name for admin listings
type RateLimitLockInfo struct {
	TargetKey string    `json:"target_key"`
	RuleID    uuid.UUID `json:"rule_id"`
	RuleName  *string   `json:"rule_name,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateRateLimitRuleRequest creates or updates a rule
type CreateRateLimitRuleRequest struct {
	Name           string          `json:"name" binding:"required,max=100,nospaces"`
	Target         RateLimitTarget `json:"target" binding:"required,oneof=user ip device user_ip user_device ip_device all"`
	ActionType     RateLimitAction `json:"action_type" binding:"required,oneof=create_board create_thread create_comment"`
	Threshold      int             `json:"threshold" binding:"required,gt=0"`
	WindowSeconds  int             `json:"window_seconds" binding:"required,gt=0"`
	LockoutSeconds int             `json:"lockout_seconds" binding:"required,gt=0"`
	IsEnabled      bool            `json:"is_enabled"`
}
