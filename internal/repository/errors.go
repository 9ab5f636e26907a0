package repository

import "errors"

var (
	// Common errors
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")

	// User errors
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")

	// Preflight token errors
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")

	// Rate limit errors
	ErrRuleNotFound = errors.New("rate limit rule not found")
	ErrLockNotFound = errors.New("rate limit lock not found")
)
