package service

import "errors"

// Sentinel errors mapped to response codes by the handlers.
var (
	ErrTestNotAvailable = errors.New("test not found or not active")
	ErrTestAlreadyTaken = errors.New("test already taken")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session expired")
	ErrSessionCompleted = errors.New("session already completed")
	ErrSessionLocked    = errors.New("session locked")
	ErrNoUnbanCode      = errors.New("no unban code issued")
	ErrInvalidUnbanCode = errors.New("invalid unban code")
)
