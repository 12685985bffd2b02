package common

import "errors"

// Business logic errors
var (
	// General errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")

	// Conversation/thread errors
	ErrConversationNotFound = errors.New("conversation not found")
	ErrThreadNotFound       = errors.New("thread not found")

	// Messaging errors
	ErrRecipientRequired = errors.New("recipient is required")
	ErrContentRequired   = errors.New("content is required")

	// Upstream errors
	ErrUpstreamUnavailable = errors.New("upstream message store unavailable")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)
