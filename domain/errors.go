package domain

import "errors"

// Lookup errors
var (
	ErrProductNotFound = errors.New("product not found")
	ErrNoConfidentMatch = errors.New("no confident product match")
	ErrClientNotFound  = errors.New("client not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Validation errors
var (
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyOrder        = errors.New("order has no lines")
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrClientAlreadyExists = errors.New("client already exists")
)

// State-conflict errors
var (
	ErrTransitionNotAllowed = errors.New("state transition not allowed")
	ErrLoopDetected         = errors.New("conversation loop detected")
)

// Transient errors
var (
	ErrOperationTimeout  = errors.New("operation timed out")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Token errors for the admin API
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)
