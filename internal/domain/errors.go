package domain

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInvalidIntentType   = errors.New("invalid order type")
	ErrInvalidGuestCount   = errors.New("invalid guest count")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrSignatureInvalid    = errors.New("payment signature invalid")
	ErrReferenceMismatch   = errors.New("gateway order does not belong to reference")
	ErrUserCancelled       = errors.New("payment cancelled by user")
	ErrNotFound            = errors.New("not found")
	ErrAlreadySettled      = errors.New("intent already settled by another payment")
	ErrNotPayable          = errors.New("intent is no longer payable")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidNotification = errors.New("invalid notification")
	ErrRateLimited         = errors.New("too many requests")
)
