package auth

import "errors"

var (
	// ErrMissingInput is returned when a required request field is absent.
	ErrMissingInput = errors.New("missing required input")

	// ErrNotConfigured is returned when verification is attempted before
	// any shared secret has been provisioned.
	ErrNotConfigured = errors.New("two-factor authentication is not configured")

	// ErrInvalidCode is returned when a setup code does not match the
	// candidate secret it was submitted with.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrSessionExpired is returned by the authorization gate when the
	// bearer token is missing, unknown, or past its expiry.
	ErrSessionExpired = errors.New("session missing or expired")
)
