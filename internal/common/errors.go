// Package common defines sentinel errors and constants shared by the server
// layers of ContactKeeper. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// repository specific errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// service specific errors
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")
	ErrForbidden      = errors.New("insufficient permissions")

	// session token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// credential and reset flow errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("invalid or expired token")
	ErrAccountInactive    = errors.New("user not found or inactive")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrPasswordTooLong    = errors.New("password too long")

	// collaborators
	ErrNotificationUnavailable = errors.New("notification channel not configured")
	ErrStorageNotConfigured    = errors.New("export storage not configured")
	ErrCaptchaFailed           = errors.New("captcha verification failed")
	ErrRateLimited             = errors.New("too many requests")
)
