package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrBanned = errors.New("account is banned")

	// Verification flow errors
	ErrCodeMismatch        = errors.New("verification code does not match")
	ErrNoPendingCode       = errors.New("no verification code pending for this session")
	ErrLocationNotVerified = errors.New("location has not been verified for this session")
)
