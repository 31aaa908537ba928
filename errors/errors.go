package errors

import "fmt"

var (
	ErrAlreadyConnected     = fmt.Errorf("tenant already connected")
	ErrConnectionInProgress = fmt.Errorf("connection already in progress")
	ErrNotConnected         = fmt.Errorf("tenant not connected")
	ErrUnknownTenant        = fmt.Errorf("unknown tenant")
	ErrCredentialNotFound   = fmt.Errorf("credential blob not found")
	ErrOTPNotFound          = fmt.Errorf("no pending verification code")
	ErrOTPExpired           = fmt.Errorf("verification code expired")
	ErrOTPMismatch          = fmt.Errorf("verification code mismatch")
	ErrInvalidTenantID      = fmt.Errorf("invalid tenant id")
	ErrInvalidDelta         = fmt.Errorf("invalid configuration delta")
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrInvalidCredentials   = fmt.Errorf("invalid operator credentials")
	ErrEmptyWords           = fmt.Errorf("no words have been found")
)
