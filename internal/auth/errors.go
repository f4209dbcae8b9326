package auth

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/elskow/tourfurr/internal/verification"
)

type Kind string

const (
	KindValidation                   Kind = "validation"
	KindConflict                     Kind = "conflict"
	KindRateLimited                  Kind = "rate_limited"
	KindVerificationNotFound         Kind = "verification_not_found"
	KindVerificationExpired          Kind = "verification_expired"
	KindVerificationAttemptsExceeded Kind = "verification_attempts_exceeded"
	KindVerificationMismatch         Kind = "verification_mismatch"
	KindAuth                         Kind = "auth"
	KindForbidden                    Kind = "forbidden"
	KindNotFound                     Kind = "not_found"
	KindInfrastructure               Kind = "infrastructure"
)

// Error is the only error type the auth service returns. Message is safe to
// show to the end user; Err carries the internal cause for logs.
type Error struct {
	Kind              Kind
	Message           string
	Field             string
	RetryAfter        time.Duration
	Feedback          []string
	NeedsVerification bool
	Remaining         int
	Err               error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindVerificationNotFound, KindVerificationExpired,
		KindVerificationAttemptsExceeded, KindVerificationMismatch:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindAuth:
		if e.NeedsVerification {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// AsError unwraps err into an *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func validationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func conflictError(field, message string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: message}
}

func rateLimitedError(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("Too many attempts. Try again in %s", FormatWait(retryAfter)),
		RetryAfter: retryAfter,
	}
}

func infrastructureError(err error) *Error {
	return &Error{
		Kind:    KindInfrastructure,
		Message: "Something went wrong. Please try again later",
		Err:     err,
	}
}

const invalidCredentialsMessage = "Invalid email or password"

func invalidCredentials() *Error {
	return &Error{Kind: KindAuth, Message: invalidCredentialsMessage}
}

func needsVerification() *Error {
	return &Error{
		Kind:              KindAuth,
		Message:           "Please confirm your email. We have sent you a new code",
		NeedsVerification: true,
	}
}

// verificationError maps code engine outcomes onto user-facing errors. Any
// other error is infrastructure.
func verificationError(err error) *Error {
	switch {
	case errors.Is(err, verification.ErrCodeNotFound):
		return &Error{Kind: KindVerificationNotFound, Field: "code", Message: "Code not found. Request a new code"}
	case errors.Is(err, verification.ErrCodeExpired):
		return &Error{Kind: KindVerificationExpired, Field: "code", Message: "The code has expired. Request a new code"}
	case errors.Is(err, verification.ErrAttemptsExceeded):
		return &Error{Kind: KindVerificationAttemptsExceeded, Field: "code", Message: "Too many attempts. Request a new code"}
	case errors.Is(err, verification.ErrCodeMismatch):
		remaining := verification.Remaining(err)
		return &Error{
			Kind:      KindVerificationMismatch,
			Field:     "code",
			Message:   fmt.Sprintf("Wrong code. Attempts left: %d", remaining),
			Remaining: remaining,
		}
	default:
		return infrastructureError(err)
	}
}

// FormatWait renders a lockout as whole minutes, or seconds under a minute.
func FormatWait(d time.Duration) string {
	if d < time.Minute {
		s := int(math.Ceil(d.Seconds()))
		if s < 1 {
			s = 1
		}
		return fmt.Sprintf("%d sec", s)
	}
	return fmt.Sprintf("%d min", int(math.Ceil(d.Minutes())))
}
