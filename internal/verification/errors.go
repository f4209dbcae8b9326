package verification

import (
	"errors"
	"fmt"
)

var (
	ErrCodeNotFound     = errors.New("verification code not found")
	ErrCodeExpired      = errors.New("verification code expired")
	ErrAttemptsExceeded = errors.New("verification attempts exceeded")
	ErrCodeMismatch     = errors.New("verification code mismatch")
)

// MismatchError reports a wrong code together with the attempts left on it.
type MismatchError struct {
	Remaining int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verification code mismatch, %d attempts remaining", e.Remaining)
}

func (e *MismatchError) Unwrap() error {
	return ErrCodeMismatch
}

// Remaining extracts the attempts left from a mismatch error, or -1.
func Remaining(err error) int {
	var mismatch *MismatchError
	if errors.As(err, &mismatch) {
		return mismatch.Remaining
	}
	return -1
}
