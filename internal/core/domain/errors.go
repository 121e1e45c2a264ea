package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIndexNotFound        = errors.New("index not found")
	ErrIndexCorrupt         = errors.New("index corrupt")
	ErrEncoderMismatch      = errors.New("encoder mismatch")
	ErrSystemNotReady       = errors.New("system not ready")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrTemporary            = errors.New("temporary failure")
	ErrSynthesisUnavailable = errors.New("synthesis unavailable")
	ErrFormatMismatch       = errors.New("completion format mismatch")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
