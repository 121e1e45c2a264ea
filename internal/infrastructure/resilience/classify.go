package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

var (
	skip      = ErrorClassification{}
	transient = ErrorClassification{Retryable: true, RecordFailure: true}
	permanent = ErrorClassification{RecordFailure: true}
)

// GatewayStatuses are the replies an HTTP upstream returns while overloaded or restarting.
var GatewayStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// StatusError is a non-2xx reply from an HTTP upstream.
type StatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, body)
}

// HasStatus reports whether err carries a StatusError with the given code.
func HasStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// Rules describe how one upstream's failures feed retry and the breaker.
// Cancellation never counts; an open breaker is always worth another attempt.
type Rules struct {
	// RetryStatus lists HTTP codes that are retried.
	RetryStatus []int
	// FailStatus lists HTTP codes that are not retried but still trip the breaker.
	FailStatus []int
	// Transient lists sentinel errors that are retried.
	Transient []error
	// StatusOf extracts a code from client-specific error types.
	StatusOf func(error) (int, bool)
	// RetryNetwork retries net.Error failures.
	RetryNetwork bool
	// RetryUnknown retries anything left unmatched.
	RetryUnknown bool
}

// Classify implements ErrorClassifier.
func (r Rules) Classify(err error) ErrorClassification {
	switch {
	case err == nil:
		return skip
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return skip
	case IsCircuitOpen(err):
		return transient
	}

	if code, ok := r.status(err); ok {
		switch {
		case slices.Contains(r.RetryStatus, code):
			return transient
		case slices.Contains(r.FailStatus, code):
			return permanent
		default:
			return skip
		}
	}
	for _, sentinel := range r.Transient {
		if errors.Is(err, sentinel) {
			return transient
		}
	}
	var netErr net.Error
	if r.RetryNetwork && errors.As(err, &netErr) {
		return transient
	}
	if r.RetryUnknown {
		return transient
	}
	return permanent
}

func (r Rules) status(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	if r.StatusOf != nil {
		return r.StatusOf(err)
	}
	return 0, false
}

// Temporary tags err as domain.ErrTemporary when classify says a later attempt may succeed.
func Temporary(operation string, err error, classify ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify != nil && classify(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
