package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrSystemNotReady),
		domain.IsKind(err, domain.ErrTemporary),
		domain.IsKind(err, domain.ErrIndexNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
