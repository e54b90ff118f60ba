package errors

import (
	"errors"
	"net/http"
)

// MapToHTTPStatus translates domain errors into the status codes the REST
// layer exposes. Anything unknown is treated as a persistence failure:
// the caller must learn the operation did not complete durably.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrUserAlreadyExists),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
