package errors

import (
	"errors"
	"net/http"
)

// MapToHTTPStatus converts the error taxonomy into an HTTP status code
// at the REST boundary. Unknown errors map to 500 so internal faults
// are never mistaken for caller mistakes.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrUnknownEnvelope):
		return http.StatusBadRequest
	case errors.Is(err, ErrGroupNotFound), errors.Is(err, ErrMessageNotFound),
		errors.Is(err, ErrEmployeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGroupExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
