package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/perc/internal/shared"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap maps the status code onto a shared sentinel.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return shared.ErrUnauthorized
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusServiceUnavailable:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an [*APIError].
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// newAPIError builds an [*APIError] from a response body.
//
// FastAPI reports errors as {"detail": "..."}; validation failures carry a list instead of a string.
func newAPIError(status int, body []byte) *APIError {
	err := &APIError{
		StatusCode: status,
		Message:    fmt.Sprintf("Request failed with status %d", status),
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) != nil || len(payload.Detail) == 0 || bytes.Equal(payload.Detail, []byte("null")) {
		return err
	}

	var detail string
	if json.Unmarshal(payload.Detail, &detail) == nil {
		if detail != "" {
			err.Message = detail
		}
		return err
	}

	var compact bytes.Buffer
	if json.Compact(&compact, payload.Detail) == nil {
		err.Message = compact.String()
	}
	return err
}
