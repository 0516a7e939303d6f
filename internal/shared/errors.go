package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrUnauthorized     = fmt.Errorf("unauthorized")
	ErrSessionExpired   = fmt.Errorf("Session expired")
	ErrRefreshFailed    = fmt.Errorf("session refresh failed")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrTransport          = fmt.Errorf("transport error")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrNotFound           = fmt.Errorf("not found")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrAnalysisFailed     = fmt.Errorf("analysis failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
