// Package services exposes the analysis backend's HTTP API as typed Go methods.
//
// Every call is routed through an [interceptor.Interceptor], so a 401 anywhere in the API surface is
// handled in one place. The surface is split by resource:
//   - [AuthService] : login, registration, the current user, and logout
//   - [AnalysisService] : v1 analysis jobs with progress, retry, and background job status
//   - [LegacyService] : the original /analyze and /analyses endpoints, including report rendering
//   - [SystemService] : analysis profiles, health, performance metrics, and build info
//
// Login, registration, and logout are sent with SkipAuth; a failed login is a user error, not an expired session.
//
// # Error Handling
//
// Errors surface as [*client.APIError] wrapping the shared sentinels:
//   - [shared.ErrUnauthorized] : 401, normally converted to [shared.ErrSessionExpired] by the interceptor
//   - [shared.ErrNotFound] : unknown analysis or profile
//   - [shared.ErrAPIRequest] : any other non-2xx
//   - [shared.ErrTransport] : the backend could not be reached
package services
