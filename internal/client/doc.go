// Package client implements the HTTP transport for the analysis backend.
//
// A [Client] prefixes every endpoint with the configured base URL, encodes JSON request bodies, and decodes JSON responses.
// Credentials are attached according to the deployment's auth mode:
//   - cookie (default): a cookie jar keyed with the public suffix list replays the httpOnly session cookie set by /auth/login
//   - bearer: the access token returned by login is held as an [oauth2.Token] and sent in the Authorization header
//
// Non-2xx responses become an [*APIError] carrying the status code and the backend's "detail" message.
// APIError unwraps to the shared sentinels so callers can match with [errors.Is]:
//   - 401 : [shared.ErrUnauthorized]
//   - 404 : [shared.ErrNotFound]
//   - 503 : [shared.ErrServiceUnavailable]
//   - other : [shared.ErrAPIRequest]
//
// Network failures are wrapped with [shared.ErrTransport] and never retried here.
package client
