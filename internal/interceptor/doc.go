// Package interceptor centralizes handling of authentication failures for backend requests.
//
// Every backend call is wrapped by [Interceptor.Do]. When a call fails with a 401 the interceptor opens a refresh window:
//   - exactly one caller (the initiator) owns the window and performs the refresh
//   - callers that hit a 401 while the window is open are queued and receive the initiator's outcome
//   - without a [Refresher], or when the refresh fails, the session is over: queued callers are rejected in
//     enqueue order with [shared.ErrSessionExpired] and the OnSessionExpired hook runs once
//   - when the refresh succeeds, queued callers are released in enqueue order and replay their request once
//
// Requests flagged SkipAuth (login, register, the silent session check) and replays flagged IsRetry never open a window.
package interceptor
