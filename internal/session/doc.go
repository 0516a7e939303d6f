// Package session tracks the signed-in user and keeps the backend session alive.
//
// A [Manager] owns the authoritative [State]. Login, registration, and a successful silent check
// each start a periodic refresh timer that re-validates the session against /auth/me; a failed
// refresh logs the user out. Starting a timer always stops the previous one, so at most one is active.
//
// A [Store] persists the user and credentials between CLI invocations as a 0600 JSON file.
package session
