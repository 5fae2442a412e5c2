// Package client talks to the talent directory backend.
//
// # Overview
//
// The package provides:
//  1. The typed API contract used by services (see the Client interface):
//     login, register, admin check, profile listing and detail, view
//     tracking, endorsement and its removal.
//  2. The authenticated request Pipeline every call goes through. It attaches
//     the bearer token and the X-Session-Key header, and answers a 401 with
//     one token refresh and one re-send. When the session cannot be renewed
//     it clears the tokens and asks the Navigator to redirect to login.
//  3. HTTPClient, the Client implementation over the Pipeline.
//  4. Local state bootstrap (InitDatabase, RunMigrations) over SQLite.
//
// # Error Handling
//
// Backend failures are *HTTPError values that unwrap to ErrValidation,
// ErrUnauthorized, ErrForbidden, ErrNotFound or ErrServer. Network failures
// and timeouts wrap ErrUnavailable; an unrecoverable session wraps
// ErrSessionExpired.
//
// # Concurrency
//
// Pipeline and HTTPClient are safe for concurrent use. Concurrent 401s share
// a single refresh exchange unless Options.CoalesceRefresh is false.
package client
