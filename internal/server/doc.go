// Package server provides the HTTP surface: routing, middleware, and the JSON handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method-qualified patterns.
// Global [Middleware] wraps the whole mux; route middleware wraps a single handler.
//
// # Request Pipeline
//
// Every request passes through, in order:
//   - Recover, turning panics into a 500
//   - AccessLog
//   - CORS for the configured origin (pre-flights are answered here)
//   - the rate limiter, which rejects with 429 before any handler runs
//
// Protected routes then run the session middleware from the auth package,
// which verifies the access cookie and attaches the account to the request context.
//
// # Errors
//
// Handlers return errors through a single mapping, statusFor, which turns the
// sentinel errors in the shared package into a status code and a {"detail": ...} body.
// Every 401 carries WWW-Authenticate: Bearer. Upstream provider failures become 502.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which returns a list of [Route]s,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
