// Package middleware provides HTTP middleware for authentication and
// request identity.
//
// AuthMiddleware resolves a Bearer API token to an auth.Actor and stores
// it in the request context via pkg/contextkeys. Handlers read it back
// with contextkeys.ActorFrom; requests without a valid token never reach
// a protected handler.
//
// RequestID tags every request with a UUID, honoring an incoming
// X-Request-ID header so upstream proxies can correlate logs.
package middleware
