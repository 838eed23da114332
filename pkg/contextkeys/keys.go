// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/huddlehq/huddle/pkg/contextkeys"
//	ctx = contextkeys.WithActor(ctx, actor)
//	actor, ok := contextkeys.ActorFrom(ctx)
package contextkeys

import (
	"context"

	"github.com/huddlehq/huddle/pkg/auth"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey contains the authenticated auth.Actor
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: All protected API endpoints
	// Type: auth.Actor
	ActorKey Key = "actor"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID (pkg/middleware/requestid.go)
	// Used by: Logger
	// Type: string
	RequestIDKey Key = "request_id"
)

// WithActor stores the authenticated actor in the context.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// ActorFrom extracts the authenticated actor from the context.
func ActorFrom(ctx context.Context) (auth.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(auth.Actor)
	return actor, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFrom extracts the request ID from the context.
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)
	return id, ok
}
