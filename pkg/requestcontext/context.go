// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets the values; services and audit code read them without
// importing net/http. Tests inject values directly:
//
//	ctx = requestcontext.WithActorID(ctx, actorID)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role classifies the authenticated actor at the boundary.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleReviewer  Role = "reviewer"
	RoleAdmin     Role = "admin"
)

type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
)

// ActorID retrieves the authenticated actor ID from the context.
// Returns the zero UUID if not set.
func ActorID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(actorIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.UUID{}
}

// WithActorID injects an actor ID into the context.
func WithActorID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, id)
}

// ActorRole retrieves the actor role, defaulting to applicant.
func ActorRole(ctx context.Context) Role {
	if role, ok := ctx.Value(actorRoleKey{}).(Role); ok {
		return role
	}
	return RoleApplicant
}

// WithActorRole injects the actor role into the context.
func WithActorRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, actorRoleKey{}, role)
}

// RequestID retrieves the request correlation ID, or "" if unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Now returns the request time if one was injected, otherwise time.Now().
// Services use this so tests can pin the clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

// WithTime pins the request time in the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// ClientIP retrieves the originating client IP, or "" if unset.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the normalized client user agent, or "" if unset.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and user agent into a context.
// Useful for service unit tests that don't run the HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}
