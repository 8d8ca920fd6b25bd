// Package actor provides request-scoped identity and tracing values.
package actor

import (
	"context"

	"github.com/google/uuid"
)

// Actor contains authenticated caller information.
// The service does not manage credentials; the actor id arrives as an opaque
// subject from the authentication layer.
type Actor struct {
	ID    string
	Name  string
	Roles []string
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// Get returns Actor from context.
func Get(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetID returns the actor id from context or empty string.
func GetID(ctx context.Context) string {
	if a := Get(ctx); a != nil {
		return a.ID
	}
	return ""
}

// HasRole checks if the actor has a specific role.
func HasRole(ctx context.Context, role string) bool {
	a := Get(ctx)
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Trace contains request tracing information.
type Trace struct {
	TraceID   string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds Trace to context.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, t)
}

// GetTrace returns Trace from context.
func GetTrace(ctx context.Context) *Trace {
	if v, ok := ctx.Value(traceContextKey{}).(*Trace); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTrace creates a Trace with generated IDs.
func NewTrace() *Trace {
	return &Trace{
		TraceID:   uuid.New().String(),
		RequestID: uuid.New().String(),
	}
}
