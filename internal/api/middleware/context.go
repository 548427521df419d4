package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const callerIDKey contextKey = "caller_id"

func setCallerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerIDKey, id)
}

// CallerID returns the identity Authenticate assigned to the request.
func CallerID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(callerIDKey).(string)
	return id, ok
}

// WithCallerID attaches a caller identity to ctx, as Authenticate does.
func WithCallerID(ctx context.Context, id string) context.Context {
	return setCallerID(ctx, id)
}
