package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const actorKey ctxKey = "request/actor"

// DefaultActor is recorded when a request carries no actor header.
const DefaultActor = "system"

// WithActor stores the acting operator identifier on the provided context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// Actor extracts the acting operator from the context, falling back to
// DefaultActor when none was recorded.
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok && v != "" {
		return v
	}
	return DefaultActor
}

// ActorMiddleware reads the X-Actor header and attaches it to the request
// context so ledger writes can attribute movements to an operator.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get("X-Actor"))
		if actor == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}
