package api

import (
	"context"
	"net/http"
)

type userIDKey struct{}

// UserIDFromContext returns the authenticated caller's user id
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// callerID returns the authenticated user of a protected route
func callerID(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}
