package auth

import (
	"context"
	"strconv"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// VoterID returns the numeric voter id from the request identity, or 0.
func VoterID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok || id.Role != RoleVoter {
		return 0
	}
	n, err := strconv.ParseInt(id.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Actor returns the audit actor string for the request identity.
func Actor(ctx context.Context) string {
	id, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return id.Subject
}

func IsAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return id.Role == RoleAdmin
}
