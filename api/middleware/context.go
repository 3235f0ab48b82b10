package middleware

import "context"

type contextKey string

const (
	ctxUserID     contextKey = "user_id"
	ctxUserName   contextKey = "user_name"
	ctxGuestToken contextKey = "guest_token"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func UserNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserName).(string); ok {
		return v
	}
	return ""
}

// GuestTokenFromContext returns the opaque token an unauthenticated
// visitor presented via the X-Guest-Token header, if any.
func GuestTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxGuestToken).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithUserName injects the user's display name into the context.
func WithUserName(ctx context.Context, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserName, name)
}

// WithGuestToken injects the visitor's guest token into the context.
func WithGuestToken(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxGuestToken, token)
}
