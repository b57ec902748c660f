package session

import "context"

type sessionContextKey struct{}

// ContextWith stores the hydrated session in context.
func ContextWith(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext extracts the session from context. The zero session is
// returned when hydration has not run, which reads as unauthenticated.
func FromContext(ctx context.Context) Session {
	sess, _ := ctx.Value(sessionContextKey{}).(Session)
	return sess
}
