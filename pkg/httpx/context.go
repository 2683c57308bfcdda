package httpx

import "context"

type ctxKey string

const (
	// CtxKeyPrincipalID carries the authenticated principal's id.
	CtxKeyPrincipalID ctxKey = "principal_id"
)

// ContextWithPrincipalID stores the authenticated principal id on the context.
func ContextWithPrincipalID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxKeyPrincipalID, id)
}

// PrincipalIDFromContext returns the authenticated principal id, or "".
func PrincipalIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyPrincipalID).(string); ok {
		return v
	}
	return ""
}
