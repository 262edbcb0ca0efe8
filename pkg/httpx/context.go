package httpx

import (
	"context"
	"net/http"
)

// Middleware is a standard net/http middleware.
type Middleware func(http.Handler) http.Handler

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyRole   ctxKey = "role"
	CtxKeyOrgID  ctxKey = "org_id"
)

// Identity is the authenticated caller as established by AuthnMiddleware.
type Identity struct {
	UserID         string
	Email          string
	Role           string
	OrganizationID string
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}

const ctxKeyIdentity ctxKey = "identity"

func contextWithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, id.UserID)
	ctx = context.WithValue(ctx, CtxKeyRole, id.Role)
	ctx = context.WithValue(ctx, CtxKeyOrgID, id.OrganizationID)
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func roleFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyRole).(string); ok {
		return v
	}
	return ""
}
