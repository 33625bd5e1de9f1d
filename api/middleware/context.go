package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/hireloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hireloop-backend/pkg/errors"
)

type principalKey struct{}

// Principal is the authenticated caller, taken from a verified access token.
type Principal struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// WithPrincipal stores the caller on ctx for downstream handlers.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RequireUserID returns the caller's id or an UNAUTHORIZED error when the
// request never passed through Auth.
func RequireUserID(ctx context.Context) (uuid.UUID, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return p.UserID, nil
}
