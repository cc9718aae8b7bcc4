package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ecomstore/storefront-backend/api/validators"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxSessionID contextKey = "session_id"

	// UserIDHeader carries the shopper id resolved by the upstream auth gateway.
	UserIDHeader = "X-User-Id"
	// SessionIDHeader carries the anonymous storefront session owning a cart.
	SessionIDHeader = "X-Session-Id"
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

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
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

// Identity trusts the gateway-provided user header; requests without it stay anonymous.
// The session header is carried along so anonymous carts can be cleared.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := validators.SanitizeString(r.Header.Get(UserIDHeader), 128)
			sessionID := validators.SanitizeString(r.Header.Get(SessionIDHeader), 128)
			if userID == "" && sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if sessionID != "" {
				ctx = context.WithValue(ctx, ctxSessionID, sessionID)
			}
			if userID != "" {
				ctx = WithUserID(ctx, userID)
				if logg != nil {
					ctx = logg.WithUserID(ctx, userID)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func trimmedHeader(r *http.Request, name string) string {
	return strings.TrimSpace(r.Header.Get(name))
}
