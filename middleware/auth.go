package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/FREEWORLD-HUB/group1-advertisement/handlers/auth"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type contextKey string

const ClaimsContextKey = contextKey("claims")

// AuthJWT rejects requests without a valid Bearer token and stores the claims
// in the request context.
func AuthJWT(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"detail": "Authorization header is required"})
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"detail": "Authorization header format must be Bearer {token}"})
				return
			}

			claims, err := issuer.Parse(parts[1])
			if err != nil {
				logrus.WithError(err).Debug("Rejected token")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"detail": "Invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles lets a request through only if the caller holds one of roles.
// It must run after AuthJWT.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := Claims(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"detail": "User claims not found"})
				return
			}
			if !core.HasAnyRole(claims.Roles, roles...) {
				logrus.WithFields(logrus.Fields{"user_id": claims.Subject, "roles": claims.Roles}).Info("Role check failed")
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, map[string]string{"detail": "You do not have permission to perform this action"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Claims returns the verified token claims of the request.
func Claims(ctx context.Context) (*auth.AppClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.AppClaims)
	return claims, ok && claims != nil
}

// CallerID returns the authenticated user id, or "" when unauthenticated.
func CallerID(ctx context.Context) string {
	if claims, ok := Claims(ctx); ok {
		return claims.Subject
	}
	return ""
}

// WithClaims returns ctx carrying claims, as AuthJWT would.
func WithClaims(ctx context.Context, claims *auth.AppClaims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}
