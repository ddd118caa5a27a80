package middleware

import (
	"net/http"
	"strings"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/auth"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/handler"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
)

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			recordActor(r.Context(), claims)
			ctx := auth.ContextWithClaims(r.Context(), claims)
			ctx = logging.WithAttrs(ctx, "actor_id", claims.ActorID, "role", claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after Auth.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}
			if claims.Role != role && !claims.IsAdmin() {
				handler.RespondAppError(w, handler.ErrForbidden, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
