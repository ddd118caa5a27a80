package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/auth"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
)

// requestInfo is shared between the outer access log and the inner /api/v1
// middleware, which is the only place the caller's identity is known.
type requestInfo struct {
	actorID string
	role    auth.Role
}

type requestInfoKey struct{}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// recordActor exposes the authenticated caller to Logging and Recovery.
func recordActor(ctx context.Context, claims *auth.Claims) {
	if info := requestInfoFromContext(ctx); info != nil {
		info.actorID = claims.ActorID.String()
		info.role = claims.Role
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Logging writes one access line per request, keyed by the matched chi route
// so ledger calls group per endpoint rather than per account id.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		info := &requestInfo{}
		ctx := context.WithValue(r.Context(), requestInfoKey{}, info)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		attrs := []any{
			"method", r.Method,
			"route", routePattern(r),
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if info.actorID != "" {
			attrs = append(attrs, "actor_id", info.actorID, "role", info.role)
		}

		log := logging.FromContext(ctx)
		if rec.status >= http.StatusInternalServerError {
			log.Error("request failed", attrs...)
			return
		}
		log.Info("request completed", attrs...)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
