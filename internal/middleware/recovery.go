package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/handler"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
)

// Recovery converts a panic into the INTERNAL_ERROR envelope carrying the
// request id, and logs the stack with the route and caller.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			attrs := []any{"panic", rec, "route", routePattern(r), "stack", string(debug.Stack())}
			if info := requestInfoFromContext(r.Context()); info != nil && info.actorID != "" {
				attrs = append(attrs, "actor_id", info.actorID, "role", info.role)
			}
			logging.FromContext(r.Context()).Error("panic recovered", attrs...)

			handler.RespondAppError(w, handler.ErrInternalError, map[string]string{
				"request_id": RequestIDFromContext(r.Context()),
			})
		}()
		next.ServeHTTP(w, r)
	})
}
