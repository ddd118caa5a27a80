package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/auth"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/handler"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/repository"
)

// IdempotencyStore is satisfied by both the Postgres and the Redis cache.
type IdempotencyStore interface {
	Get(ctx context.Context, key, actorID string) (*repository.IdempotencyCacheEntry, error)
	Reserve(ctx context.Context, entry *repository.IdempotencyCacheEntry) (bool, error)
	Complete(ctx context.Context, entry *repository.IdempotencyCacheEntry) error
	Release(ctx context.Context, key, actorID string) error
}

const (
	idempotencyTTL = 24 * time.Hour
	// A reservation outliving this lease is treated as abandoned.
	idempotencyLease = 2 * time.Minute
)

// Idempotency replays the stored response for a repeated Idempotency-Key.
// The key is reserved before the handler runs, so concurrent duplicates get
// 409 instead of executing twice. Only 2xx responses are kept; anything else
// releases the key so a rejected mutation can be retried.
func Idempotency(store IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
				return
			}

			actorID, ok := auth.ActorIDFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}
			actor := actorID.String()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			log := logging.FromContext(r.Context()).With("idempotency_key", key)
			reqHash := computeHash(r.Method, r.URL.Path, body)

			cached, err := store.Get(r.Context(), key, actor)
			if err != nil {
				log.Error("idempotency cache lookup failed", "error", err)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}
			if cached != nil {
				replay(w, r, cached, reqHash)
				return
			}

			now := time.Now().UTC()
			entry := &repository.IdempotencyCacheEntry{
				Key:         key,
				ActorID:     actor,
				RequestHash: reqHash,
				CreatedAt:   now,
				ExpiresAt:   now.Add(idempotencyLease),
			}
			reserved, err := store.Reserve(r.Context(), entry)
			if err != nil {
				log.Error("idempotency reservation failed", "error", err)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}
			if !reserved {
				cached, err := store.Get(r.Context(), key, actor)
				if err != nil {
					log.Error("idempotency cache lookup failed", "error", err)
					handler.RespondAppError(w, handler.ErrInternalError, nil)
					return
				}
				if cached == nil {
					handler.RespondAppError(w, handler.ErrIdempotencyInFlight, nil)
					return
				}
				replay(w, r, cached, reqHash)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// The client may have gone away; the outcome must still be recorded.
			storeCtx := context.WithoutCancel(r.Context())

			if rec.statusCode < 200 || rec.statusCode >= 300 {
				if err := store.Release(storeCtx, key, actor); err != nil {
					log.Error("idempotency release failed", "error", err)
				}
				return
			}

			entry.StatusCode = rec.statusCode
			entry.ResponseBody = rec.body.Bytes()
			entry.ExpiresAt = time.Now().UTC().Add(idempotencyTTL)
			if err := store.Complete(storeCtx, entry); err != nil {
				log.Error("idempotency cache store failed", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, cached *repository.IdempotencyCacheEntry, reqHash string) {
	if cached.RequestHash != reqHash {
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
		return
	}
	if cached.Pending() {
		handler.RespondAppError(w, handler.ErrIdempotencyInFlight, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	if _, err := w.Write(cached.ResponseBody); err != nil {
		log := logging.FromContext(r.Context())
		log.Error("failed to write idempotent replay", "error", err, "idempotency_key", cached.Key)
	}
}

func computeHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return fmt.Sprintf("%x", h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
