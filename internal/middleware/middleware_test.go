package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/auth"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/repository"
)

const testSecret = "middleware-secret"

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*repository.IdempotencyCacheEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]*repository.IdempotencyCacheEntry)}
}

func (s *memoryStore) Get(_ context.Context, key, actorID string) (*repository.IdempotencyCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[actorID+"/"+key], nil
}

func (s *memoryStore) Reserve(_ context.Context, e *repository.IdempotencyCacheEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ActorID+"/"+e.Key]; ok {
		return false, nil
	}
	pending := *e
	s.entries[e.ActorID+"/"+e.Key] = &pending
	return true, nil
}

func (s *memoryStore) Complete(_ context.Context, e *repository.IdempotencyCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := *e
	s.entries[e.ActorID+"/"+e.Key] = &done
	return nil
}

func (s *memoryStore) Release(_ context.Context, key, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, actorID+"/"+key)
	return nil
}

func bearer(t *testing.T, role auth.Role, actorID uuid.UUID) string {
	t.Helper()
	token, err := auth.GenerateToken(auth.Claims{ActorID: actorID, Email: "x@studio.test", Role: role}, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, found := auth.ClaimsFromContext(r.Context())
		assert.True(t, found)
		assert.Equal(t, auth.RoleStaff, claims.Role)
		w.WriteHeader(http.StatusNoContent)
	})
	h := Auth(testSecret)(ok)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid", header: bearer(t, auth.RoleStaff, uuid.New()), wantStatus: http.StatusNoContent},
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := Auth(testSecret)(RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for role, want := range map[auth.Role]int{
		auth.RoleAdmin: http.StatusNoContent,
		auth.RoleStaff: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", bearer(t, role, uuid.New()))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, string(role))
	}
}

func TestIdempotency(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "reject") {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"success":false}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true}`))
	})
	h := Auth(testSecret)(Idempotency(newMemoryStore())(next))
	actor := uuid.New()

	send := func(key, body string, actorID uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/retainers/x/deposits", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, auth.RoleStaff, actorID))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := send("", `{"amount_cents":100}`, actor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, calls)

	rec = send("k1", `{"amount_cents":100}`, actor)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)

	rec = send("k1", `{"amount_cents":100}`, actor)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, 1, calls, "replay must not reach the handler")

	rec = send("k1", `{"amount_cents":200}`, actor)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send("k1", `{"amount_cents":100}`, uuid.New())
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls, "keys are scoped per actor")

	rec = send("k2", `{"reject":true}`, actor)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = send("k2", `{"reject":true}`, actor)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 4, calls, "failed responses are not cached")
}

func TestIdempotency_ConcurrentDuplicateRunsOnce(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var calls atomic.Int32
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		close(entered)
		<-unblock
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true}`))
	})
	h := Auth(testSecret)(Idempotency(newMemoryStore())(next))
	token := bearer(t, auth.RoleStaff, uuid.New())

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/retainers/x/deposits", strings.NewReader(`{"amount_cents":100}`))
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "dup")
		return req
	}

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(first, newReq())
	}()
	<-entered

	second := httptest.NewRecorder()
	h.ServeHTTP(second, newReq())
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "IDEMPOTENCY_IN_FLIGHT")

	close(unblock)
	<-done
	assert.Equal(t, http.StatusCreated, first.Code)

	third := httptest.NewRecorder()
	h.ServeHTTP(third, newReq())
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "true", third.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestTracing(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "caller id kept", incoming: "req-123", keep: true},
		{name: "missing id generated", incoming: ""},
		{name: "id with spaces replaced", incoming: "req 123"},
		{name: "oversized id replaced", incoming: strings.Repeat("a", 129)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set("X-Request-ID", tc.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
			if tc.keep {
				assert.Equal(t, tc.incoming, seen)
			} else {
				_, err := uuid.Parse(seen)
				assert.NoError(t, err)
			}
		})
	}
}

func newLoggedRouter(buf *bytes.Buffer, h http.HandlerFunc) http.Handler {
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logging.WithLogger(req.Context(), logger)))
		})
	})
	r.Use(Tracing, Logging, Recovery)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Auth(testSecret))
		r.Post("/retainers/{id}/deposits", h)
	})
	return r
}

func decodeLogLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var line map[string]any
		require.NoError(t, json.Unmarshal(raw, &line))
		lines = append(lines, line)
	}
	return lines
}

func TestLogging_AccessLineCarriesRouteAndActor(t *testing.T) {
	var buf bytes.Buffer
	actor := uuid.New()
	router := newLoggedRouter(&buf, func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("deposit handled")
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/retainers/"+uuid.NewString()+"/deposits", nil)
	req.Header.Set("Authorization", bearer(t, auth.RoleAdmin, actor))
	req.Header.Set("X-Request-ID", "req-log")
	router.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLogLines(t, &buf)
	require.Len(t, lines, 2)

	handlerLine, access := lines[0], lines[1]
	assert.Equal(t, "deposit handled", handlerLine["msg"])
	assert.Equal(t, "req-log", handlerLine["request_id"])
	assert.Equal(t, actor.String(), handlerLine["actor_id"])

	assert.Equal(t, "request completed", access["msg"])
	assert.Equal(t, "/api/v1/retainers/{id}/deposits", access["route"])
	assert.Equal(t, float64(http.StatusCreated), access["status"])
	assert.Equal(t, actor.String(), access["actor_id"])
	assert.Equal(t, "admin", access["role"])
	assert.Equal(t, "req-log", access["request_id"])
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	actor := uuid.New()
	router := newLoggedRouter(&buf, func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/retainers/"+uuid.NewString()+"/deposits", nil)
	req.Header.Set("Authorization", bearer(t, auth.RoleStaff, actor))
	req.Header.Set("X-Request-ID", "req-panic")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "req-panic", body.Error.Details["request_id"])

	lines := decodeLogLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "panic recovered", lines[0]["msg"])
	assert.Equal(t, "/api/v1/retainers/{id}/deposits", lines[0]["route"])
	assert.Equal(t, actor.String(), lines[0]["actor_id"])
	assert.Equal(t, "request failed", lines[1]["msg"])
}
