package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/infrastructure/logger"
	"github.com/ecoterra/siteapi/internal/security/audit"
	"github.com/ecoterra/siteapi/internal/security/auth"
)

type stubVerifier struct {
	user *domain.User
	err  error
}

func (s stubVerifier) Verify(_ context.Context, _ string) (*domain.User, error) {
	return s.user, s.err
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAuthAttachesUser(t *testing.T) {
	user := &domain.User{ID: "u1", Role: domain.RoleAdmin, Active: true}
	var seen *domain.User
	h := RequireAuth(stubVerifier{user: user}, nil, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.ID)
}

func TestRequireAuthRejects(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{auth.ErrMissingToken, "missing authorization header"},
		{auth.ErrMalformedToken, "invalid authorization header"},
		{auth.ErrInvalidToken, "invalid or expired token"},
		{auth.ErrInactiveUser, "user no longer active"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			var logs bytes.Buffer
			called := false
			h := RequireAuth(stubVerifier{err: tc.err}, audit.NewLogger(logger.New(&logs, "info")), logger.Discard())(
				http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/team", nil))

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tc.want, body["error"])
			assert.Equal(t, "unauthorized", body["code"])
			assert.Contains(t, logs.String(), "access_denied")
		})
	}
}

func TestAuditMiddlewareRecordsMutations(t *testing.T) {
	var logs bytes.Buffer
	auditLog := audit.NewLogger(logger.New(&logs, "info"))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(WithUser(req.Context(), &domain.User{ID: "actor-1"})))
		})
	})
	r.Use(AuditMiddleware(auditLog))
	r.Delete("/api/team/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/api/team", func(w http.ResponseWriter, _ *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/team", nil))
	assert.Empty(t, logs.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/team/abc", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "delete", entry["action"])
	assert.Equal(t, "/api/team/{id}", entry["resource"])
	assert.Equal(t, "abc", entry["resource_id"])
	assert.Equal(t, "actor-1", entry["user_id"])
	assert.Equal(t, float64(200), entry["status"])
}

func TestRequestIDAssignsAndEchoes(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = chimid.GetReqID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, got, 36)
	assert.Equal(t, got, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-id-1", got)
}

func TestRequestLoggerWritesCompletionLine(t *testing.T) {
	var logs bytes.Buffer
	h := RequestLogger(logger.New(&logs, "info"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	out := logs.String()
	assert.Contains(t, out, `"msg":"request completed"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/api/health"`)
}

func TestRecoverer(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("db exploded") })

	rec := httptest.NewRecorder()
	Recoverer(logger.Discard(), false)(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "internal server error", body["error"])
	assert.NotContains(t, rec.Body.String(), "db exploded")

	rec = httptest.NewRecorder()
	Recoverer(logger.Discard(), true)(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "db exploded", decodeBody(t, rec)["detail"])
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://site.example"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/team", nil)
	req.Header.Set("Origin", "https://site.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://site.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/team", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecureHeaders(t *testing.T) {
	h := NewSecure(SecureOptions(false))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestIPRateLimiter(t *testing.T) {
	mw, err := NewIPRateLimiter("2-M")
	require.NoError(t, err)
	h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/team", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	_, err = NewIPRateLimiter("lots")
	require.Error(t, err)

	noop, err := NewIPRateLimiter("")
	require.NoError(t, err)
	require.NotNil(t, noop)
}

func TestValidateJSONContentType(t *testing.T) {
	h := ValidateJSONContentType(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/api/team", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/team", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.2:4321"
	assert.Equal(t, "198.51.100.2", ClientIP(req))
	req.RemoteAddr = "198.51.100.2"
	assert.Equal(t, "198.51.100.2", ClientIP(req))
}
