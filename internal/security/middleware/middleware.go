package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/security/audit"
	"github.com/ecoterra/siteapi/internal/security/auth"
)

type contextKey string

const userContextKey contextKey = "user"

// RequestIDHeader carries the request id in and out
const RequestIDHeader = "X-Request-ID"

// TokenVerifier resolves an Authorization header to an active user
type TokenVerifier interface {
	Verify(ctx context.Context, authHeader string) (*domain.User, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the user in the context
func RequireAuth(tv TokenVerifier, auditLog *audit.Logger, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := tv.Verify(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				msg := unauthorizedMessage(err)
				log.Debug("request rejected by auth gate",
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
				)
				if auditLog != nil {
					auditLog.LogDenied(r.Context(), r.URL.Path, msg)
				}
				writeError(w, http.StatusUnauthorized, msg, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing authorization header"
	case errors.Is(err, auth.ErrMalformedToken):
		return "invalid authorization header"
	case errors.Is(err, auth.ErrInactiveUser):
		return "user no longer active"
	default:
		return "invalid or expired token"
	}
}

// WithUser injects the authenticated user into the context
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, or nil
func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userContextKey).(*domain.User)
	return u
}

// AuditMiddleware records every state-changing request after it completes.
// Mount it after RequireAuth so the actor is known.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action := actionFor(r.Method)
			if action == "" {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimid.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			actorID := ""
			if u := UserFromContext(r.Context()); u != nil {
				actorID = u.ID
			}
			resourceID := chi.URLParam(r, "id")
			if resourceID == "" {
				resourceID = chi.URLParam(r, "key")
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			auditLog.LogAction(r.Context(), audit.Entry{
				ActorID:    actorID,
				Action:     action,
				Resource:   resourceFor(r),
				ResourceID: resourceID,
				Status:     status,
			})
		})
	}
}

func actionFor(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return ""
	}
}

func resourceFor(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// RequestID accepts an inbound X-Request-ID or assigns a UUID, and echoes it back.
// The id is stored under chi's key so chimid.GetReqID works downstream.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), chimid.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per completed request
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimid.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("request completed",
				slog.String("request_id", chimid.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// ClientIP returns the host part of RemoteAddr (rewritten by TrustedRealIP behind a trusted proxy)
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
