package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// Recoverer turns a handler panic into a JSON 500. The panic value is only
// returned to the client when showDetail is set.
func Recoverer(log *slog.Logger, showDetail bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				detail := fmt.Sprint(rec)
				log.Error("panic recovered",
					slog.String("request_id", chimid.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", detail),
					slog.String("stack", string(debug.Stack())),
				)

				body := map[string]string{"error": "internal server error", "code": "internal"}
				if showDetail {
					body["detail"] = detail
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(body)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
