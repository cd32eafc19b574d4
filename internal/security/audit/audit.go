package audit

import (
	"context"
	"log/slog"
	"time"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// Logger writes one structured record per state-changing action
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit"))}
}

// Entry describes a single audited action
type Entry struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Status     int
	Details    string
}

func (al *Logger) LogAction(ctx context.Context, e Entry) {
	al.logger.InfoContext(ctx, "audit",
		slog.String("action", e.Action),
		slog.String("resource", e.Resource),
		slog.String("resource_id", e.ResourceID),
		slog.String("user_id", e.ActorID),
		slog.Int("status", e.Status),
		slog.String("details", e.Details),
		slog.String("request_id", chimid.GetReqID(ctx)),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// LogDenied records a rejected attempt to reach a protected route
func (al *Logger) LogDenied(ctx context.Context, resource, reason string) {
	al.LogAction(ctx, Entry{Action: "access_denied", Resource: resource, Status: 401, Details: reason})
}
