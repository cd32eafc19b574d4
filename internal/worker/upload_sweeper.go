package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/observability/metrics"
	"github.com/ecoterra/siteapi/internal/storage"
)

// UploadFiles is the part of the local store the sweeper needs
type UploadFiles interface {
	Files(ctx context.Context) ([]storage.FileInfo, error)
	Remove(ctx context.Context, name string) error
}

// UploadSweeper periodically removes uploaded files no image key points at.
// Re-uploading a key replaces its URL and leaves the old file behind.
type UploadSweeper struct {
	files    UploadFiles
	images   domain.ImageRepository
	logger   *slog.Logger
	interval time.Duration
	// grace protects files whose upload has not yet been recorded in the image map
	grace time.Duration
	now   func() time.Time
}

func NewUploadSweeper(files UploadFiles, images domain.ImageRepository, logger *slog.Logger, interval, grace time.Duration) *UploadSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadSweeper{
		files:    files,
		images:   images,
		logger:   logger,
		interval: interval,
		grace:    grace,
		now:      time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled
func (w *UploadSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("upload sweeper started",
		slog.Duration("interval", w.interval),
		slog.Duration("grace", w.grace),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("upload sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("upload sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep removes orphaned files once and reports how many were deleted
func (w *UploadSweeper) Sweep(ctx context.Context) (int, error) {
	referenced, err := w.images.List(ctx)
	if err != nil {
		metrics.ObserveSweep("error", 0)
		return 0, err
	}
	inUse := make(map[string]struct{}, len(referenced))
	for _, url := range referenced {
		inUse[url] = struct{}{}
	}

	files, err := w.files.Files(ctx)
	if err != nil {
		metrics.ObserveSweep("error", 0)
		return 0, err
	}

	cutoff := w.now().Add(-w.grace)
	removed := 0
	for _, f := range files {
		if _, ok := inUse[f.URL]; ok || f.ModTime.After(cutoff) {
			continue
		}
		if err := w.files.Remove(ctx, f.Name); err != nil {
			w.logger.Warn("failed to remove orphaned upload",
				slog.String("file", f.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
		w.logger.Debug("removed orphaned upload", slog.String("file", f.Name))
	}

	if removed > 0 {
		w.logger.Info("upload sweep completed", slog.Int("removed", removed), slog.Int("scanned", len(files)))
	}
	metrics.ObserveSweep("success", removed)
	return removed, nil
}
