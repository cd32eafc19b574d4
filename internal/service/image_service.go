package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/observability/metrics"
	"github.com/ecoterra/siteapi/internal/storage"
)

// DefaultMaxUploadBytes caps a single uploaded image
const DefaultMaxUploadBytes = 5 << 20

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// ImageService stores uploaded images and maintains the key to URL map
type ImageService struct {
	images   domain.ImageRepository
	blobs    storage.Store
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewImageService creates the service; maxBytes <= 0 selects DefaultMaxUploadBytes
func NewImageService(images domain.ImageRepository, blobs storage.Store, maxBytes int64, logger *slog.Logger) *ImageService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ImageService{
		images:   images,
		blobs:    blobs,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

// MaxBytes is the largest accepted file
func (s *ImageService) MaxBytes() int64 { return s.maxBytes }

// UploadInput is one file plus the form fields sent with it
type UploadInput struct {
	Key          string
	Category     string
	Description  string
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
}

// UploadResult is returned to the uploader
type UploadResult struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
}

// Upload checks type and size, writes the file and maps key to its URL.
// Nothing is written when a check fails.
func (s *ImageService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	key := strings.TrimSpace(in.Key)
	if key == "" {
		metrics.ObserveUpload("rejected", in.Size)
		return nil, domain.Invalid("key is required")
	}
	if !strings.HasPrefix(strings.ToLower(in.ContentType), "image/") {
		metrics.ObserveUpload("rejected", in.Size)
		s.logger.Warn("upload rejected: not an image",
			slog.String("key", key),
			slog.String("content_type", in.ContentType),
		)
		return nil, domain.ErrUnsupportedMediaType
	}
	if in.Size > s.maxBytes {
		metrics.ObserveUpload("rejected", in.Size)
		s.logger.Warn("upload rejected: too large",
			slog.String("key", key),
			slog.Int64("size", in.Size),
		)
		return nil, fmt.Errorf("%w: %d bytes, limit %d", domain.ErrPayloadTooLarge, in.Size, s.maxBytes)
	}

	name := s.filename(in.OriginalName)
	url, err := s.blobs.Put(ctx, storage.Object{
		Name:        name,
		ContentType: in.ContentType,
		Size:        in.Size,
		Body:        io.LimitReader(in.Body, s.maxBytes),
	})
	if err != nil {
		metrics.ObserveUpload("error", in.Size)
		return nil, fmt.Errorf("store image %s: %w", name, err)
	}

	if err := s.images.Set(ctx, key, url); err != nil {
		metrics.ObserveUpload("error", in.Size)
		return nil, fmt.Errorf("map image %q: %w", key, err)
	}

	metrics.ObserveUpload("accepted", in.Size)
	s.logger.Info("image uploaded",
		slog.String("key", key),
		slog.String("filename", name),
		slog.Int64("size", in.Size),
	)

	return &UploadResult{
		URL:         url,
		Key:         key,
		Category:    in.Category,
		Description: in.Description,
		Filename:    name,
	}, nil
}

// ResolveURL returns the mapped URL, or the /uploads/<key>.jpg convention when unmapped
func (s *ImageService) ResolveURL(ctx context.Context, key string) (string, error) {
	url, ok, err := s.images.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("lookup image %q: %w", key, err)
	}
	if !ok {
		return "/uploads/" + key + ".jpg", nil
	}
	return url, nil
}

func (s *ImageService) List(ctx context.Context) (map[string]string, error) {
	images, err := s.images.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return images, nil
}

// Delete removes the mapping only; the file stays where it was written
func (s *ImageService) Delete(ctx context.Context, key string) error {
	if err := s.images.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete image %q: %w", key, err)
	}
	s.logger.Info("image mapping removed", slog.String("key", key))
	return nil
}

func (s *ImageService) filename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("image-%d-%d%s", s.now().UnixMilli(), rand.Int64N(1_000_000_000), ext)
}
