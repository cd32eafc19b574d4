package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/infrastructure/logger"
	"github.com/ecoterra/siteapi/internal/repository"
	"github.com/ecoterra/siteapi/internal/storage"
)

func newImageService(t *testing.T) (*ImageService, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	svc := NewImageService(repository.NewMemoryImageRepository(), storage.NewLocalStore(dir, "/uploads"), 0, logger.Discard())
	return svc, dir
}

func pngInput(key string, body []byte) UploadInput {
	return UploadInput{
		Key:          key,
		Category:     "banner",
		Description:  "Front page hero",
		OriginalName: "Hero.PNG",
		ContentType:  "image/png",
		Size:         int64(len(body)),
		Body:         bytes.NewReader(body),
	}
}

func TestUploadRoundTrip(t *testing.T) {
	svc, dir := newImageService(t)
	ctx := context.Background()

	res, err := svc.Upload(ctx, pngInput("hero", []byte("png-bytes")))
	require.NoError(t, err)

	assert.Equal(t, "hero", res.Key)
	assert.Equal(t, "banner", res.Category)
	assert.Equal(t, "Front page hero", res.Description)
	assert.True(t, strings.HasPrefix(res.Filename, "image-"))
	assert.True(t, strings.HasSuffix(res.Filename, ".png"))
	assert.Equal(t, "/uploads/"+res.Filename, res.URL)

	data, err := os.ReadFile(filepath.Join(dir, res.Filename))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	url, err := svc.ResolveURL(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, res.URL, url)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hero": res.URL}, all)
}

func TestUploadRejectsBeforeWriting(t *testing.T) {
	svc, dir := newImageService(t)
	ctx := context.Background()

	in := pngInput("doc", []byte("%PDF"))
	in.ContentType = "application/pdf"
	_, err := svc.Upload(ctx, in)
	require.ErrorIs(t, err, domain.ErrUnsupportedMediaType)

	big := pngInput("big", nil)
	big.Size = 6 << 20
	big.Body = bytes.NewReader(make([]byte, 6<<20))
	_, err = svc.Upload(ctx, big)
	require.ErrorIs(t, err, domain.ErrPayloadTooLarge)

	_, err = svc.Upload(ctx, pngInput("  ", []byte("x")))
	require.ErrorIs(t, err, domain.ErrValidation)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "upload dir must not be created by rejected uploads")

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUploadDropsUnsafeExtension(t *testing.T) {
	svc, _ := newImageService(t)
	in := pngInput("odd", []byte("x"))
	in.OriginalName = "photo.p*g"

	res, err := svc.Upload(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "", filepath.Ext(res.Filename))
}

func TestConcurrentUploadsGetDistinctFiles(t *testing.T) {
	svc, dir := newImageService(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Upload(ctx, pngInput("gallery", []byte("x")))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestResolveURLFallbackAndDelete(t *testing.T) {
	svc, _ := newImageService(t)
	ctx := context.Background()

	url, err := svc.ResolveURL(ctx, "about")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/about.jpg", url)

	_, err = svc.Upload(ctx, pngInput("about", []byte("x")))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "about"))
	require.NoError(t, svc.Delete(ctx, "about"))

	url, err = svc.ResolveURL(ctx, "about")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/about.jpg", url)
}
