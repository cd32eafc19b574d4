package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/infrastructure/logger"
	"github.com/ecoterra/siteapi/internal/reliability/circuitbreaker"
)

func TestLocalStorePutCreatesDirAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s := NewLocalStore(dir, "/uploads/")

	require.NoError(t, s.Ping(context.Background()))

	url, err := s.Put(context.Background(), Object{Name: "image-1-2.png", ContentType: "image/png", Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/image-1-2.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "image-1-2.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	require.NoError(t, s.Ping(context.Background()))
}

func TestLocalStoreRejectsPathsAndDuplicates(t *testing.T) {
	s := NewLocalStore(t.TempDir(), "")

	_, err := s.Put(context.Background(), Object{Name: "../escape.png", Body: strings.NewReader("x")})
	require.Error(t, err)

	_, err = s.Put(context.Background(), Object{Name: "a.png", Body: strings.NewReader("x")})
	require.NoError(t, err)
	_, err = s.Put(context.Background(), Object{Name: "a.png", Body: strings.NewReader("y")})
	require.Error(t, err)
}

func TestLocalStoreConcurrentFirstUse(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	s := NewLocalStore(dir, "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Put(context.Background(), Object{Name: fmt.Sprintf("f%d.jpg", i), Body: strings.NewReader("x")})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestLocalStorePingNotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	require.Error(t, NewLocalStore(f, "").Ping(context.Background()))
}

func TestS3ObjectURL(t *testing.T) {
	s := &S3Store{baseURL: "https://cdn.example.com/site"}
	assert.Equal(t, "https://cdn.example.com/site/image-1.jpg", s.ObjectURL("image-1.jpg"))
}

func TestNewS3StoreValidatesConfig(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{PublicBaseURL: "https://x"})
	require.Error(t, err)
	_, err = NewS3Store(context.Background(), S3Config{Bucket: "b"})
	require.Error(t, err)
}

func TestLocalStoreFilesAndRemove(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, "/uploads")

	files, err := NewLocalStore(filepath.Join(dir, "missing"), "").Files(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = s.Put(context.Background(), Object{Name: "a.jpg", Body: strings.NewReader("x")})
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	files, err = s.Files(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.jpg", files[0].Name)
	assert.Equal(t, "/uploads/a.jpg", files[0].URL)

	require.NoError(t, s.Remove(context.Background(), "a.jpg"))
	require.NoError(t, s.Remove(context.Background(), "a.jpg"))
	require.Error(t, s.Remove(context.Background(), "../a.jpg"))
	_, err = os.Stat(filepath.Join(dir, "a.jpg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type flakyStore struct {
	err   error
	calls int
}

func (f *flakyStore) Put(_ context.Context, obj Object) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "/uploads/" + obj.Name, nil
}

func (f *flakyStore) Ping(context.Context) error { return f.err }

func TestGuardedStoreFailsFastWhenOpen(t *testing.T) {
	backend := &flakyStore{err: errors.New("dial tcp: i/o timeout")}
	g := NewGuardedStore(backend, circuitbreaker.Settings{FailureThreshold: 2, Cooldown: time.Hour}, logger.Discard())
	obj := Object{Name: "a.jpg", Body: strings.NewReader("x")}

	for range 2 {
		_, err := g.Put(context.Background(), obj)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateOpen, g.State())

	_, err := g.Put(context.Background(), obj)
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Equal(t, 2, backend.calls)
	require.Error(t, g.Ping(context.Background()), "ping goes straight to the backend")
}

func TestGuardedStoreIgnoresCallerErrors(t *testing.T) {
	backend := &flakyStore{err: fmt.Errorf("write: %w", domain.ErrPayloadTooLarge)}
	g := NewGuardedStore(backend, circuitbreaker.Settings{FailureThreshold: 1}, logger.Discard())

	_, err := g.Put(context.Background(), Object{Name: "a.jpg", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	assert.Equal(t, circuitbreaker.StateClosed, g.State())

	backend.err = nil
	url, err := g.Put(context.Background(), Object{Name: "b.jpg", Body: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/b.jpg", url)
}

func TestGuardedStoreCheckReportsOpenCircuit(t *testing.T) {
	backend := &flakyStore{err: errors.New("503 SlowDown")}
	g := NewGuardedStore(backend, circuitbreaker.Settings{FailureThreshold: 1, Cooldown: time.Hour}, logger.Discard())
	require.Error(t, g.Check(context.Background()))

	backend.err = nil
	require.NoError(t, g.Check(context.Background()))

	backend.err = errors.New("503 SlowDown")
	_, _ = g.Put(context.Background(), Object{Name: "a.jpg", Body: strings.NewReader("x")})
	backend.err = nil

	err := g.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}
