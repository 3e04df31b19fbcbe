package objectstorage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (*Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Options{
		Endpoint:     srv.URL,
		Region:       "us-east-1",
		Bucket:       "covers",
		AccessKey:    "minio",
		SecretKey:    "minio-secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	return s, fake
}

func TestPutAndDelete(t *testing.T) {
	s, fake := newTestStorage(t)
	ctx := context.Background()

	body := "png-bytes"
	err := s.Put(ctx, "courses/1/cover.png", "image/png", strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	fake.mu.Lock()
	assert.Equal(t, body, fake.objects["/covers/courses/1/cover.png"])
	assert.Equal(t, "image/png", fake.types["/covers/courses/1/cover.png"])
	fake.mu.Unlock()

	require.NoError(t, s.Delete(ctx, "courses/1/cover.png"))
	fake.mu.Lock()
	_, ok := fake.objects["/covers/courses/1/cover.png"]
	fake.mu.Unlock()
	assert.False(t, ok)
}

func TestPresignGet(t *testing.T) {
	s, _ := newTestStorage(t)

	url, err := s.PresignGet(context.Background(), "courses/1/cover.png", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "/covers/courses/1/cover.png")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=900")
}

func TestValidation(t *testing.T) {
	_, err := New(context.Background(), Options{Region: "us-east-1"})
	assert.Error(t, err)

	s, _ := newTestStorage(t)
	assert.Error(t, s.Put(context.Background(), "", "image/png", strings.NewReader("x"), 1))
	_, err = s.PresignGet(context.Background(), "", time.Minute)
	assert.Error(t, err)
}
