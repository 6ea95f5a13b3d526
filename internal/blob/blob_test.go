package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreWritesAndRenames(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.WriteBlob(ctx, []byte("one"), "trends/eclipse-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "trends/eclipse-1.jpg", ref)

	ref2, err := s.WriteBlob(ctx, []byte("two"), "trends/eclipse-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "trends/eclipse-1_1.jpg", ref2)

	data, err := os.ReadFile(filepath.Join(root, "trends", "eclipse-1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
	data, err = os.ReadFile(filepath.Join(root, "trends", "eclipse-1_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestLocalStoreStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(filepath.Join(root, "files"))
	require.NoError(t, err)

	ref, err := s.WriteBlob(context.Background(), []byte("x"), "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", ref)
	assert.FileExists(t, filepath.Join(root, "files", "etc", "passwd"))

	_, err = s.WriteBlob(context.Background(), []byte("x"), "/")
	assert.Error(t, err)
}

func TestS3StoreUploads(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	var (
		mu      sync.Mutex
		gotPath string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := New(Config{Backend: "s3", S3Bucket: "media", S3Region: "us-east-1", S3Endpoint: srv.URL, S3Prefix: "imports"})
	require.NoError(t, err)

	ref, err := store.WriteBlob(context.Background(), []byte("imagebytes"), "trends/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "s3://media/imports/trends/a.jpg", ref)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/media/imports/trends/a.jpg", gotPath)
	assert.Equal(t, "imagebytes", string(gotBody))
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "ftp"})
	assert.Error(t, err)

	_, err = New(Config{Backend: "s3"})
	assert.Error(t, err)
}
