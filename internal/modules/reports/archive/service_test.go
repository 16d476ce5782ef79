package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdplens/pdplens/api"
	"github.com/pdplens/pdplens/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// objectStoreStub accepts S3 path-style PUTs and records them.
type objectStoreStub struct {
	mu     sync.Mutex
	status int
	puts   []storedPut
}

type storedPut struct {
	path        string
	contentType string
	body        string
}

func (o *objectStoreStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		o.mu.Lock()
		o.puts = append(o.puts, storedPut{
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		status := o.status
		o.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	})
}

func (o *objectStoreStub) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.puts)
}

func (o *objectStoreStub) last() storedPut {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.puts[len(o.puts)-1]
}

func newTestUploader(t *testing.T, store *objectStoreStub) *Uploader {
	t.Helper()
	srv := httptest.NewServer(store.handler())
	t.Cleanup(srv.Close)

	up, err := NewUploader(config.ArchiveRuntimeConfig{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "pdplens-reports",
		AccessKeyID:     "test-access",
		SecretAccessKey: "test-secret",
	})
	require.NoError(t, err)
	return up
}

// runService drains the queue through the worker and waits for it to stop.
func runService(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go s.Run(ctx)

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	require.NoError(t, s.Shutdown(sctx))
}

func sampleReport() *api.AnalysisReport {
	return &api.AnalysisReport{ExecutiveSummary: "source page lags on imagery"}
}

func TestUploaderRequiresFullConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ArchiveRuntimeConfig
	}{
		{name: "missing bucket", cfg: config.ArchiveRuntimeConfig{Region: "r", AccessKeyID: "a", SecretAccessKey: "s"}},
		{name: "missing region", cfg: config.ArchiveRuntimeConfig{Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"}},
		{name: "missing access key", cfg: config.ArchiveRuntimeConfig{Bucket: "b", Region: "r", SecretAccessKey: "s"}},
		{name: "missing secret", cfg: config.ArchiveRuntimeConfig{Bucket: "b", Region: "r", AccessKeyID: "a"}},
		{name: "whitespace only", cfg: config.ArchiveRuntimeConfig{Bucket: "  ", Region: "r", AccessKeyID: "a", SecretAccessKey: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUploader(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "incomplete s3 config")
		})
	}
}

func TestServiceUploadsReport(t *testing.T) {
	store := &objectStoreStub{}
	s := NewService(newTestUploader(t, store), 8)

	s.Store(sampleReport())
	runService(t, s)

	require.Equal(t, 1, store.count())
	put := store.last()
	// Path-style: /bucket/reports/YYYY/MM/<id>.json
	assert.True(t, strings.HasPrefix(put.path, "/pdplens-reports/reports/"), "unexpected path %q", put.path)
	assert.True(t, strings.HasSuffix(put.path, ".json"))
	assert.Equal(t, "application/json", put.contentType)
	assert.Contains(t, put.body, "source page lags on imagery")
}

func TestServiceTracksRecentUploads(t *testing.T) {
	store := &objectStoreStub{}
	s := NewService(newTestUploader(t, store), 8)

	s.Store(sampleReport())
	s.Store(sampleReport())
	runService(t, s)

	recent := s.Recent()
	require.Len(t, recent, 2)
	assert.NotEqual(t, recent[0].Key, recent[1].Key)
	// Newest first.
	assert.False(t, recent[0].UploadedAt.Before(recent[1].UploadedAt))
	for _, obj := range recent {
		assert.Greater(t, obj.Size, 0)
	}
}

func TestStoreDropsWhenBufferFull(t *testing.T) {
	store := &objectStoreStub{}
	s := NewService(newTestUploader(t, store), 1)

	// No worker is running; the second report has nowhere to go.
	s.Store(sampleReport())
	s.Store(sampleReport())
	assert.Equal(t, 1, len(s.reports))

	runService(t, s)
	assert.Equal(t, 1, store.count())
}

func TestStoreIgnoresNil(t *testing.T) {
	store := &objectStoreStub{}
	s := NewService(newTestUploader(t, store), 4)

	s.Store(nil)
	assert.Zero(t, len(s.reports))
}

func TestUploadFailureIsSwallowed(t *testing.T) {
	store := &objectStoreStub{status: http.StatusForbidden}
	s := NewService(newTestUploader(t, store), 4)

	s.Store(sampleReport())
	runService(t, s)

	assert.GreaterOrEqual(t, store.count(), 1)
	assert.Empty(t, s.Recent(), "failed uploads must not enter the recent ring")
}

func TestRecentRingIsBounded(t *testing.T) {
	s := NewService(nil, 4)
	for i := 0; i < recentKeep+10; i++ {
		s.remember(ArchivedObject{Key: "k", Size: 1, UploadedAt: time.Now()})
	}
	assert.Len(t, s.Recent(), recentKeep)
}

func TestObjectKeyLayout(t *testing.T) {
	ts := time.Date(2026, 3, 7, 15, 4, 5, 0, time.UTC)
	key := objectKey(ts, "abc-123")
	assert.Equal(t, "reports/2026/03/abc-123.json", key)
}
