package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdplens/pdplens/api"
	"github.com/pdplens/pdplens/internal/pkg/metrics"
	"go.uber.org/zap"
)

const (
	defaultBufferSize = 64
	recentKeep        = 32
	uploadTimeout     = 45 * time.Second
)

// ArchivedObject is one upload kept in the recent-uploads ring.
type ArchivedObject struct {
	Key        string    `json:"key"`
	Size       int       `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Service archives analysis reports to object storage. Uploads ride a
// bounded queue behind a single worker, so a slow or unreachable store
// never delays a response and never fails one.
type Service struct {
	uploader *Uploader
	reports  chan *api.AnalysisReport
	logger   *zap.Logger
	metrics  *metrics.Manager
	done     chan struct{}

	mu     sync.Mutex
	recent []ArchivedObject
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the archive worker.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("ArchiveService")
		}
	}
}

// WithServiceMetrics sets the metrics manager for the archive worker.
func WithServiceMetrics(m *metrics.Manager) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewService(uploader *Uploader, bufferSize int, opts ...ServiceOption) *Service {
	if bufferSize < 1 {
		bufferSize = defaultBufferSize
	}
	s := &Service{
		uploader: uploader,
		reports:  make(chan *api.AnalysisReport, bufferSize),
		logger:   zap.NewNop(),
		metrics:  metrics.Default(),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store queues a report for upload without waiting for it. A full queue
// drops the report.
func (s *Service) Store(report *api.AnalysisReport) {
	if report == nil {
		return
	}
	select {
	case s.reports <- report:
		s.metrics.ArchiveEnqueued()
	default:
		s.metrics.ArchiveDropped()
		s.logger.Warn("archive buffer full, report dropped")
	}
}

// Run consumes reports until ctx is cancelled, then drains whatever is
// still buffered before returning.
func (s *Service) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case report := <-s.reports:
			s.upload(report)
		}
	}
}

// Shutdown waits for the worker to finish draining, or gives up when ctx
// expires.
func (s *Service) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) drain() {
	for {
		select {
		case report := <-s.reports:
			s.upload(report)
		default:
			return
		}
	}
}

func (s *Service) upload(report *api.AnalysisReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		s.metrics.ArchiveUploadFailure()
		s.logger.Warn("report marshal failed", zap.Error(err))
		return
	}

	key := objectKey(time.Now(), uuid.NewString())
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()
	if err := s.uploader.Upload(ctx, key, payload, "application/json"); err != nil {
		s.metrics.ArchiveUploadFailure()
		s.logger.Warn("report upload failed", zap.String("key", key), zap.Error(err))
		return
	}

	s.metrics.ArchiveUploaded()
	s.logger.Info("report archived", zap.String("key", key), zap.Int("size", len(payload)))
	s.remember(ArchivedObject{Key: key, Size: len(payload), UploadedAt: time.Now()})
}

func (s *Service) remember(obj ArchivedObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, obj)
	if len(s.recent) > recentKeep {
		s.recent = s.recent[len(s.recent)-recentKeep:]
	}
}

// Recent returns the newest uploads, most recent first.
func (s *Service) Recent() []ArchivedObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ArchivedObject, len(s.recent))
	for i, obj := range s.recent {
		out[len(s.recent)-1-i] = obj
	}
	return out
}

func objectKey(t time.Time, id string) string {
	t = t.UTC()
	return fmt.Sprintf("reports/%04d/%02d/%s.json", t.Year(), int(t.Month()), id)
}
