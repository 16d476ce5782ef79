package usage

import (
	"context"
	"strings"

	"github.com/pdplens/pdplens/api"
	"github.com/pdplens/pdplens/internal/models"
	"github.com/pdplens/pdplens/internal/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultBufferSize = 256

// Recorder buffers usage entries and writes them from a single background
// worker. Record never blocks: a full buffer drops the entry, because the
// audit trail must never slow an analysis down or fail one.
type Recorder struct {
	db      *gorm.DB
	entries chan Entry
	logger  *zap.Logger
	metrics *metrics.Manager
	done    chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger for the recorder.
func WithRecorderLogger(l *zap.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l.Named("UsageRecorder")
		}
	}
}

// WithRecorderMetrics sets the metrics manager for the recorder.
func WithRecorderMetrics(m *metrics.Manager) RecorderOption {
	return func(r *Recorder) {
		if m != nil {
			r.metrics = m
		}
	}
}

func NewRecorder(db *gorm.DB, bufferSize int, opts ...RecorderOption) *Recorder {
	if bufferSize < 1 {
		bufferSize = defaultBufferSize
	}
	r := &Recorder{
		db:      db,
		entries: make(chan Entry, bufferSize),
		logger:  zap.NewNop(),
		metrics: metrics.Default(),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Record hands an entry to the worker without waiting for it.
func (r *Recorder) Record(e Entry) {
	select {
	case r.entries <- e:
		r.metrics.AuditEnqueued()
	default:
		r.metrics.AuditDropped()
		r.logger.Warn("usage buffer full, entry dropped", zap.String("user", e.UserID))
	}
}

// RecordDiscovery builds an entry from a successful competitor discovery.
// It satisfies the auditor contract of the analysis service.
func (r *Recorder) RecordDiscovery(userID, sourceURL string, d *api.CompetitorDiscovery) {
	e := Entry{
		UserID:    userID,
		SourceURL: sourceURL,
	}
	if d != nil {
		e.ProductCategory = optional(d.SourceCategory)
		e.CompetitorBrand = optional(d.CompetitorBrand)
		e.CompetitorURL = optional(d.CompetitorURL)
	}
	r.Record(e)
}

// Run consumes entries until ctx is cancelled, then drains whatever is
// still buffered before returning.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case e := <-r.entries:
			r.write(e)
		}
	}
}

// Shutdown waits for the worker to finish draining, or gives up when ctx
// expires.
func (r *Recorder) Shutdown(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.entries:
			r.write(e)
		default:
			return
		}
	}
}

func (r *Recorder) write(e Entry) {
	row := models.UsageLogModel{
		UserID:          e.UserID,
		SourceURL:       e.SourceURL,
		ProductCategory: e.ProductCategory,
		CompetitorBrand: e.CompetitorBrand,
		CompetitorURL:   e.CompetitorURL,
	}
	if err := r.db.Create(&row).Error; err != nil {
		r.metrics.AuditWriteFailure()
		r.logger.Warn("usage write failed", zap.String("user", e.UserID), zap.Error(err))
	}
}

func optional(s string) *string {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return &v
}
