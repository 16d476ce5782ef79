package analysis

import (
	"context"
	"time"

	"github.com/pdplens/pdplens/api"
	"github.com/pdplens/pdplens/internal/config"
	"go.uber.org/zap"
)

// Variant fixes the per-surface behavior. Authenticated and trial requests
// run identical logic; they differ only in the gate, the budgets, and
// whether successful discoveries are audited.
type Variant struct {
	Name            string
	RequireAuth     bool
	Audit           bool
	DiscoverTimeout time.Duration
	CompareTimeout  time.Duration
}

// AuthenticatedVariant returns the variant for logged-in users.
func AuthenticatedVariant(cfg config.UpstreamRuntimeConfig) Variant {
	return Variant{
		Name:            "authenticated",
		RequireAuth:     true,
		Audit:           true,
		DiscoverTimeout: cfg.DiscoverTimeout,
		CompareTimeout:  cfg.CompareTimeout,
	}
}

// TrialVariant returns the variant for anonymous trial traffic. Trial runs
// carry no identity, so nothing is audited.
func TrialVariant(cfg config.UpstreamRuntimeConfig) Variant {
	return Variant{
		Name:            "trial",
		RequireAuth:     false,
		Audit:           false,
		DiscoverTimeout: cfg.TrialDiscoverTimeout,
		CompareTimeout:  cfg.TrialCompareTimeout,
	}
}

// Auditor records successful discoveries. Implementations must not block;
// a failed or dropped record never surfaces to the caller.
type Auditor interface {
	RecordDiscovery(userID, sourceURL string, d *api.CompetitorDiscovery)
}

// Archiver stores completed analysis reports. Implementations must not block.
type Archiver interface {
	Store(report *api.AnalysisReport)
}

// Service runs the analysis operations against the engine and feeds the
// audit and archive side channels.
type Service struct {
	upstream *UpstreamClient
	auditor  Auditor
	archiver Archiver
	logger   *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAuditor attaches the usage audit sink.
func WithAuditor(a Auditor) ServiceOption {
	return func(s *Service) { s.auditor = a }
}

// WithArchiver attaches the report archive sink.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *Service) { s.archiver = a }
}

// WithServiceLogger sets the logger for the service.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("AnalysisService")
		}
	}
}

func NewService(upstream *UpstreamClient, opts ...ServiceOption) *Service {
	s := &Service{upstream: upstream, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Discover asks the engine to identify the closest competitor for the
// source page. On success under an audited variant the discovery is handed
// to the auditor; that hand-off cannot fail the request.
func (s *Service) Discover(ctx context.Context, v Variant, userID string, req api.AnalysisRequest) (*api.CompetitorDiscovery, error) {
	payload := api.AnalysisRequest{SourceURL: req.SourceURL}

	var discovery api.CompetitorDiscovery
	if err := s.upstream.Call(ctx, endpointFindCompetitor, payload, &discovery, v.DiscoverTimeout); err != nil {
		return nil, err
	}
	if err := discovery.Validate(); err != nil {
		return nil, decodeError(endpointFindCompetitor, err)
	}

	if v.Audit && userID != "" && s.auditor != nil {
		s.auditor.RecordDiscovery(userID, req.SourceURL, &discovery)
	}
	return &discovery, nil
}

// Compare runs the two-page comparison between the source page and the
// reference page. Completed reports are handed to the archiver.
func (s *Service) Compare(ctx context.Context, v Variant, req api.AnalysisRequest) (*api.AnalysisReport, error) {
	var report api.AnalysisReport
	if err := s.upstream.Call(ctx, endpointAnalyze, req, &report, v.CompareTimeout); err != nil {
		return nil, err
	}

	if s.archiver != nil {
		s.archiver.Store(&report)
	}
	return &report, nil
}

// Full chains discovery and comparison in one call, feeding the discovered
// competitor URL into the comparison. Failures at either stage produce a
// result with Success=false and the stage error; a completed first stage is
// kept in the result either way.
func (s *Service) Full(ctx context.Context, v Variant, userID string, req api.AnalysisRequest) *api.CombinedAnalysis {
	combined := &api.CombinedAnalysis{}

	discovery, err := s.Discover(ctx, v, userID, req)
	if err != nil {
		combined.Error = PublicMessage(err)
		return combined
	}
	combined.CompetitorDiscovery = discovery

	report, err := s.Compare(ctx, v, api.AnalysisRequest{
		SourceURL:    req.SourceURL,
		ReferenceURL: discovery.CompetitorURL,
	})
	if err != nil {
		combined.Error = PublicMessage(err)
		return combined
	}

	combined.Comparison = report
	combined.Success = true
	return combined
}
