package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pdplens/pdplens/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditCall struct {
	userID    string
	sourceURL string
	discovery *api.CompetitorDiscovery
}

type stubAuditor struct {
	mu    sync.Mutex
	calls []auditCall
}

func (s *stubAuditor) RecordDiscovery(userID, sourceURL string, d *api.CompetitorDiscovery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, auditCall{userID: userID, sourceURL: sourceURL, discovery: d})
}

func (s *stubAuditor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubArchiver struct {
	mu      sync.Mutex
	reports []*api.AnalysisReport
}

func (s *stubArchiver) Store(report *api.AnalysisReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
}

func (s *stubArchiver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

// engineStub fakes the two analysis engine endpoints and records traffic.
type engineStub struct {
	mu             sync.Mutex
	discoverStatus int
	discoverBody   string
	analyzeStatus  int
	analyzeBody    string
	discoverCalls  int
	analyzeCalls   int
	lastAnalyzeReq api.AnalysisRequest
}

func newEngineStub() *engineStub {
	return &engineStub{
		discoverStatus: http.StatusOK,
		discoverBody:   discoveryJSON("https://rival.example/p/9"),
		analyzeStatus:  http.StatusOK,
		analyzeBody:    `{"executive_summary":"looks fine","comparison":{"overall_source_score":62,"overall_reference_score":80}}`,
	}
}

func (e *engineStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/find-competitor", func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.discoverCalls++
		status, body := e.discoverStatus, e.discoverBody
		e.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		var req api.AnalysisRequest
		json.NewDecoder(r.Body).Decode(&req)
		e.mu.Lock()
		e.analyzeCalls++
		e.lastAnalyzeReq = req
		status, body := e.analyzeStatus, e.analyzeBody
		e.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
	return mux
}

func (e *engineStub) counts() (discover, analyze int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discoverCalls, e.analyzeCalls
}

func discoveryJSON(competitorURL string) string {
	d := api.CompetitorDiscovery{
		SourceProductName:     "Trail Runner 5",
		SourceBrand:           "Acme",
		SourceCategory:        "running shoes",
		CompetitorURL:         competitorURL,
		CompetitorProductName: "SpeedFoam X",
		CompetitorBrand:       "RivalCo",
		Reasons:               []api.CompetitorReason{{Reason: "same category", Detail: "both trail"}},
	}
	raw, _ := json.Marshal(&d)
	return string(raw)
}

func testVariant(audit bool) Variant {
	return Variant{
		Name:            "test",
		RequireAuth:     audit,
		Audit:           audit,
		DiscoverTimeout: 2 * time.Second,
		CompareTimeout:  2 * time.Second,
	}
}

func newTestService(engine *engineStub, opts ...ServiceOption) (*Service, *httptest.Server) {
	srv := httptest.NewServer(engine.handler())
	return NewService(NewUpstreamClient(srv.URL), opts...), srv
}

func TestDiscoverAuditsOnSuccess(t *testing.T) {
	engine := newEngineStub()
	auditor := &stubAuditor{}
	svc, srv := newTestService(engine, WithAuditor(auditor))
	defer srv.Close()

	req := api.AnalysisRequest{SourceURL: "https://store.example/products/x"}
	discovery, err := svc.Discover(context.Background(), testVariant(true), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, "https://rival.example/p/9", discovery.CompetitorURL)

	require.Equal(t, 1, auditor.count())
	assert.Equal(t, "user-1", auditor.calls[0].userID)
	assert.Equal(t, "https://store.example/products/x", auditor.calls[0].sourceURL)
	assert.Equal(t, "RivalCo", auditor.calls[0].discovery.CompetitorBrand)
}

func TestDiscoverSkipsAuditForTrial(t *testing.T) {
	engine := newEngineStub()
	auditor := &stubAuditor{}
	svc, srv := newTestService(engine, WithAuditor(auditor))
	defer srv.Close()

	_, err := svc.Discover(context.Background(), testVariant(false), "", api.AnalysisRequest{SourceURL: "https://a.example"})
	require.NoError(t, err)
	assert.Zero(t, auditor.count())
}

func TestDiscoverSkipsAuditWithoutIdentity(t *testing.T) {
	engine := newEngineStub()
	auditor := &stubAuditor{}
	svc, srv := newTestService(engine, WithAuditor(auditor))
	defer srv.Close()

	_, err := svc.Discover(context.Background(), testVariant(true), "", api.AnalysisRequest{SourceURL: "https://a.example"})
	require.NoError(t, err)
	assert.Zero(t, auditor.count())
}

func TestDiscoverRejectsPartialDiscovery(t *testing.T) {
	engine := newEngineStub()
	engine.discoverBody = `{"competitor_url":"https://rival.example/p/9"}`
	auditor := &stubAuditor{}
	svc, srv := newTestService(engine, WithAuditor(auditor))
	defer srv.Close()

	_, err := svc.Discover(context.Background(), testVariant(true), "user-1", api.AnalysisRequest{SourceURL: "https://a.example"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Zero(t, auditor.count())
}

func TestDiscoverFailureSkipsAudit(t *testing.T) {
	engine := newEngineStub()
	engine.discoverStatus = http.StatusPaymentRequired
	engine.discoverBody = `{"detail":"quota exceeded"}`
	auditor := &stubAuditor{}
	svc, srv := newTestService(engine, WithAuditor(auditor))
	defer srv.Close()

	_, err := svc.Discover(context.Background(), testVariant(true), "user-1", api.AnalysisRequest{SourceURL: "https://a.example"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Zero(t, auditor.count())
}

func TestCompareArchivesReport(t *testing.T) {
	engine := newEngineStub()
	archiver := &stubArchiver{}
	auditor := &stubAuditor{}
	svc, srv := newTestService(engine, WithArchiver(archiver), WithAuditor(auditor))
	defer srv.Close()

	req := api.AnalysisRequest{SourceURL: "https://a.example", ReferenceURL: "https://b.example"}
	report, err := svc.Compare(context.Background(), testVariant(true), req)
	require.NoError(t, err)
	assert.Equal(t, "looks fine", report.ExecutiveSummary)
	assert.Equal(t, 1, archiver.count())
	assert.Zero(t, auditor.count(), "comparisons are not usage-audited")
}

func TestCompareWithoutArchiver(t *testing.T) {
	engine := newEngineStub()
	svc, srv := newTestService(engine)
	defer srv.Close()

	_, err := svc.Compare(context.Background(), testVariant(true), api.AnalysisRequest{SourceURL: "https://a.example", ReferenceURL: "https://b.example"})
	require.NoError(t, err)
}

func TestFullChainsDiscoveredCompetitor(t *testing.T) {
	engine := newEngineStub()
	engine.discoverBody = discoveryJSON("https://rival.example/y")
	auditor := &stubAuditor{}
	svc, srv := newTestService(engine, WithAuditor(auditor))
	defer srv.Close()

	combined := svc.Full(context.Background(), testVariant(true), "user-1", api.AnalysisRequest{SourceURL: "https://store.example/products/x"})
	require.True(t, combined.Success)
	require.NotNil(t, combined.CompetitorDiscovery)
	require.NotNil(t, combined.Comparison)
	assert.Empty(t, combined.Error)
	assert.Equal(t, 62, combined.Comparison.Comparison.OverallSourceScore)
	assert.Equal(t, 80, combined.Comparison.Comparison.OverallReferenceScore)

	// The comparison must target the URL discovery returned, unchanged.
	engine.mu.Lock()
	analyzeReq := engine.lastAnalyzeReq
	engine.mu.Unlock()
	assert.Equal(t, "https://rival.example/y", analyzeReq.ReferenceURL)
	assert.Equal(t, "https://store.example/products/x", analyzeReq.SourceURL)

	// Audit fired exactly once, for the discovery stage.
	assert.Equal(t, 1, auditor.count())
}

func TestFullDiscoveryFailureStopsChain(t *testing.T) {
	engine := newEngineStub()
	engine.discoverStatus = http.StatusServiceUnavailable
	engine.discoverBody = `{"detail":"discovery offline"}`
	svc, srv := newTestService(engine)
	defer srv.Close()

	combined := svc.Full(context.Background(), testVariant(true), "user-1", api.AnalysisRequest{SourceURL: "https://a.example"})
	assert.False(t, combined.Success)
	assert.Nil(t, combined.CompetitorDiscovery)
	assert.Nil(t, combined.Comparison)
	assert.Equal(t, "discovery offline", combined.Error)

	_, analyzeCalls := engine.counts()
	assert.Zero(t, analyzeCalls)
}

func TestFullCompareFailureKeepsDiscovery(t *testing.T) {
	engine := newEngineStub()
	engine.analyzeStatus = http.StatusGatewayTimeout
	engine.analyzeBody = `{"detail":"engine busy"}`
	auditor := &stubAuditor{}
	svc, srv := newTestService(engine, WithAuditor(auditor))
	defer srv.Close()

	combined := svc.Full(context.Background(), testVariant(true), "user-1", api.AnalysisRequest{SourceURL: "https://a.example"})
	assert.False(t, combined.Success)
	require.NotNil(t, combined.CompetitorDiscovery)
	assert.Nil(t, combined.Comparison)
	assert.Equal(t, "engine busy", combined.Error)

	// The discovery already happened, so its audit record stands.
	assert.Equal(t, 1, auditor.count())
}
