package client

import (
	"context"
	"errors"
	"sync"

	"github.com/pdplens/pdplens/api"
)

// State is the user-visible phase of an analysis run.
type State string

const (
	StateIdle              State = "idle"
	StateFindingCompetitor State = "finding_competitor"
	StateAnalyzing         State = "analyzing"
	StateComplete          State = "complete"
)

// ErrRunInProgress is returned by Submit while a run is still executing.
var ErrRunInProgress = errors.New("analysis run already in progress")

// Result is the terminal outcome of a successful run.
type Result struct {
	Discovery *api.CompetitorDiscovery
	Report    *api.AnalysisReport
}

// Snapshot is a point-in-time view of the orchestrator. Err is the single
// failure message of the last run, empty while running or after success.
type Snapshot struct {
	State     State
	SourceURL string
	Discovery *api.CompetitorDiscovery
	Report    *api.AnalysisReport
	Err       string
}

// TransitionFunc observes state changes. It is called outside the
// orchestrator lock, in the goroutine running Submit.
type TransitionFunc func(Snapshot)

// Orchestrator drives one analysis chain at a time: discover the
// competitor, then compare against it. A failure in either stage returns
// the run to idle carrying exactly one error; a new Submit starts over
// with nothing kept from the previous run.
type Orchestrator struct {
	client   *Client
	onChange TransitionFunc

	mu        sync.Mutex
	state     State
	sourceURL string
	discovery *api.CompetitorDiscovery
	report    *api.AnalysisReport
	errMsg    string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithTransitionFunc registers a callback invoked after every state change.
func WithTransitionFunc(fn TransitionFunc) OrchestratorOption {
	return func(o *Orchestrator) { o.onChange = fn }
}

func NewOrchestrator(c *Client, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{client: c, state: StateIdle}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit runs the full chain for sourceURL and blocks until it completes
// or fails. Only one run may execute at a time; a Submit while a run is
// in flight returns ErrRunInProgress without touching the current run.
func (o *Orchestrator) Submit(ctx context.Context, sourceURL string) (*Result, error) {
	o.mu.Lock()
	if o.state == StateFindingCompetitor || o.state == StateAnalyzing {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.state = StateFindingCompetitor
	o.sourceURL = sourceURL
	o.discovery = nil
	o.report = nil
	o.errMsg = ""
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.notify(snap)

	discovery, err := o.client.DiscoverCompetitor(ctx, sourceURL)
	if err != nil {
		o.fail(err)
		return nil, err
	}

	o.transition(func() {
		o.state = StateAnalyzing
		o.discovery = discovery
	})

	// The reference is the competitor URL exactly as discovery returned it.
	report, err := o.client.ComparePages(ctx, sourceURL, discovery.CompetitorURL)
	if err != nil {
		o.fail(err)
		return nil, err
	}

	o.transition(func() {
		o.state = StateComplete
		o.report = report
	})

	return &Result{Discovery: discovery, Report: report}, nil
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns a copy of the current orchestrator view.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) fail(err error) {
	o.transition(func() {
		o.state = StateIdle
		o.discovery = nil
		o.report = nil
		o.errMsg = err.Error()
	})
}

func (o *Orchestrator) transition(mutate func()) {
	o.mu.Lock()
	mutate()
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.notify(snap)
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		State:     o.state,
		SourceURL: o.sourceURL,
		Discovery: o.discovery,
		Report:    o.report,
		Err:       o.errMsg,
	}
}

func (o *Orchestrator) notify(snap Snapshot) {
	if o.onChange != nil {
		o.onChange(snap)
	}
}
