// Package analysis runs the region analysis request lifecycle of a map view:
// one request per drawn region, tagged with that region's generation, whose
// completion is applied only while the generation is still current.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

// Phase is the lifecycle state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// ErrClosed is returned by Arm after Close.
var ErrClosed = errors.New("analysis lifecycle closed")

const publishTimeout = 10 * time.Second

// Analyzer performs the backend analysis of a region.
type Analyzer interface {
	AnalyzeRegion(ctx context.Context, region domain.Region) (domain.RegionAnalysisResult, error)
}

// Publisher receives every analysis that was shown to the user.
type Publisher interface {
	PublishAnalysis(ctx context.Context, event domain.AnalysisEvent) error
}

// State is a snapshot of the lifecycle. Result is set only in PhaseSuccess
// and Message only in PhaseError.
type State struct {
	Phase        Phase
	Generation   string
	Region       domain.Region
	Result       *domain.RegionAnalysisResult
	Message      string
	PanelVisible bool
	StartedAt    time.Time
	CompletedAt  time.Time
}

func (s State) clone() State {
	if s.Result != nil {
		r := s.Result.Clone()
		s.Result = &r
	}
	return s
}

// Config controls request timing.
type Config struct {
	// Timeout bounds one analysis request; on expiry the lifecycle enters
	// PhaseError. Zero disables the bound.
	Timeout   time.Duration
	SessionID string
	Clock     clockwork.Clock
}

// Lifecycle is the per-view analysis state machine. It is safe for
// concurrent use.
type Lifecycle struct {
	cfg       Config
	analyzer  Analyzer
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
	closed bool
}

// New returns an idle lifecycle. publisher may be nil. Requests run under ctx
// and are cancelled by Close.
func New(ctx context.Context, cfg Config, analyzer Analyzer, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Lifecycle {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Lifecycle{
		cfg:       cfg,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
		state:     State{Phase: PhaseIdle},
		subs:      make(map[int]func(State)),
	}
}

// Arm enters Loading for region from any phase, discarding the previous
// payload, shows the panel, and issues one analysis request for it. A
// request still in flight for an older region is not cancelled; its
// completion is dropped.
func (l *Lifecycle) Arm(region domain.Region) error {
	if region.IsZero() {
		return errors.New("arm: empty region")
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.state = State{
		Phase:        PhaseLoading,
		Generation:   region.ID(),
		Region:       region,
		PanelVisible: true,
		StartedAt:    l.cfg.Clock.Now(),
	}
	l.wg.Add(1)
	l.notifyLocked()
	l.mu.Unlock()

	l.logger.Info("region analysis started", "generation", region.ID(), "vertices", region.Len())
	go func() {
		defer l.wg.Done()
		l.run(region)
	}()
	return nil
}

// Dismiss hides the panel. The in-flight request, if any, keeps running, but
// its completion will not be applied.
func (l *Lifecycle) Dismiss() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || !l.state.PanelVisible {
		return
	}
	l.state.PanelVisible = false
	l.logger.Debug("analysis panel dismissed", "generation", l.state.Generation, "phase", l.state.Phase)
	l.notifyLocked()
}

// Current returns a snapshot of the lifecycle.
func (l *Lifecycle) Current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.clone()
}

// Subscribe registers fn to receive every state change and returns a function
// that removes it. fn runs with the lifecycle locked: it must not block and
// must not call back into the Lifecycle.
func (l *Lifecycle) Subscribe(fn func(State)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// Close cancels in-flight requests, waits for them to return, and drops
// their completions. Arm fails after Close.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.subs = map[int]func(State){}
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}

func (l *Lifecycle) run(region domain.Region) {
	ctx, cancel := context.WithCancelCause(l.ctx)
	defer cancel(nil)
	if l.cfg.Timeout > 0 {
		timer := l.cfg.Clock.AfterFunc(l.cfg.Timeout, func() { cancel(context.DeadlineExceeded) })
		defer timer.Stop()
	}

	result, err := l.analyzer.AnalyzeRegion(ctx, region)
	if err != nil && errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		err = fmt.Errorf("analyze region after %s: %w", l.cfg.Timeout, context.DeadlineExceeded)
	}
	if err == nil {
		result, err = result.Normalize()
		if err != nil {
			err = &domain.ParseError{Op: "analyze_region", Err: err}
		}
	}

	if event, ok := l.complete(region, result, err); ok && l.publisher != nil {
		l.publish(event)
	}
}

// complete applies a finished request if its generation is still current and
// the panel is showing. It returns the event to publish for applied successes.
func (l *Lifecycle) complete(region domain.Region, result domain.RegionAnalysisResult, err error) (domain.AnalysisEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	gen := region.ID()
	switch {
	case l.closed:
		l.drop(gen, "view unmounted")
		return domain.AnalysisEvent{}, false
	case gen != l.state.Generation:
		l.drop(gen, "superseded")
		return domain.AnalysisEvent{}, false
	case !l.state.PanelVisible:
		l.drop(gen, "panel dismissed")
		return domain.AnalysisEvent{}, false
	}

	now := l.cfg.Clock.Now()
	l.metrics.AnalysisDuration.Observe(now.Sub(l.state.StartedAt).Seconds())
	l.state.CompletedAt = now

	if err != nil {
		l.state.Phase = PhaseError
		l.state.Message = domain.ErrorMessage(err)
		l.metrics.AnalysisRequests.WithLabelValues("error").Inc()
		l.logger.Warn("region analysis failed", "generation", gen, "error", err)
		l.notifyLocked()
		return domain.AnalysisEvent{}, false
	}

	l.state.Phase = PhaseSuccess
	l.state.Result = &result
	l.metrics.AnalysisRequests.WithLabelValues("success").Inc()
	l.logger.Info("region analysis completed", "generation", gen, "urgency_score", result.UrgencyScore)
	l.notifyLocked()
	return domain.NewAnalysisEvent(l.cfg.SessionID, region, result), true
}

func (l *Lifecycle) drop(gen, reason string) {
	l.metrics.AnalysisRequests.WithLabelValues("dropped").Inc()
	l.logger.Debug("analysis completion dropped", "generation", gen, "reason", reason)
}

func (l *Lifecycle) publish(event domain.AnalysisEvent) {
	ctx, cancel := context.WithTimeout(l.ctx, publishTimeout)
	defer cancel()
	if err := l.publisher.PublishAnalysis(ctx, event); err != nil {
		l.metrics.AnalysisEvents.WithLabelValues("error").Inc()
		l.logger.Error("publish analysis event failed", "generation", event.RegionID, "error", err)
		return
	}
	l.metrics.AnalysisEvents.WithLabelValues("published").Inc()
}

func (l *Lifecycle) notifyLocked() {
	if len(l.subs) == 0 {
		return
	}
	snap := l.state.clone()
	for _, fn := range l.subs {
		fn(snap)
	}
}
