package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

// --- fakes ---

type reply struct {
	result domain.RegionAnalysisResult
	err    error
}

type pendingCall struct {
	region domain.Region
	reply  chan reply
}

// fakeAnalyzer hands every request to the test, which answers it explicitly.
type fakeAnalyzer struct {
	calls chan pendingCall
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{calls: make(chan pendingCall, 8)}
}

func (f *fakeAnalyzer) AnalyzeRegion(ctx context.Context, region domain.Region) (domain.RegionAnalysisResult, error) {
	c := pendingCall{region: region, reply: make(chan reply, 1)}
	f.calls <- c
	select {
	case r := <-c.reply:
		return r.result, r.err
	case <-ctx.Done():
		return domain.RegionAnalysisResult{}, &domain.NetworkError{Op: "analyze_region", Err: ctx.Err()}
	}
}

func (f *fakeAnalyzer) next(t *testing.T) pendingCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for analysis request")
		return pendingCall{}
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.AnalysisEvent
	err    error
}

func (p *recordingPublisher) PublishAnalysis(_ context.Context, e domain.AnalysisEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) published() []domain.AnalysisEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.AnalysisEvent(nil), p.events...)
}

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func triangle(t *testing.T) domain.Region {
	t.Helper()
	r, err := domain.NewRegion([]domain.Coordinate{
		{Lat: 35.10, Lng: 129.05},
		{Lat: 35.11, Lng: 129.06},
		{Lat: 35.10, Lng: 129.07},
	})
	require.NoError(t, err)
	return r
}

func sampleResult() domain.RegionAnalysisResult {
	return domain.RegionAnalysisResult{
		UrgencyScore:       72,
		SentimentBreakdown: map[string]float64{"부정": 0.7, "중립": 0.3},
		ChartData: domain.ChartData{
			Categories: []string{"소음", "파손"},
			Counts:     []int{5, 3},
		},
		Themes:  map[string][]string{},
		Context: "...",
		Report:  "...",
	}
}

type fixture struct {
	lc        *Lifecycle
	analyzer  *fakeAnalyzer
	publisher *recordingPublisher
	metrics   *observability.Metrics
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T, timeout time.Duration) fixture {
	t.Helper()
	f := fixture{
		analyzer:  newFakeAnalyzer(),
		publisher: &recordingPublisher{},
		metrics:   observability.NewMetricsForTesting(),
		clock:     clockwork.NewFakeClock(),
	}
	cfg := Config{Timeout: timeout, SessionID: "session-1", Clock: f.clock}
	f.lc = New(context.Background(), cfg, f.analyzer, f.publisher, testLogger(), f.metrics)
	t.Cleanup(f.lc.Close)
	return f
}

func waitPhase(t *testing.T, lc *Lifecycle, want Phase) State {
	t.Helper()
	require.Eventually(t, func() bool { return lc.Current().Phase == want }, 2*time.Second, 5*time.Millisecond)
	return lc.Current()
}

func waitDropped(t *testing.T, m *observability.Metrics, n float64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.AnalysisRequests.WithLabelValues("dropped")) == n
	}, 2*time.Second, 5*time.Millisecond)
}

// --- tests ---

func TestLifecycle_StartsIdle(t *testing.T) {
	f := newFixture(t, 0)
	s := f.lc.Current()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.PanelVisible)
	assert.Nil(t, s.Result)
}

func TestLifecycle_SuccessThenNetworkFailure(t *testing.T) {
	f := newFixture(t, 0)
	region := triangle(t)

	require.NoError(t, f.lc.Arm(region))
	s := f.lc.Current()
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.True(t, s.PanelVisible)
	assert.Equal(t, region.ID(), s.Generation)

	call := f.analyzer.next(t)
	assert.Equal(t, region.Polygon(), call.region.Polygon())
	call.reply <- reply{result: sampleResult()}

	s = waitPhase(t, f.lc, PhaseSuccess)
	require.NotNil(t, s.Result)
	assert.Equal(t, 72, s.Result.UrgencyScore)
	assert.Len(t, s.Result.ChartData.Categories, 2)
	assert.Empty(t, s.Message)

	// Drawing the same ring again is a new capture with its own generation.
	again, err := domain.NewRegion(region.Vertices())
	require.NoError(t, err)
	require.NoError(t, f.lc.Arm(again))

	s = f.lc.Current()
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Nil(t, s.Result, "loading must not show the previous result")

	call = f.analyzer.next(t)
	call.reply <- reply{err: &domain.NetworkError{Op: "analyze_region", Err: &url.Error{Op: "Post", URL: "http://backend", Err: errors.New("connection refused")}}}

	s = waitPhase(t, f.lc, PhaseError)
	assert.Equal(t, "network error: connection refused", s.Message)
	assert.Nil(t, s.Result)
}

func TestLifecycle_StaleGenerationDropped(t *testing.T) {
	f := newFixture(t, 0)
	d1, d2 := triangle(t), triangle(t)

	require.NoError(t, f.lc.Arm(d1))
	call1 := f.analyzer.next(t)
	require.NoError(t, f.lc.Arm(d2))
	call2 := f.analyzer.next(t)

	stale := sampleResult()
	stale.UrgencyScore = 10
	call1.reply <- reply{result: stale}
	waitDropped(t, f.metrics, 1)

	s := f.lc.Current()
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Equal(t, d2.ID(), s.Generation)

	call2.reply <- reply{result: sampleResult()}
	s = waitPhase(t, f.lc, PhaseSuccess)
	assert.Equal(t, 72, s.Result.UrgencyScore)
	assert.Equal(t, d2.ID(), s.Generation)
}

func TestLifecycle_StaleErrorDropped(t *testing.T) {
	f := newFixture(t, 0)
	d1, d2 := triangle(t), triangle(t)

	require.NoError(t, f.lc.Arm(d1))
	call1 := f.analyzer.next(t)
	require.NoError(t, f.lc.Arm(d2))
	call2 := f.analyzer.next(t)

	call2.reply <- reply{result: sampleResult()}
	waitPhase(t, f.lc, PhaseSuccess)

	call1.reply <- reply{err: &domain.HTTPError{Op: "analyze_region", Status: 500}}
	waitDropped(t, f.metrics, 1)
	assert.Equal(t, PhaseSuccess, f.lc.Current().Phase)
}

func TestLifecycle_DismissDropsCompletion(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.lc.Arm(triangle(t)))
	call := f.analyzer.next(t)

	f.lc.Dismiss()
	assert.False(t, f.lc.Current().PanelVisible)

	call.reply <- reply{result: sampleResult()}
	waitDropped(t, f.metrics, 1)

	s := f.lc.Current()
	assert.False(t, s.PanelVisible, "completion must not reopen the panel")
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Nil(t, s.Result)
	assert.Empty(t, f.publisher.published())
}

func TestLifecycle_DismissThenRearm(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.lc.Arm(triangle(t)))
	f.analyzer.next(t)
	f.lc.Dismiss()

	require.NoError(t, f.lc.Arm(triangle(t)))
	assert.True(t, f.lc.Current().PanelVisible)
	f.analyzer.next(t).reply <- reply{result: sampleResult()}
	waitPhase(t, f.lc, PhaseSuccess)
}

func TestLifecycle_TimeoutBecomesError(t *testing.T) {
	f := newFixture(t, 60*time.Second)
	require.NoError(t, f.lc.Arm(triangle(t)))
	f.analyzer.next(t)

	f.clock.Advance(59 * time.Second)
	assert.Equal(t, PhaseLoading, f.lc.Current().Phase)

	f.clock.Advance(time.Second)
	s := waitPhase(t, f.lc, PhaseError)
	assert.Equal(t, "analysis timed out", s.Message)
}

func TestLifecycle_MalformedResult(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.lc.Arm(triangle(t)))

	bad := sampleResult()
	bad.ChartData.Counts = []int{5}
	f.analyzer.next(t).reply <- reply{result: bad}

	s := waitPhase(t, f.lc, PhaseError)
	assert.Equal(t, "malformed analysis response", s.Message)
}

func TestLifecycle_HTTPErrorMessage(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.lc.Arm(triangle(t)))
	f.analyzer.next(t).reply <- reply{err: &domain.HTTPError{Op: "analyze_region", Status: 502, Body: "Traceback (most recent call last)"}}

	s := waitPhase(t, f.lc, PhaseError)
	assert.Equal(t, "server returned status 502", s.Message)
	assert.NotContains(t, s.Message, "Traceback")
}

func TestLifecycle_PublishesAppliedSuccess(t *testing.T) {
	f := newFixture(t, 0)
	region := triangle(t)
	require.NoError(t, f.lc.Arm(region))
	f.analyzer.next(t).reply <- reply{result: sampleResult()}
	waitPhase(t, f.lc, PhaseSuccess)

	require.Eventually(t, func() bool { return len(f.publisher.published()) == 1 }, 2*time.Second, 5*time.Millisecond)
	e := f.publisher.published()[0]
	assert.Equal(t, "session-1", e.SessionID)
	assert.Equal(t, region.ID(), e.RegionID)
	assert.Equal(t, 72, e.UrgencyScore)
	assert.Equal(t, []int{5, 3}, e.Counts)
}

func TestLifecycle_PublishFailureDoesNotChangeState(t *testing.T) {
	f := newFixture(t, 0)
	f.publisher.err = errors.New("broker down")
	require.NoError(t, f.lc.Arm(triangle(t)))
	f.analyzer.next(t).reply <- reply{result: sampleResult()}

	waitPhase(t, f.lc, PhaseSuccess)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.AnalysisEvents.WithLabelValues("error")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, PhaseSuccess, f.lc.Current().Phase)
}

func TestLifecycle_SubscribeSeesTransitions(t *testing.T) {
	f := newFixture(t, 0)
	states := make(chan State, 8)
	unsubscribe := f.lc.Subscribe(func(s State) { states <- s })

	require.NoError(t, f.lc.Arm(triangle(t)))
	assert.Equal(t, PhaseLoading, (<-states).Phase)

	f.analyzer.next(t).reply <- reply{result: sampleResult()}
	select {
	case s := <-states:
		assert.Equal(t, PhaseSuccess, s.Phase)
		require.NotNil(t, s.Result)
	case <-time.After(2 * time.Second):
		t.Fatal("no success notification")
	}

	unsubscribe()
	f.lc.Dismiss()
	assert.Empty(t, states)
}

func TestLifecycle_CurrentIsCopy(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.lc.Arm(triangle(t)))
	f.analyzer.next(t).reply <- reply{result: sampleResult()}
	s := waitPhase(t, f.lc, PhaseSuccess)

	s.Result.ChartData.Counts[0] = 999
	s.Result.SentimentBreakdown["부정"] = 0
	again := f.lc.Current()
	assert.Equal(t, 5, again.Result.ChartData.Counts[0])
	assert.InDelta(t, 0.7, again.Result.SentimentBreakdown["부정"], 1e-9)
}

func TestLifecycle_CloseDropsInflight(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.lc.Arm(triangle(t)))
	f.analyzer.next(t)

	f.lc.Close()
	assert.Equal(t, PhaseLoading, f.lc.Current().Phase)
	assert.ErrorIs(t, f.lc.Arm(triangle(t)), ErrClosed)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.AnalysisRequests.WithLabelValues("dropped")), 1e-9)
}

func TestLifecycle_ArmRejectsZeroRegion(t *testing.T) {
	f := newFixture(t, 0)
	require.Error(t, f.lc.Arm(domain.Region{}))
	assert.Equal(t, PhaseIdle, f.lc.Current().Phase)
}
