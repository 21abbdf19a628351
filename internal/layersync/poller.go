package layersync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

// FetchFunc fetches the full data set of one overlay.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// CycleResult describes the outcome of one poll cycle.
type CycleResult struct {
	Layer string
	Cycle uint64
	Items int
	Err   error
}

// PollerConfig controls poll timing and in-cycle retry.
type PollerConfig struct {
	Interval time.Duration
	// Retries is the number of extra attempts inside one cycle. Zero disables retry.
	Retries      int
	RetryInitial time.Duration
	RetryMax     time.Duration
	Clock        clockwork.Clock
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 200 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 5 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return c
}

// Poller refreshes one overlay on a fixed interval. Each cycle either replaces
// the whole overlay or, on failure, leaves the previous set in place.
type Poller[T any] struct {
	cfg     PollerConfig
	fetch   FetchFunc[T]
	handle  *Handle[T]
	logger  *slog.Logger
	metrics *observability.Metrics
	onCycle func(CycleResult)

	cycle atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller creates a poller that writes into handle. onCycle, if non-nil,
// is called from the poll goroutine after every cycle.
func NewPoller[T any](cfg PollerConfig, fetch FetchFunc[T], handle *Handle[T], logger *slog.Logger, metrics *observability.Metrics, onCycle func(CycleResult)) *Poller[T] {
	return &Poller[T]{
		cfg:     cfg.withDefaults(),
		fetch:   fetch,
		handle:  handle,
		logger:  logger.With("layer", handle.layer),
		metrics: metrics,
		onCycle: onCycle,
	}
}

// Start polls once immediately and then every interval until Stop or until
// ctx is cancelled. Calling Start more than once, or after Stop, does nothing.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	ticker := p.cfg.Clock.NewTicker(p.cfg.Interval)
	go p.run(ctx, ticker)
}

// Stop cancels the ticker, waits for an in-flight cycle to finish, and then
// detaches the overlay. Only the first call has any effect.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	if started {
		p.cancel()
	}
	p.mu.Unlock()

	if !started {
		return
	}
	<-p.done
	if err := p.handle.Clear(); err != nil {
		p.logger.Error("overlay teardown failed", "error", err)
	}
}

func (p *Poller[T]) run(ctx context.Context, ticker clockwork.Ticker) {
	defer close(p.done)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.poll(ctx)
		}
	}
}

func (p *Poller[T]) poll(ctx context.Context) {
	cycle := p.cycle.Add(1)

	items, err := p.fetchWithRetry(ctx, cycle)
	if ctx.Err() != nil {
		// The view is being torn down; nothing may be attached after Stop.
		return
	}
	if err != nil {
		p.logger.Warn("overlay poll failed, keeping previous set", "cycle", cycle, "error", err)
		p.metrics.Polls.WithLabelValues(p.handle.layer, "error").Inc()
		p.notify(CycleResult{Layer: p.handle.layer, Cycle: cycle, Err: err})
		return
	}

	if err := p.handle.Replace(items); err != nil {
		p.logger.Error("overlay detach failed", "cycle", cycle, "error", err)
	}
	p.logger.Debug("overlay replaced", "cycle", cycle, "items", len(items))
	p.metrics.Polls.WithLabelValues(p.handle.layer, "success").Inc()
	p.notify(CycleResult{Layer: p.handle.layer, Cycle: cycle, Items: len(items)})
}

func (p *Poller[T]) fetchWithRetry(ctx context.Context, cycle uint64) ([]T, error) {
	if p.cfg.Retries <= 0 {
		return p.fetch(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.RetryInitial
	b.MaxInterval = p.cfg.RetryMax

	op := func() ([]T, error) {
		items, err := p.fetch(ctx)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return items, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.cfg.Retries+1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			p.logger.Debug("overlay poll retry", "cycle", cycle, "error", err, "backoff", d)
		}),
	)
}

func (p *Poller[T]) notify(r CycleResult) {
	if p.onCycle != nil {
		p.onCycle(r)
	}
}

// retryable reports whether a poll failure may succeed on another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var parseErr *domain.ParseError
	if errors.As(err, &parseErr) {
		return false
	}
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return true
}
