// Package reconciler keeps a driver session's order store in step with the
// system of record by listening to change notifications.
//
// Every notification schedules refreshes. Requests for a key that is already
// being refreshed set a rerun flag instead of starting a parallel fetch, so
// each package has at most one fetch in flight and the latest state is always
// fetched once the storm settles. Failed refreshes are retried with bounded
// exponential backoff; when retries run out the package is marked stale and
// its last good snapshot is kept.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/metrics"

	"github.com/cenkalti/backoff/v4"
)

var ErrStopped = errors.New("reconciler is stopped")

// Store is the part of the order store the reconciler drives.
type Store interface {
	Packages() []*route.Package
	Refresh(ctx context.Context, packageID kernel.UUID) ([]*order.Order, error)
	Relist(ctx context.Context) ([]*route.Package, error)
	MarkStale(packageID kernel.UUID, cause error)
}

// Config bounds the retry policy of a single refresh.
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
	}
}

func (c Config) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.Multiplier = c.Multiplier
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(b, uint64(attempts-1))
}

// routeKey is the flight key of a package re-list.
var routeKey = kernel.UUID{}

type flight struct {
	rerun bool
}

type Reconciler struct {
	store    Store
	feed     ports.ChangeFeed
	driverID kernel.UUID
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	live     bool
	started  bool
	subs     []ports.Subscription
	inflight map[kernel.UUID]*flight
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func New(
	store Store, feed ports.ChangeFeed, driverID kernel.UUID, cfg Config, logger *slog.Logger, m *metrics.Metrics,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = DefaultConfig().Multiplier
	}
	return &Reconciler{
		store:    store,
		feed:     feed,
		driverID: driverID,
		cfg:      cfg,
		logger:   logger.With("component", "Reconciler", "driver_id", driverID.String()),
		metrics:  m,
		inflight: make(map[kernel.UUID]*flight),
	}
}

// Start subscribes to every change stream. The driver_packages stream is
// filtered to the session's driver. ctx bounds only the subscribe calls;
// background refreshes run until Stop.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("reconciler already started")
	}
	r.started = true
	r.live = true
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.mu.Unlock()

	for _, stream := range ports.Streams() {
		var filter ports.Filter
		if stream == ports.StreamDriverPackages {
			filter = ports.Filter{Column: "driver_id", Value: r.driverID.String()}
		}

		sub, err := r.feed.Subscribe(ctx, stream, filter, r.handle)
		if err != nil {
			return errors.Join(fmt.Errorf("subscribe %s: %w", stream, err), r.Stop())
		}

		r.mu.Lock()
		if !r.live {
			r.mu.Unlock()
			return errors.Join(ErrStopped, sub.Unsubscribe())
		}
		r.subs = append(r.subs, sub)
		r.mu.Unlock()

		r.logger.Debug("subscribed", "stream", string(stream), "filter", filter.String())
	}
	return nil
}

// Stop releases all subscriptions and waits for in-flight refreshes. No
// handler acts after Stop returns. Stop is idempotent.
func (r *Reconciler) Stop() error {
	r.mu.Lock()
	if !r.live {
		r.mu.Unlock()
		r.wg.Wait()
		return nil
	}
	r.live = false
	subs := r.subs
	r.subs = nil
	cancel := r.cancel
	r.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()

	r.logger.Info("stopped")
	return errors.Join(errs...)
}

// IsLive reports whether the reconciler accepts work.
func (r *Reconciler) IsLive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *Reconciler) handle(n ports.Notification) {
	if !r.IsLive() {
		return
	}
	r.metrics.ObserveNotification(string(n.Stream))

	if n.Stream == ports.StreamDriverPackages {
		r.RequestRelist()
		return
	}
	r.RequestAll()
}

// Request schedules a refresh of one package.
func (r *Reconciler) Request(packageID kernel.UUID) {
	r.schedule(packageID)
}

// RequestAll schedules a refresh of every package on the route.
func (r *Reconciler) RequestAll() {
	for _, p := range r.store.Packages() {
		r.schedule(p.ID())
	}
}

// RequestRelist schedules a re-list of the route's packages followed by a
// refresh of each listed package.
func (r *Reconciler) RequestRelist() {
	r.schedule(routeKey)
}

func (r *Reconciler) schedule(key kernel.UUID) {
	r.mu.Lock()
	if !r.live {
		r.mu.Unlock()
		return
	}
	if f, ok := r.inflight[key]; ok {
		f.rerun = true
		r.mu.Unlock()
		r.metrics.ObserveCoalesced()
		return
	}
	r.inflight[key] = &flight{}
	r.wg.Add(1)
	ctx := r.ctx
	r.mu.Unlock()

	go r.run(ctx, key)
}

func (r *Reconciler) run(ctx context.Context, key kernel.UUID) {
	defer r.wg.Done()

	for {
		r.execute(ctx, key)

		r.mu.Lock()
		f := r.inflight[key]
		if !f.rerun || !r.live {
			delete(r.inflight, key)
			r.mu.Unlock()
			return
		}
		f.rerun = false
		r.mu.Unlock()
	}
}

func (r *Reconciler) execute(ctx context.Context, key kernel.UUID) {
	attempt := 0
	op := func() error {
		if !r.IsLive() {
			return backoff.Permanent(ErrStopped)
		}
		attempt++
		if key == routeKey {
			return r.relist(ctx)
		}
		_, err := r.store.Refresh(ctx, key)
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Debug("refresh failed, retrying", "key", key.String(), "attempt", attempt, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(r.cfg.newBackOff(), ctx), notify)
	if err == nil || errors.Is(err, ErrStopped) || !r.IsLive() {
		return
	}

	if key == routeKey {
		r.logger.Warn("re-list failed, route is stale", "attempts", attempt, "error", err)
		for _, p := range r.store.Packages() {
			r.store.MarkStale(p.ID(), err)
		}
		return
	}
	r.logger.Warn("refresh failed, package is stale", "package_id", key.String(), "attempts", attempt, "error", err)
	r.store.MarkStale(key, err)
}

func (r *Reconciler) relist(ctx context.Context) error {
	pkgs, err := r.store.Relist(ctx)
	if err != nil {
		return err
	}
	for _, p := range pkgs {
		r.schedule(p.ID())
	}
	return nil
}
