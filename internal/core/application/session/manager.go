// Package session hosts driver sessions. A session is opened when a driver
// first asks for a route, loads the route cold, keeps it fresh through the
// change feed and is torn down explicitly or after it has been idle too long.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"routesync/internal/core/application/orderstore"
	"routesync/internal/core/application/reconciler"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/errs"
	"routesync/internal/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

var (
	ErrManagerClosed = errors.New("session manager is closed")
	// ErrNoDriver is returned when the request carries no authenticated driver.
	ErrNoDriver = errors.New("no authenticated driver")
)

type Config struct {
	IdleTTL      time.Duration
	ScanLogLimit int
	Reconciler   reconciler.Config
}

func DefaultConfig() Config {
	return Config{
		IdleTTL:    30 * time.Minute,
		Reconciler: reconciler.DefaultConfig(),
	}
}

type Manager struct {
	backend ports.OrderBackend
	feed    ports.ChangeFeed
	storage ports.AssetStorage
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	opening singleflight.Group

	mu       sync.Mutex
	sessions map[kernel.UUID]*Session
	closed   bool
}

func NewManager(
	backend ports.OrderBackend,
	feed ports.ChangeFeed,
	storage ports.AssetStorage,
	cfg Config,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend:  backend,
		feed:     feed,
		storage:  storage,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[kernel.UUID]*Session),
	}
}

// Open returns the driver's session for date, creating it on first use.
// An open session for another date is switched to date. Concurrent calls for
// the same driver share one cold start.
func (m *Manager) Open(ctx context.Context, driverID kernel.UUID, date time.Time) (*Session, error) {
	if err := driverID.Validate(); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, errs.NewValueIsRequiredError("date")
	}
	date = route.Day(date)

	open := func() (*Session, error) {
		v, err, _ := m.opening.Do(driverID.String(), func() (any, error) {
			return m.open(ctx, driverID, date)
		})
		if err != nil {
			return nil, err
		}
		return v.(*Session), nil
	}

	s, err := open()
	if err != nil {
		return nil, err
	}
	// A shared cold start may have been for another date.
	if !s.Date().Equal(date) {
		return open()
	}
	return s, nil
}

func (m *Manager) open(ctx context.Context, driverID kernel.UUID, date time.Time) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	existing := m.sessions[driverID]
	m.mu.Unlock()

	if existing != nil {
		existing.touch(m.now())
		if existing.Date().Equal(date) {
			return existing, nil
		}
		if err := m.switchDate(ctx, existing, date); err != nil {
			return nil, err
		}
		return existing, nil
	}

	d, err := m.backend.FindDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if err := d.CanOpenSession(); err != nil {
		return nil, err
	}

	logger := m.logger.With("driver_id", driverID.String())
	store := orderstore.NewStore(m.backend, logger, m.metrics)
	rec := reconciler.New(store, m.feed, driverID, m.cfg.Reconciler, logger, m.metrics)

	// Subscribe before loading so no change between load and subscribe is lost.
	if err := rec.Start(ctx); err != nil {
		return nil, fmt.Errorf("start reconciler: %w", err)
	}

	pkgs, err := store.LoadRoute(ctx, driverID, date)
	if err != nil {
		if len(pkgs) == 0 {
			return nil, errors.Join(err, rec.Stop())
		}
		logger.Warn("route loaded with stale packages", "error", err)
	}

	s := newSession(driverID, store, rec, m.backend, m.storage, m.cfg.ScanLogLimit, logger, m.metrics, m.now())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.Join(ErrManagerClosed, rec.Stop())
	}
	m.sessions[driverID] = s
	m.mu.Unlock()

	m.metrics.SessionOpened()
	logger.Info("session opened", "date", date.Format(route.DateLayout), "packages", len(pkgs))
	return s, nil
}

func (m *Manager) switchDate(ctx context.Context, s *Session, date time.Time) error {
	pkgs, err := s.store.LoadRoute(ctx, s.driverID, date)
	if err != nil && len(pkgs) == 0 {
		return err
	}
	m.logger.Info("session switched date",
		"driver_id", s.driverID.String(), "date", date.Format(route.DateLayout), "packages", len(pkgs))
	return nil
}

// Get returns the open session of driverID.
func (m *Manager) Get(driverID kernel.UUID) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[driverID]
	m.mu.Unlock()
	if !ok {
		return nil, errs.NewObjectNotFoundError("session", driverID)
	}
	s.touch(m.now())
	return s, nil
}

// Current returns the session of the driver authenticated on ctx.
func (m *Manager) Current(ctx context.Context, sc ports.SessionContext) (*Session, error) {
	driverID, ok := sc.CurrentDriverID(ctx)
	if !ok {
		return nil, ErrNoDriver
	}
	return m.Get(driverID)
}

// End tears the driver's session down. Ending a session that is not open is
// not an error.
func (m *Manager) End(driverID kernel.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[driverID]
	delete(m.sessions, driverID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.stop(s, "ended")
}

func (m *Manager) stop(s *Session, reason string) error {
	err := s.reconciler.Stop()
	m.metrics.SessionClosed()
	m.logger.Info("session closed", "driver_id", s.driverID.String(), "reason", reason)
	return err
}

// ReapIdle ends every session unused for longer than the idle TTL and returns
// how many were ended.
func (m *Manager) ReapIdle() (int, error) {
	if m.cfg.IdleTTL <= 0 {
		return 0, nil
	}
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	var stopErrs []error
	for _, s := range idle {
		if err := m.stop(s, "idle"); err != nil {
			stopErrs = append(stopErrs, err)
		}
	}
	return len(idle), errors.Join(stopErrs...)
}

// RefreshAll asks every open session to re-list and refresh its route. It
// picks up packages added since the session opened and changes whose
// notification was lost.
func (m *Manager) RefreshAll() int {
	sessions := m.snapshot()
	for _, s := range sessions {
		s.Refresh()
	}
	return len(sessions)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Close ends every session and rejects further Open calls.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[kernel.UUID]*Session)
	m.mu.Unlock()

	var stopErrs []error
	for _, s := range sessions {
		if err := m.stop(s, "shutdown"); err != nil {
			stopErrs = append(stopErrs, err)
		}
	}
	return errors.Join(stopErrs...)
}
