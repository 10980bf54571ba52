package session

import (
	"log/slog"
	"sync"
	"time"

	"routesync/internal/core/application/orderstore"
	"routesync/internal/core/application/reconciler"
	"routesync/internal/core/application/usecases/commands"
	"routesync/internal/core/application/usecases/queries"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/scan"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/metrics"
)

// Session is one driver's working set: the order store of the route, the
// reconciler keeping it fresh, the scan log and the handlers bound to them.
type Session struct {
	driverID   kernel.UUID
	store      *orderstore.Store
	reconciler *reconciler.Reconciler
	scans      *scan.Log

	activate commands.ActivateOrderCommandHandler
	complete commands.CompleteDeliveryCommandHandler
	getRoute queries.GetRouteQueryHandler
	getOrder queries.GetOrderQueryHandler

	mu       sync.Mutex
	lastUsed time.Time
}

func newSession(
	driverID kernel.UUID,
	store *orderstore.Store,
	rec *reconciler.Reconciler,
	backend ports.OrderBackend,
	storage ports.AssetStorage,
	scanLimit int,
	logger *slog.Logger,
	m *metrics.Metrics,
	now time.Time,
) *Session {
	scans := scan.NewLog(scanLimit)
	return &Session{
		driverID:   driverID,
		store:      store,
		reconciler: rec,
		scans:      scans,
		activate:   commands.NewActivateOrderCommandHandler(backend, store, scans, logger, m),
		complete:   commands.NewCompleteDeliveryCommandHandler(store, storage, logger, m),
		getRoute:   queries.NewGetRouteQueryHandler(store),
		getOrder:   queries.NewGetOrderQueryHandler(store),
		lastUsed:   now,
	}
}

func (s *Session) DriverID() kernel.UUID { return s.driverID }

// Date returns the calendar day of the loaded route.
func (s *Session) Date() time.Time {
	_, date := s.store.Route()
	return date
}

func (s *Session) Store() *orderstore.Store { return s.store }

func (s *Session) ActivateOrder() commands.ActivateOrderCommandHandler { return s.activate }

func (s *Session) CompleteDelivery() commands.CompleteDeliveryCommandHandler { return s.complete }

func (s *Session) GetRoute() queries.GetRouteQueryHandler { return s.getRoute }

func (s *Session) GetOrder() queries.GetOrderQueryHandler { return s.getOrder }

// ScanEvents returns the scans of this session, oldest first.
func (s *Session) ScanEvents() []scan.Event { return s.scans.Events() }

// Refresh re-lists the route's packages and refreshes each of them in the
// background.
func (s *Session) Refresh() {
	s.reconciler.RequestRelist()
}

// Stale lists the packages whose snapshot is out of date.
func (s *Session) Stale() []kernel.UUID {
	var out []kernel.UUID
	for _, p := range s.store.Packages() {
		if _, stale := s.store.Staleness(p.ID()); stale {
			out = append(out, p.ID())
		}
	}
	return out
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
