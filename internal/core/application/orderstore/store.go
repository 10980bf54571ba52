// Package orderstore keeps a driver session's cached view of its route and is
// the only place where order status changes are applied.
//
// Readers get copies: Snapshot, Find and FindByNumber never block on I/O and
// never fail. Writers go through ApplyTransition, which checks the transition
// table, serializes per order, and relies on the backend's compare-and-set to
// settle races with other devices and the dispatcher. Refresh replaces a
// package snapshot with canonical backend state and keeps the last good one
// when the backend cannot be reached.
package orderstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/pkg/errs"
	"routesync/internal/pkg/metrics"
)

// Backend is the part of ports.OrderBackend the store needs.
type Backend interface {
	FindOrder(ctx context.Context, id kernel.UUID) (*order.Order, error)
	ListPackages(ctx context.Context, driverID kernel.UUID, date time.Time) ([]*route.Package, error)
	ListPackageOrders(ctx context.Context, packageID kernel.UUID) ([]*order.Order, error)
	CompareAndSetStatus(ctx context.Context, id kernel.UUID, from, to order.Status) (order.Status, bool, error)
	CompleteDelivery(ctx context.Context, record delivery.Record) (bool, error)
}

// Listener is told which package snapshot changed.
type Listener func(packageID kernel.UUID)

// Staleness describes a package whose snapshot could not be refreshed.
type Staleness struct {
	Since  time.Time
	Reason string
}

type Store struct {
	backend Backend
	logger  *slog.Logger
	metrics *metrics.Metrics
	locks   *keyedMutex
	now     func() time.Time

	mu        sync.RWMutex
	driverID  kernel.UUID
	date      time.Time
	packages  []*route.Package
	snapshots map[kernel.UUID][]*order.Order
	stale     map[kernel.UUID]Staleness
	// seq counts local transitions; touched records the seq of the last one per order.
	seq     uint64
	touched map[kernel.UUID]uint64

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int

	refreshMu  sync.Mutex
	refreshing map[kernel.UUID]*refreshFlight
}

// refreshFlight is the fetch in progress for one package.
type refreshFlight struct {
	rerun  bool
	done   chan struct{}
	orders []*order.Order
	err    error
}

func NewStore(backend Backend, logger *slog.Logger, m *metrics.Metrics) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:   backend,
		logger:    logger.With("component", "OrderStore"),
		metrics:   m,
		locks:     newKeyedMutex(),
		now:       time.Now,
		snapshots: make(map[kernel.UUID][]*order.Order),
		stale:     make(map[kernel.UUID]Staleness),
		touched:   make(map[kernel.UUID]uint64),
		listeners: make(map[int]Listener),

		refreshing: make(map[kernel.UUID]*refreshFlight),
	}
}

// Snapshot returns copies of the package's orders in delivery sequence.
// Unknown packages yield an empty slice.
func (s *Store) Snapshot(packageID kernel.UUID) []*order.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached := s.snapshots[packageID]
	out := make([]*order.Order, 0, len(cached))
	for _, o := range cached {
		out = append(out, o.Clone())
	}
	return out
}

// Packages returns the route's packages in the order they were listed.
func (s *Store) Packages() []*route.Package {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.packages)
}

// Route returns the driver and date of the last LoadRoute.
func (s *Store) Route() (kernel.UUID, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driverID, s.date
}

// Find returns a copy of the cached order.
func (s *Store) Find(orderID kernel.UUID) (*order.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pkg := range s.snapshots {
		for _, o := range pkg {
			if o.ID() == orderID {
				return o.Clone(), true
			}
		}
	}
	return nil, false
}

// FindByNumber returns a copy of the cached order with the given number.
func (s *Store) FindByNumber(number string) (*order.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pkg := range s.snapshots {
		for _, o := range pkg {
			if o.Number() == number {
				return o.Clone(), true
			}
		}
	}
	return nil, false
}

// ApplyTransition moves an order from -> to.
//
// A request whose target is already stored is a no-op success. A request
// whose from no longer matches fails with a stale TransitionError carrying
// the stored status. Edges outside the transition table fail without
// touching the backend.
func (s *Store) ApplyTransition(
	ctx context.Context, orderID kernel.UUID, from, to order.Status, origin order.Origin,
) (*order.Order, error) {
	log := s.logger.With("order_id", orderID.String(), "from", from.String(), "to", to.String(), "origin", origin.String())

	if err := order.ValidateTransition(from, to); err != nil {
		var te *order.TransitionError
		if errors.As(err, &te) {
			te.OrderID = orderID.String()
		}
		s.metrics.ObserveTransition(origin.String(), "illegal")
		log.Warn("rejected illegal transition")
		return nil, err
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	actual, swapped, err := s.backend.CompareAndSetStatus(ctx, orderID, from, to)
	if err != nil {
		s.metrics.ObserveTransition(origin.String(), "error")
		log.Error("compare-and-set failed", "error", err)
		return nil, fmt.Errorf("apply transition: %w", err)
	}

	if !swapped && actual != to {
		s.metrics.ObserveTransition(origin.String(), "stale")
		log.Info("transition lost to another origin", "actual", actual.String())
		s.syncStatus(orderID, actual)
		return nil, order.NewStaleTransitionError(orderID.String(), from, to, actual)
	}

	result := "applied"
	if !swapped {
		result = "noop"
	}
	s.metrics.ObserveTransition(origin.String(), result)
	log.Info("transition "+result)

	if updated, ok := s.syncStatus(orderID, to); ok {
		return updated, nil
	}

	// Not on the cached route; read it back so callers always get an order.
	o, err := s.backend.FindOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("apply transition: read back: %w", err)
	}
	return o, nil
}

// CompleteDelivery commits processing -> delivered together with the delivery
// record. An order the backend already holds as delivered is reported with
// alreadyDelivered and counts as success.
func (s *Store) CompleteDelivery(ctx context.Context, record delivery.Record) (*order.Order, bool, error) {
	orderID := record.OrderID()
	log := s.logger.With("order_id", orderID.String(), "origin", order.OriginCompletion.String())

	unlock := s.locks.Lock(orderID)
	defer unlock()

	alreadyDelivered, err := s.backend.CompleteDelivery(ctx, record)
	if err != nil {
		var te *order.TransitionError
		if errors.As(err, &te) && te.Kind == order.StaleTransition {
			s.syncStatus(orderID, te.Actual)
		}
		s.metrics.ObserveTransition(order.OriginCompletion.String(), "error")
		log.Error("commit failed", "error", err)
		return nil, false, fmt.Errorf("complete delivery: %w", err)
	}

	result := "applied"
	if alreadyDelivered {
		result = "noop"
	}
	s.metrics.ObserveTransition(order.OriginCompletion.String(), result)
	log.Info("delivery committed", "already_delivered", alreadyDelivered, "photos", len(record.PhotoRefs()))

	if updated, ok := s.syncStatus(orderID, order.Delivered); ok {
		return updated, alreadyDelivered, nil
	}
	o, err := s.backend.FindOrder(ctx, orderID)
	if err != nil {
		return nil, alreadyDelivered, fmt.Errorf("complete delivery: read back: %w", err)
	}
	return o, alreadyDelivered, nil
}

// syncStatus records a locally observed status in every snapshot holding the
// order and notifies listeners. It reports whether the order is cached.
func (s *Store) syncStatus(orderID kernel.UUID, status order.Status) (*order.Order, bool) {
	var (
		updated  *order.Order
		affected []kernel.UUID
	)

	s.mu.Lock()
	s.seq++
	s.touched[orderID] = s.seq
	for pkgID, pkg := range s.snapshots {
		for i, o := range pkg {
			if o.ID() != orderID {
				continue
			}
			if o.Status() != status {
				pkg[i] = o.WithStatus(status)
				affected = append(affected, pkgID)
			}
			updated = pkg[i].Clone()
		}
	}
	s.mu.Unlock()

	for _, pkgID := range affected {
		s.notify(pkgID)
	}
	return updated, updated != nil
}

// Refresh replaces the package snapshot with canonical backend state.
// On failure the previous snapshot stays and a transient error is returned.
//
// Each package has at most one fetch in flight. A call arriving during a
// fetch marks it for one more run and waits; after the running fetch lands
// it is repeated once for everyone who asked in the meantime, and all of
// them get the outcome of that last fetch.
func (s *Store) Refresh(ctx context.Context, packageID kernel.UUID) ([]*order.Order, error) {
	s.refreshMu.Lock()
	if f, ok := s.refreshing[packageID]; ok {
		f.rerun = true
		s.refreshMu.Unlock()
		s.metrics.ObserveCoalesced()

		select {
		case <-f.done:
			return cloneOrders(f.orders), f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &refreshFlight{done: make(chan struct{})}
	s.refreshing[packageID] = f
	s.refreshMu.Unlock()

	for {
		orders, err := s.fetch(ctx, packageID)

		s.refreshMu.Lock()
		if f.rerun {
			f.rerun = false
			s.refreshMu.Unlock()
			continue
		}
		delete(s.refreshing, packageID)
		f.orders, f.err = orders, err
		s.refreshMu.Unlock()

		close(f.done)
		return cloneOrders(orders), err
	}
}

// fetch reads the package from the backend and installs the snapshot.
func (s *Store) fetch(ctx context.Context, packageID kernel.UUID) ([]*order.Order, error) {
	s.mu.RLock()
	startSeq := s.seq
	s.mu.RUnlock()

	started := s.now()
	fetched, err := s.backend.ListPackageOrders(ctx, packageID)
	if err != nil {
		s.metrics.ObserveRefresh("error", s.now().Sub(started))
		s.logger.Warn("refresh failed, keeping last snapshot", "package_id", packageID.String(), "error", err)
		if errs.IsTransient(err) {
			return nil, err
		}
		return nil, errs.NewTransientError("refresh package "+packageID.String(), err)
	}
	s.metrics.ObserveRefresh("ok", s.now().Sub(started))

	s.mu.Lock()
	cached := s.snapshots[packageID]
	next := make([]*order.Order, 0, len(fetched))
	for _, o := range fetched {
		// A transition applied while the fetch was in flight is newer than the fetched row.
		if s.touched[o.ID()] > startSeq {
			if i := slices.IndexFunc(cached, func(c *order.Order) bool { return c.ID() == o.ID() }); i >= 0 {
				o = o.WithStatus(cached[i].Status())
			}
		}
		next = append(next, o.Clone())
	}
	s.snapshots[packageID] = next
	delete(s.stale, packageID)
	out := cloneOrders(next)
	s.mu.Unlock()

	s.notify(packageID)
	return out, nil
}

func cloneOrders(orders []*order.Order) []*order.Order {
	if orders == nil {
		return nil
	}
	out := make([]*order.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Clone())
	}
	return out
}

// LoadRoute lists the driver's packages for date and refreshes each of them.
// Packages that fail to refresh keep their previous snapshot and are marked
// stale; their errors are joined into the returned error. When no package
// refreshed, no packages are returned.
func (s *Store) LoadRoute(ctx context.Context, driverID kernel.UUID, date time.Time) ([]*route.Package, error) {
	pkgs, err := s.SyncPackages(ctx, driverID, date)
	if err != nil {
		return nil, err
	}

	var refreshErrs []error
	for _, p := range pkgs {
		if _, err := s.Refresh(ctx, p.ID()); err != nil {
			s.MarkStale(p.ID(), err)
			refreshErrs = append(refreshErrs, err)
		}
	}
	if len(pkgs) > 0 && len(refreshErrs) == len(pkgs) {
		return nil, errors.Join(refreshErrs...)
	}
	return pkgs, errors.Join(refreshErrs...)
}

// SyncPackages replaces the route's package list without refreshing orders.
// Snapshots of packages no longer assigned to the driver are dropped.
func (s *Store) SyncPackages(ctx context.Context, driverID kernel.UUID, date time.Time) ([]*route.Package, error) {
	date = route.Day(date)
	pkgs, err := s.backend.ListPackages(ctx, driverID, date)
	if err != nil {
		s.logger.Warn("listing packages failed, keeping route", "driver_id", driverID.String(), "error", err)
		if errs.IsTransient(err) {
			return nil, err
		}
		return nil, errs.NewTransientError("list packages", err)
	}

	s.mu.Lock()
	s.driverID = driverID
	s.date = date
	s.packages = slices.Clone(pkgs)
	listed := make(map[kernel.UUID]struct{}, len(pkgs))
	for _, p := range pkgs {
		listed[p.ID()] = struct{}{}
	}
	var dropped []kernel.UUID
	for id := range s.snapshots {
		if _, ok := listed[id]; !ok {
			delete(s.snapshots, id)
			delete(s.stale, id)
			dropped = append(dropped, id)
		}
	}
	s.mu.Unlock()

	for _, id := range dropped {
		s.notify(id)
	}
	return slices.Clone(pkgs), nil
}

// Relist repeats SyncPackages for the driver and date last loaded.
func (s *Store) Relist(ctx context.Context) ([]*route.Package, error) {
	driverID, date := s.Route()
	if driverID.Validate() != nil {
		return nil, errs.NewValueIsRequiredError("route: LoadRoute was never called")
	}
	return s.SyncPackages(ctx, driverID, date)
}

// MarkStale flags the package's snapshot as out of date. The snapshot is kept.
func (s *Store) MarkStale(packageID kernel.UUID, cause error) {
	reason := "refresh failed"
	if cause != nil {
		reason = cause.Error()
	}
	s.mu.Lock()
	if _, ok := s.stale[packageID]; !ok {
		s.stale[packageID] = Staleness{Since: s.now(), Reason: reason}
	}
	s.mu.Unlock()
	s.notify(packageID)
}

// Staleness reports whether the package is stale and since when.
func (s *Store) Staleness(packageID kernel.UUID) (Staleness, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stale[packageID]
	return st, ok
}

// Subscribe registers a listener called after every snapshot change. The
// returned func removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(packageID kernel.UUID) {
	s.listenersMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(packageID)
	}
}
