package orderstore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"routesync/internal/core/application/orderstore"
	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/pkg/errs"
	"routesync/internal/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackend struct{ mock.Mock }

func (m *MockBackend) FindOrder(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockBackend) ListPackages(ctx context.Context, driverID kernel.UUID, date time.Time) ([]*route.Package, error) {
	args := m.Called(ctx, driverID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*route.Package), args.Error(1)
}

func (m *MockBackend) ListPackageOrders(ctx context.Context, packageID kernel.UUID) ([]*order.Order, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockBackend) CompareAndSetStatus(
	ctx context.Context, id kernel.UUID, from, to order.Status,
) (order.Status, bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Get(0).(order.Status), args.Bool(1), args.Error(2)
}

func (m *MockBackend) CompleteDelivery(ctx context.Context, record delivery.Record) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func newOrder(t *testing.T, number string, status order.Status) *order.Order {
	t.Helper()
	c, err := order.NewCustomer("Jane Doe", "Damrak 1", "", nil)
	require.NoError(t, err)
	o, err := order.RestoreOrder(order.Attributes{
		ID:       kernel.NewUUID(),
		Number:   number,
		Type:     order.Dropoff,
		Status:   status,
		Customer: c,
	})
	require.NoError(t, err)
	return o
}

func newPackage(t *testing.T, driverID kernel.UUID, orders ...*order.Order) *route.Package {
	t.Helper()
	seq := make([]kernel.UUID, 0, len(orders))
	for _, o := range orders {
		seq = append(seq, o.ID())
	}
	p, err := route.NewPackage(kernel.NewUUID(), driverID, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), seq)
	require.NoError(t, err)
	return p
}

func loadedStore(t *testing.T, backend *MockBackend, orders ...*order.Order) (*orderstore.Store, kernel.UUID) {
	t.Helper()
	store := orderstore.NewStore(backend, nil, nil)
	pkgID := kernel.NewUUID()
	backend.On("ListPackageOrders", mock.Anything, pkgID).Return(orders, nil).Once()
	_, err := store.Refresh(t.Context(), pkgID)
	require.NoError(t, err)
	return store, pkgID
}

func TestStore_Snapshot(t *testing.T) {
	t.Run("should return empty slice for unknown package", func(t *testing.T) {
		store := orderstore.NewStore(new(MockBackend), nil, nil)

		snapshot := store.Snapshot(kernel.NewUUID())

		assert.NotNil(t, snapshot)
		assert.Empty(t, snapshot)
	})

	t.Run("should hand out copies", func(t *testing.T) {
		backend := new(MockBackend)
		o := newOrder(t, "ORD-1", order.Pending)
		store, pkgID := loadedStore(t, backend, o)

		first := store.Snapshot(pkgID)
		_, err := first[0].Transition(order.Pending, order.Processing)
		require.NoError(t, err)

		assert.Equal(t, order.Pending, store.Snapshot(pkgID)[0].Status())
	})
}

func TestStore_Refresh(t *testing.T) {
	t.Run("should replace snapshot in backend order", func(t *testing.T) {
		backend := new(MockBackend)
		a, b := newOrder(t, "ORD-1", order.Pending), newOrder(t, "ORD-2", order.Processing)
		store, pkgID := loadedStore(t, backend, a)

		backend.On("ListPackageOrders", mock.Anything, pkgID).Return([]*order.Order{b, a}, nil).Once()
		got, err := store.Refresh(t.Context(), pkgID)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "ORD-2", store.Snapshot(pkgID)[0].Number())
		found, ok := store.FindByNumber("ORD-2")
		require.True(t, ok)
		assert.Equal(t, b.ID(), found.ID())
	})

	t.Run("should keep last good snapshot on failure", func(t *testing.T) {
		backend := new(MockBackend)
		o := newOrder(t, "ORD-1", order.Pending)
		store, pkgID := loadedStore(t, backend, o)

		backend.On("ListPackageOrders", mock.Anything, pkgID).Return(nil, errors.New("connection refused")).Once()
		_, err := store.Refresh(t.Context(), pkgID)

		require.ErrorIs(t, err, errs.ErrTransient)
		require.Len(t, store.Snapshot(pkgID), 1)
		assert.Equal(t, o.ID(), store.Snapshot(pkgID)[0].ID())
	})

	t.Run("should clear stale mark after success", func(t *testing.T) {
		backend := new(MockBackend)
		store, pkgID := loadedStore(t, backend)
		store.MarkStale(pkgID, errors.New("timeout"))
		_, stale := store.Staleness(pkgID)
		require.True(t, stale)

		backend.On("ListPackageOrders", mock.Anything, pkgID).Return([]*order.Order{}, nil).Once()
		_, err := store.Refresh(t.Context(), pkgID)

		require.NoError(t, err)
		_, stale = store.Staleness(pkgID)
		assert.False(t, stale)
	})
}

func TestStore_ApplyTransition(t *testing.T) {
	t.Run("should reject illegal edge without backend call", func(t *testing.T) {
		backend := new(MockBackend)
		store := orderstore.NewStore(backend, nil, nil)
		id := kernel.NewUUID()

		_, err := store.ApplyTransition(t.Context(), id, order.Delivered, order.Pending, order.OriginRealtime)

		require.ErrorIs(t, err, order.ErrIllegalTransition)
		assert.Contains(t, err.Error(), id.String())
		backend.AssertNotCalled(t, "CompareAndSetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should apply and update snapshot", func(t *testing.T) {
		backend := new(MockBackend)
		o := newOrder(t, "ORD-1", order.Pending)
		store, pkgID := loadedStore(t, backend, o)
		var notified atomic.Int32
		cancel := store.Subscribe(func(id kernel.UUID) {
			if id == pkgID {
				notified.Add(1)
			}
		})
		defer cancel()

		backend.On("CompareAndSetStatus", mock.Anything, o.ID(), order.Pending, order.Processing).
			Return(order.Processing, true, nil).Once()
		updated, err := store.ApplyTransition(t.Context(), o.ID(), order.Pending, order.Processing, order.OriginScan)

		require.NoError(t, err)
		assert.Equal(t, order.Processing, updated.Status())
		assert.Equal(t, order.Processing, store.Snapshot(pkgID)[0].Status())
		assert.Equal(t, int32(1), notified.Load())
		backend.AssertExpectations(t)
	})

	t.Run("should no-op when target already stored", func(t *testing.T) {
		backend := new(MockBackend)
		o := newOrder(t, "ORD-1", order.Pending)
		store, pkgID := loadedStore(t, backend, o)

		backend.On("CompareAndSetStatus", mock.Anything, o.ID(), order.Pending, order.Processing).
			Return(order.Processing, false, nil).Once()
		updated, err := store.ApplyTransition(t.Context(), o.ID(), order.Pending, order.Processing, order.OriginScan)

		require.NoError(t, err)
		assert.Equal(t, order.Processing, updated.Status())
		assert.Equal(t, order.Processing, store.Snapshot(pkgID)[0].Status())
	})

	t.Run("should fail stale and sync actual status", func(t *testing.T) {
		backend := new(MockBackend)
		o := newOrder(t, "ORD-1", order.Pending)
		store, pkgID := loadedStore(t, backend, o)

		backend.On("CompareAndSetStatus", mock.Anything, o.ID(), order.Pending, order.Processing).
			Return(order.Cancelled, false, nil).Once()
		_, err := store.ApplyTransition(t.Context(), o.ID(), order.Pending, order.Processing, order.OriginScan)

		require.ErrorIs(t, err, order.ErrStaleTransition)
		require.ErrorIs(t, err, errs.ErrConflict)
		var te *order.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, order.Cancelled, te.Actual)
		assert.Equal(t, order.Cancelled, store.Snapshot(pkgID)[0].Status())
	})

	t.Run("should read back orders outside the cached route", func(t *testing.T) {
		backend := new(MockBackend)
		store := orderstore.NewStore(backend, nil, nil)
		o := newOrder(t, "ORD-9", order.Cancelled)

		backend.On("CompareAndSetStatus", mock.Anything, o.ID(), order.Pending, order.Cancelled).
			Return(order.Cancelled, true, nil).Once()
		backend.On("FindOrder", mock.Anything, o.ID()).Return(o, nil).Once()
		updated, err := store.ApplyTransition(t.Context(), o.ID(), order.Pending, order.Cancelled, order.OriginDispatcher)

		require.NoError(t, err)
		assert.Equal(t, order.Cancelled, updated.Status())
	})

	t.Run("should pass backend errors through", func(t *testing.T) {
		backend := new(MockBackend)
		store := orderstore.NewStore(backend, nil, nil)
		id := kernel.NewUUID()

		backend.On("CompareAndSetStatus", mock.Anything, id, order.Pending, order.Processing).
			Return(order.Unknown, false, errs.NewObjectNotFoundError("order", id.String())).Once()
		_, err := store.ApplyTransition(t.Context(), id, order.Pending, order.Processing, order.OriginScan)

		require.ErrorIs(t, err, errs.ErrObjectNotFound)
	})
}

func TestStore_LoadRoute(t *testing.T) {
	t.Run("should load packages and mark failed ones stale", func(t *testing.T) {
		backend := new(MockBackend)
		store := orderstore.NewStore(backend, nil, nil)
		driverID := kernel.NewUUID()
		a, b := newOrder(t, "ORD-1", order.Pending), newOrder(t, "ORD-2", order.Pending)
		okPkg, badPkg := newPackage(t, driverID, a), newPackage(t, driverID, b)
		date := time.Date(2026, 10, 19, 15, 4, 0, 0, time.UTC)

		backend.On("ListPackages", mock.Anything, driverID, route.Day(date)).
			Return([]*route.Package{okPkg, badPkg}, nil).Once()
		backend.On("ListPackageOrders", mock.Anything, okPkg.ID()).Return([]*order.Order{a}, nil).Once()
		backend.On("ListPackageOrders", mock.Anything, badPkg.ID()).Return(nil, errors.New("timeout")).Once()

		pkgs, err := store.LoadRoute(t.Context(), driverID, date)

		require.Error(t, err)
		assert.Len(t, pkgs, 2)
		assert.Len(t, store.Packages(), 2)
		assert.Len(t, store.Snapshot(okPkg.ID()), 1)
		_, stale := store.Staleness(badPkg.ID())
		assert.True(t, stale)
		gotDriver, gotDate := store.Route()
		assert.Equal(t, driverID, gotDriver)
		assert.Equal(t, route.Day(date), gotDate)
	})

	t.Run("should return no packages when none refreshed", func(t *testing.T) {
		backend := new(MockBackend)
		store := orderstore.NewStore(backend, nil, nil)
		driverID := kernel.NewUUID()
		a, b := newOrder(t, "ORD-1", order.Pending), newOrder(t, "ORD-2", order.Pending)
		first, second := newPackage(t, driverID, a), newPackage(t, driverID, b)
		date := route.Day(time.Now())

		backend.On("ListPackages", mock.Anything, driverID, date).
			Return([]*route.Package{first, second}, nil).Once()
		backend.On("ListPackageOrders", mock.Anything, first.ID()).Return(nil, errors.New("timeout")).Once()
		backend.On("ListPackageOrders", mock.Anything, second.ID()).Return(nil, errors.New("timeout")).Once()

		pkgs, err := store.LoadRoute(t.Context(), driverID, date)

		require.ErrorIs(t, err, errs.ErrTransient)
		assert.Empty(t, pkgs)
		_, stale := store.Staleness(first.ID())
		assert.True(t, stale)
	})

	t.Run("should drop packages no longer assigned", func(t *testing.T) {
		backend := new(MockBackend)
		store := orderstore.NewStore(backend, nil, nil)
		driverID := kernel.NewUUID()
		o := newOrder(t, "ORD-1", order.Pending)
		pkg := newPackage(t, driverID, o)
		date := route.Day(time.Now())

		backend.On("ListPackages", mock.Anything, driverID, date).Return([]*route.Package{pkg}, nil).Once()
		backend.On("ListPackageOrders", mock.Anything, pkg.ID()).Return([]*order.Order{o}, nil).Once()
		_, err := store.LoadRoute(t.Context(), driverID, date)
		require.NoError(t, err)

		backend.On("ListPackages", mock.Anything, driverID, date).Return([]*route.Package{}, nil).Once()
		_, err = store.Relist(t.Context())
		require.NoError(t, err)

		assert.Empty(t, store.Snapshot(pkg.ID()))
		_, found := store.Find(o.ID())
		assert.False(t, found)
	})

	t.Run("should keep route when listing fails", func(t *testing.T) {
		backend := new(MockBackend)
		store, pkgID := loadedStore(t, backend, newOrder(t, "ORD-1", order.Pending))
		driverID := kernel.NewUUID()

		backend.On("ListPackages", mock.Anything, driverID, mock.Anything).Return(nil, errors.New("dns")).Once()
		_, err := store.LoadRoute(t.Context(), driverID, time.Now())

		require.ErrorIs(t, err, errs.ErrTransient)
		assert.Len(t, store.Snapshot(pkgID), 1)
	})

	t.Run("should refuse relist before first load", func(t *testing.T) {
		store := orderstore.NewStore(new(MockBackend), nil, nil)

		_, err := store.Relist(t.Context())

		require.ErrorIs(t, err, errs.ErrValueIsRequired)
	})
}

func newRecord(t *testing.T, orderID kernel.UUID) delivery.Record {
	t.Helper()
	r, err := delivery.RestoreRecord(orderID, "J. Doe", "", []string{"https://assets/a.jpg"}, time.Now())
	require.NoError(t, err)
	return r
}

func TestStore_CompleteDelivery(t *testing.T) {
	t.Run("should commit and mark delivered", func(t *testing.T) {
		backend := new(MockBackend)
		o := newOrder(t, "ORD-1", order.Processing)
		store, pkgID := loadedStore(t, backend, o)
		record := newRecord(t, o.ID())

		backend.On("CompleteDelivery", mock.Anything, record).Return(false, nil).Once()
		updated, already, err := store.CompleteDelivery(t.Context(), record)

		require.NoError(t, err)
		assert.False(t, already)
		assert.Equal(t, order.Delivered, updated.Status())
		assert.Equal(t, order.Delivered, store.Snapshot(pkgID)[0].Status())
	})

	t.Run("should treat already delivered as success", func(t *testing.T) {
		backend := new(MockBackend)
		o := newOrder(t, "ORD-1", order.Processing)
		store, pkgID := loadedStore(t, backend, o)
		record := newRecord(t, o.ID())

		backend.On("CompleteDelivery", mock.Anything, record).Return(true, nil).Once()
		_, already, err := store.CompleteDelivery(t.Context(), record)

		require.NoError(t, err)
		assert.True(t, already)
		assert.Equal(t, order.Delivered, store.Snapshot(pkgID)[0].Status())
	})

	t.Run("should sync actual status when commit is stale", func(t *testing.T) {
		backend := new(MockBackend)
		o := newOrder(t, "ORD-1", order.Processing)
		store, pkgID := loadedStore(t, backend, o)
		record := newRecord(t, o.ID())
		stale := order.NewStaleTransitionError(o.ID().String(), order.Processing, order.Delivered, order.Cancelled)

		backend.On("CompleteDelivery", mock.Anything, record).Return(false, stale).Once()
		_, _, err := store.CompleteDelivery(t.Context(), record)

		require.ErrorIs(t, err, order.ErrStaleTransition)
		assert.Equal(t, order.Cancelled, store.Snapshot(pkgID)[0].Status())
	})
}

// casBackend applies compare-and-set against an in-memory table.
type casBackend struct {
	mu       sync.Mutex
	statuses map[kernel.UUID]order.Status
	orders   []*order.Order
	swaps    atomic.Int32
	// listGate, when set, is closed by the test to let ListPackageOrders return.
	listGate    chan struct{}
	listStarted chan struct{}
}

func (b *casBackend) FindOrder(_ context.Context, id kernel.UUID) (*order.Order, error) {
	return nil, errs.NewObjectNotFoundError("order", id.String())
}

func (b *casBackend) ListPackages(context.Context, kernel.UUID, time.Time) ([]*route.Package, error) {
	return nil, nil
}

func (b *casBackend) ListPackageOrders(context.Context, kernel.UUID) ([]*order.Order, error) {
	b.mu.Lock()
	out := make([]*order.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o.WithStatus(b.statuses[o.ID()]))
	}
	gate, started := b.listGate, b.listStarted
	b.mu.Unlock()

	if gate != nil {
		close(started)
		<-gate
	}
	return out, nil
}

func (b *casBackend) CompleteDelivery(context.Context, delivery.Record) (bool, error) {
	return false, nil
}

func (b *casBackend) CompareAndSetStatus(_ context.Context, id kernel.UUID, from, to order.Status) (order.Status, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.statuses[id] != from {
		return b.statuses[id], false, nil
	}
	b.statuses[id] = to
	b.swaps.Add(1)
	return to, true, nil
}

func TestStore_ConcurrentTransitions(t *testing.T) {
	o := newOrder(t, "ORD-1", order.Pending)
	backend := &casBackend{statuses: map[kernel.UUID]order.Status{o.ID(): order.Pending}, orders: []*order.Order{o}}
	store := orderstore.NewStore(backend, nil, nil)
	pkgID := kernel.NewUUID()
	_, err := store.Refresh(t.Context(), pkgID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errsCh := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ApplyTransition(context.Background(), o.ID(), order.Pending, order.Processing, order.OriginScan)
			errsCh <- err
		}()
	}
	wg.Wait()
	close(errsCh)

	for err := range errsCh {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), backend.swaps.Load())
	assert.Equal(t, order.Processing, store.Snapshot(pkgID)[0].Status())
}

func TestStore_RefreshDoesNotRegressLocalTransition(t *testing.T) {
	o := newOrder(t, "ORD-1", order.Pending)
	backend := &casBackend{statuses: map[kernel.UUID]order.Status{o.ID(): order.Pending}, orders: []*order.Order{o}}
	store := orderstore.NewStore(backend, nil, nil)
	pkgID := kernel.NewUUID()
	_, err := store.Refresh(t.Context(), pkgID)
	require.NoError(t, err)

	backend.mu.Lock()
	backend.listGate = make(chan struct{})
	backend.listStarted = make(chan struct{})
	backend.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := store.Refresh(context.Background(), pkgID)
		done <- err
	}()
	<-backend.listStarted

	_, err = store.ApplyTransition(t.Context(), o.ID(), order.Pending, order.Processing, order.OriginScan)
	require.NoError(t, err)
	close(backend.listGate)
	require.NoError(t, <-done)

	assert.Equal(t, order.Processing, store.Snapshot(pkgID)[0].Status())
}

// gatedBackend holds every ListPackageOrders call until the test releases it.
type gatedBackend struct {
	casBackend
	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
	started     chan struct{}
	release     chan struct{}
}

func newGatedBackend(orders ...*order.Order) *gatedBackend {
	statuses := make(map[kernel.UUID]order.Status, len(orders))
	for _, o := range orders {
		statuses[o.ID()] = o.Status()
	}
	return &gatedBackend{
		casBackend: casBackend{statuses: statuses, orders: orders},
		started:    make(chan struct{}, 8),
		release:    make(chan struct{}),
	}
}

func (b *gatedBackend) ListPackageOrders(ctx context.Context, packageID kernel.UUID) ([]*order.Order, error) {
	out, _ := b.casBackend.ListPackageOrders(ctx, packageID)

	b.calls.Add(1)
	n := b.inflight.Add(1)
	for {
		peak := b.maxInflight.Load()
		if n <= peak || b.maxInflight.CompareAndSwap(peak, n) {
			break
		}
	}
	b.started <- struct{}{}
	<-b.release
	b.inflight.Add(-1)
	return out, nil
}

func (b *gatedBackend) setStatus(id kernel.UUID, status order.Status) {
	b.mu.Lock()
	b.statuses[id] = status
	b.mu.Unlock()
}

func coalescedRefreshes(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "routesync_refresh_requests_coalesced_total" {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestStore_RefreshSingleFlight(t *testing.T) {
	type outcome struct {
		orders []*order.Order
		err    error
	}

	t.Run("should run one fetch per package and repeat it once for callers that joined", func(t *testing.T) {
		o := newOrder(t, "ORD-1", order.Pending)
		backend := newGatedBackend(o)
		m := metrics.New()
		store := orderstore.NewStore(backend, nil, m)
		pkgID := kernel.NewUUID()

		results := make(chan outcome, 3)
		refresh := func() {
			orders, err := store.Refresh(context.Background(), pkgID)
			results <- outcome{orders: orders, err: err}
		}

		go refresh()
		<-backend.started

		// The first fetch has read pending; the order moves on before it lands.
		backend.setStatus(o.ID(), order.Cancelled)
		go refresh()
		go refresh()
		require.Eventually(t, func() bool { return coalescedRefreshes(t, m) == 2 }, time.Second, 5*time.Millisecond)

		backend.release <- struct{}{}
		<-backend.started
		backend.release <- struct{}{}

		for range 3 {
			r := <-results
			require.NoError(t, r.err)
			require.Len(t, r.orders, 1)
			assert.Equal(t, order.Cancelled, r.orders[0].Status())
		}
		assert.Equal(t, int32(2), backend.calls.Load())
		assert.Equal(t, int32(1), backend.maxInflight.Load())
		assert.Equal(t, order.Cancelled, store.Snapshot(pkgID)[0].Status())
	})

	t.Run("should not repeat a fetch nobody joined", func(t *testing.T) {
		o := newOrder(t, "ORD-1", order.Pending)
		backend := newGatedBackend(o)
		store := orderstore.NewStore(backend, nil, nil)
		pkgID := kernel.NewUUID()

		done := make(chan error, 1)
		go func() {
			_, err := store.Refresh(context.Background(), pkgID)
			done <- err
		}()
		<-backend.started
		backend.release <- struct{}{}

		require.NoError(t, <-done)
		assert.Equal(t, int32(1), backend.calls.Load())
	})

	t.Run("should let a waiting caller give up", func(t *testing.T) {
		o := newOrder(t, "ORD-1", order.Pending)
		backend := newGatedBackend(o)
		store := orderstore.NewStore(backend, nil, nil)
		pkgID := kernel.NewUUID()

		done := make(chan error, 1)
		go func() {
			_, err := store.Refresh(context.Background(), pkgID)
			done <- err
		}()
		<-backend.started

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := store.Refresh(ctx, pkgID)
		require.ErrorIs(t, err, context.Canceled)

		// The cancelled caller had still asked for a fresh read.
		backend.release <- struct{}{}
		<-backend.started
		backend.release <- struct{}{}
		require.NoError(t, <-done)
		assert.Equal(t, int32(2), backend.calls.Load())
	})
}
