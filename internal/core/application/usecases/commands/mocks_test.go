package commands_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"routesync/internal/core/application/usecases/commands"
	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/core/domain/model/scan"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/errs"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderStore struct{ mock.Mock }

func (m *MockOrderStore) Find(orderID kernel.UUID) (*order.Order, bool) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*order.Order), args.Bool(1)
}

func (m *MockOrderStore) ApplyTransition(
	ctx context.Context, orderID kernel.UUID, from, to order.Status, origin order.Origin,
) (*order.Order, error) {
	args := m.Called(ctx, orderID, from, to, origin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderStore) CompleteDelivery(ctx context.Context, record delivery.Record) (*order.Order, bool, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*order.Order), args.Bool(1), args.Error(2)
}

type MockOrderLookup struct{ mock.Mock }

func (m *MockOrderLookup) FindOrder(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderLookup) FindOrderByNumber(ctx context.Context, number string) (*order.Order, scan.Fingerprint, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, scan.Fingerprint{}, args.Error(2)
	}
	return args.Get(0).(*order.Order), args.Get(1).(scan.Fingerprint), args.Error(2)
}

type MockAssetStorage struct{ mock.Mock }

func (m *MockAssetStorage) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	args := m.Called(ctx, path, data, contentType)
	return args.Error(0)
}

func (m *MockAssetStorage) PublicURL(path string) string {
	return "https://assets.test/" + path
}

func (m *MockAssetStorage) Download(ctx context.Context, path string) (ports.Asset, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(ports.Asset), args.Error(1)
}

type MockOrderRepository struct{ mock.Mock }

func (m *MockOrderRepository) Add(ctx context.Context, o *order.Order, fingerprint string) error {
	args := m.Called(ctx, o, fingerprint)
	return args.Error(0)
}

func (m *MockOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, scan.Fingerprint, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, scan.Fingerprint{}, args.Error(2)
	}
	return args.Get(0).(*order.Order), args.Get(1).(scan.Fingerprint), args.Error(2)
}

func (m *MockOrderRepository) GetMany(ctx context.Context, ids []kernel.UUID) ([]*order.Order, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) CompareAndSetStatus(ctx context.Context, id kernel.UUID, from, to order.Status) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

type MockPackageRepository struct{ mock.Mock }

func (m *MockPackageRepository) Add(ctx context.Context, pkg *route.Package) error {
	args := m.Called(ctx, pkg)
	return args.Error(0)
}

func (m *MockPackageRepository) Get(ctx context.Context, id kernel.UUID) (*route.Package, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*route.Package), args.Error(1)
}

func (m *MockPackageRepository) ListByDriverAndDate(ctx context.Context, driverID kernel.UUID, date time.Time) ([]*route.Package, error) {
	args := m.Called(ctx, driverID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*route.Package), args.Error(1)
}

func (m *MockPackageRepository) AppendOrder(ctx context.Context, packageID, orderID kernel.UUID) error {
	args := m.Called(ctx, packageID, orderID)
	return args.Error(0)
}

type MockDispatchUoW struct{ mock.Mock }

func (m *MockDispatchUoW) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDispatchUoW) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDispatchUoW) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDispatchUoW) OrderRepository() ports.OrderRepository {
	args := m.Called()
	return args.Get(0).(ports.OrderRepository)
}

func (m *MockDispatchUoW) PackageRepository() ports.PackageRepository {
	args := m.Called()
	return args.Get(0).(ports.PackageRepository)
}

type MockDispatchUoWFactory struct{ mock.Mock }

func (m *MockDispatchUoWFactory) Create() commands.DispatchUoW {
	args := m.Called()
	return args.Get(0).(commands.DispatchUoW)
}

func newCustomer(t *testing.T) order.Customer {
	t.Helper()
	c, err := order.NewCustomer("Jane Doe", "Damrak 1, Amsterdam", "+31 20 000 0000", nil)
	require.NoError(t, err)
	return c
}

func newOrder(t *testing.T, number string, status order.Status) *order.Order {
	t.Helper()
	o, err := order.RestoreOrder(order.Attributes{
		ID:       kernel.NewUUID(),
		Number:   number,
		Type:     order.Dropoff,
		Status:   status,
		Customer: newCustomer(t),
	})
	require.NoError(t, err)
	return o
}

func fingerprintFor(t *testing.T, number string) scan.Fingerprint {
	t.Helper()
	stored, err := scan.NewFingerprint(number, "Jane Doe", nil)
	require.NoError(t, err)
	return scan.ParseFingerprint(stored)
}

func newPhotos(t *testing.T, n int) []delivery.Photo {
	t.Helper()
	out := make([]delivery.Photo, 0, n)
	for i := range n {
		p, err := delivery.NewPhoto("IMG.jpg", "image/jpeg", []byte{0xff, 0xd8, byte(i)})
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

// memoryBackend is an in-memory system of record with compare-and-set
// semantics, used for end-to-end flows through a real order store.
type memoryBackend struct {
	mu           sync.Mutex
	orders       map[kernel.UUID]*order.Order
	fingerprints map[string]string
	packages     map[kernel.UUID][]kernel.UUID
	records      map[kernel.UUID]delivery.Record
	commits      int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		orders:       make(map[kernel.UUID]*order.Order),
		fingerprints: make(map[string]string),
		packages:     make(map[kernel.UUID][]kernel.UUID),
		records:      make(map[kernel.UUID]delivery.Record),
	}
}

func (b *memoryBackend) put(t *testing.T, packageID kernel.UUID, o *order.Order) {
	t.Helper()
	fp, err := scan.NewFingerprint(o.Number(), o.Customer().Name(), nil)
	require.NoError(t, err)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID()] = o.Clone()
	b.fingerprints[o.Number()] = fp
	b.packages[packageID] = append(b.packages[packageID], o.ID())
}

func (b *memoryBackend) FindOrder(_ context.Context, id kernel.UUID) (*order.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return nil, errNotFound(id.String())
	}
	return o.Clone(), nil
}

func (b *memoryBackend) FindOrderByNumber(_ context.Context, number string) (*order.Order, scan.Fingerprint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.Number() == number {
			return o.Clone(), scan.ParseFingerprint(b.fingerprints[number]), nil
		}
	}
	return nil, scan.Fingerprint{}, errNotFound(number)
}

func (b *memoryBackend) ListPackages(context.Context, kernel.UUID, time.Time) ([]*route.Package, error) {
	return nil, nil
}

func (b *memoryBackend) ListPackageOrders(_ context.Context, packageID kernel.UUID) ([]*order.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*order.Order, 0)
	for _, id := range b.packages[packageID] {
		out = append(out, b.orders[id].Clone())
	}
	return out, nil
}

func (b *memoryBackend) CompareAndSetStatus(_ context.Context, id kernel.UUID, from, to order.Status) (order.Status, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return order.Unknown, false, errNotFound(id.String())
	}
	if o.Status() != from {
		return o.Status(), false, nil
	}
	b.orders[id] = o.WithStatus(to)
	return to, true, nil
}

func (b *memoryBackend) CompleteDelivery(_ context.Context, record delivery.Record) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[record.OrderID()]
	if !ok {
		return false, errNotFound(record.OrderID().String())
	}
	if o.Status() == order.Delivered {
		return true, nil
	}
	if _, err := o.Clone().Transition(order.Processing, order.Delivered); err != nil {
		return false, err
	}
	b.orders[o.ID()] = o.WithStatus(order.Delivered)
	b.records[o.ID()] = record
	b.commits++
	return false, nil
}

func (b *memoryBackend) status(id kernel.UUID) order.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orders[id].Status()
}

// memoryStorage records uploads.
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (s *memoryStorage) Upload(_ context.Context, path string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
	s.uploads = append(s.uploads, path)
	return nil
}

func (s *memoryStorage) PublicURL(path string) string {
	return "https://assets.test/" + path
}

func (s *memoryStorage) Download(_ context.Context, path string) (ports.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return ports.Asset{}, errNotFound(path)
	}
	return ports.Asset{Path: path, Data: data}, nil
}

func errNotFound(id string) error {
	return errs.NewObjectNotFoundError("order", id)
}
