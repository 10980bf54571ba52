package http_test

import (
	"context"
	"sync"
	"time"

	"routesync/internal/core/application/usecases/commands"
	"routesync/internal/core/application/usecases/queries"
	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/driver"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/core/domain/model/scan"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/errs"

	"github.com/stretchr/testify/mock"
)

type memoryBackend struct {
	mu           sync.Mutex
	drivers      map[kernel.UUID]*driver.Driver
	orders       map[kernel.UUID]*order.Order
	fingerprints map[kernel.UUID]string
	packages     []*route.Package
	records      map[kernel.UUID]delivery.Record
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		drivers:      make(map[kernel.UUID]*driver.Driver),
		orders:       make(map[kernel.UUID]*order.Order),
		fingerprints: make(map[kernel.UUID]string),
		records:      make(map[kernel.UUID]delivery.Record),
	}
}

func (b *memoryBackend) FindOrder(_ context.Context, id kernel.UUID) (*order.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return nil, errs.NewObjectNotFoundError("order", id)
	}
	return o.Clone(), nil
}

func (b *memoryBackend) FindOrderByNumber(_ context.Context, number string) (*order.Order, scan.Fingerprint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, o := range b.orders {
		if o.Number() == number {
			return o.Clone(), scan.ParseFingerprint(b.fingerprints[id]), nil
		}
	}
	return nil, scan.Fingerprint{}, errs.NewObjectNotFoundError("order number", number)
}

func (b *memoryBackend) ListPackages(_ context.Context, driverID kernel.UUID, date time.Time) ([]*route.Package, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*route.Package
	for _, p := range b.packages {
		if p.DriverID() == driverID && p.Date().Equal(route.Day(date)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *memoryBackend) ListPackageOrders(_ context.Context, packageID kernel.UUID) ([]*order.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.packages {
		if p.ID() != packageID {
			continue
		}
		out := make([]*order.Order, 0, len(p.Sequence()))
		for _, id := range p.Sequence() {
			out = append(out, b.orders[id].Clone())
		}
		return out, nil
	}
	return nil, errs.NewObjectNotFoundError("package", packageID)
}

func (b *memoryBackend) CompareAndSetStatus(
	_ context.Context, id kernel.UUID, from, to order.Status,
) (order.Status, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return order.Unknown, false, errs.NewObjectNotFoundError("order", id)
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
		return false, errs.NewObjectNotFoundError("order", record.OrderID())
	}
	if o.Status() == order.Delivered {
		return true, nil
	}
	if _, err := o.Transition(order.Processing, order.Delivered); err != nil {
		return false, err
	}
	b.orders[o.ID()] = o
	b.records[o.ID()] = record
	return false, nil
}

func (b *memoryBackend) FindDriver(_ context.Context, id kernel.UUID) (*driver.Driver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.drivers[id]
	if !ok {
		return nil, errs.NewObjectNotFoundError("driver", id)
	}
	return d, nil
}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() error { return nil }

type nopFeed struct{}

func (nopFeed) Subscribe(context.Context, ports.Stream, ports.Filter, ports.NotificationHandler) (ports.Subscription, error) {
	return nopSubscription{}, nil
}

type memoryAssets struct {
	mu      sync.Mutex
	objects map[string]ports.Asset
}

func newMemoryAssets() *memoryAssets {
	return &memoryAssets{objects: make(map[string]ports.Asset)}
}

func (s *memoryAssets) Upload(_ context.Context, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = ports.Asset{Path: path, ContentType: contentType, Data: data}
	return nil
}

func (s *memoryAssets) PublicURL(path string) string {
	return "http://routesync.test/assets/" + path
}

func (s *memoryAssets) Download(_ context.Context, path string) (ports.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.objects[path]
	if !ok {
		return ports.Asset{}, errs.NewObjectNotFoundError("asset", path)
	}
	return a, nil
}

type MockOrderCreator struct{ mock.Mock }

func (m *MockOrderCreator) Handle(ctx context.Context, cmd commands.CreateOrderCommand) (kernel.UUID, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(kernel.UUID), args.Error(1)
}

type MockOrderCanceller struct{ mock.Mock }

func (m *MockOrderCanceller) Handle(ctx context.Context, cmd commands.CancelOrderCommand) (*order.Order, error) {
	args := m.Called(ctx, cmd)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

type MockDeliveryRecordReader struct{ mock.Mock }

func (m *MockDeliveryRecordReader) Handle(
	ctx context.Context, query queries.GetDeliveryRecordQuery,
) (queries.GetDeliveryRecordQueryResponse, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(queries.GetDeliveryRecordQueryResponse), args.Error(1)
}
