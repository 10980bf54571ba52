package orderrepo_test

import (
	"context"
	"testing"
	"time"

	"routesync/internal/adapters/out/postgres/orderrepo"
	"routesync/internal/adapters/out/postgres/pgtest"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/scan"
	"routesync/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// OrderRepositoryIntegrationTestSuite runs the order repository against PostgreSQL.
type OrderRepositoryIntegrationTestSuite struct {
	suite.Suite
	pg         *pgtest.Database
	repository *orderrepo.GormOrderRepository
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupSuite() {
	pg, err := pgtest.Start(context.Background())
	suite.Require().NoError(err)
	suite.pg = pg

	suite.Require().NoError(pg.DB.AutoMigrate(&orderrepo.OrderDTO{}))
	suite.repository = orderrepo.NewGormOrderRepository(pg.DB)
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.pg.Truncate("orders"))
}

func (suite *OrderRepositoryIntegrationTestSuite) TearDownSuite() {
	suite.Require().NoError(suite.pg.Terminate())
}

func (suite *OrderRepositoryIntegrationTestSuite) newOrder(number string, status order.Status) *order.Order {
	loc, err := kernel.NewGeoPoint(52.3731, 4.8922)
	suite.Require().NoError(err)
	customer, err := order.NewCustomer("Jane Doe", "Damrak 1, Amsterdam", "+31 20 000 0000", &loc)
	suite.Require().NoError(err)
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	window, err := order.NewTimeWindow(start, start.Add(2*time.Hour))
	suite.Require().NoError(err)
	shirt, err := order.NewItem("Shirt", 2)
	suite.Require().NoError(err)
	socks, err := order.NewItem("Socks", 1)
	suite.Require().NoError(err)

	o, err := order.RestoreOrder(order.Attributes{
		ID:                  kernel.NewUUID(),
		Number:              number,
		Type:                order.Dropoff,
		Status:              status,
		Customer:            customer,
		Window:              window,
		Items:               []order.Item{shirt, socks},
		SpecialInstructions: "Ring twice",
	})
	suite.Require().NoError(err)
	return o
}

func (suite *OrderRepositoryIntegrationTestSuite) add(o *order.Order) {
	fp, err := scan.NewFingerprint(o.Number(), o.Customer().Name(), nil)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.repository.Add(context.Background(), o, fp))
}

func (suite *OrderRepositoryIntegrationTestSuite) TestAdd_RoundTripsEveryField() {
	ctx := context.Background()
	o := suite.newOrder("ORD-100", order.Pending)
	suite.add(o)

	got, err := suite.repository.Get(ctx, o.ID())

	suite.Require().NoError(err)
	suite.Equal(o.Number(), got.Number())
	suite.Equal(order.Dropoff, got.Type())
	suite.Equal(order.Pending, got.Status())
	suite.Equal("Ring twice", got.SpecialInstructions())
	loc, ok := got.Customer().Location()
	suite.Require().True(ok)
	suite.InDelta(52.3731, loc.Latitude(), 1e-9)
	suite.True(o.Window().Start().Equal(got.Window().Start()))
	suite.True(o.Window().End().Equal(got.Window().End()))
	suite.Require().Len(got.Items(), 2)
	suite.Equal("Shirt", got.Items()[0].ProductName())
	suite.Equal("Socks", got.Items()[1].ProductName())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestAdd_DuplicateNumber_ReturnsConflict() {
	suite.add(suite.newOrder("ORD-100", order.Pending))

	err := suite.repository.Add(context.Background(), suite.newOrder("ORD-100", order.Pending), "")

	suite.Require().ErrorIs(err, errs.ErrConflict)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGet_NonExistentOrder_ReturnsNotFoundError() {
	_, err := suite.repository.Get(context.Background(), kernel.NewUUID())

	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGetByNumber_ReturnsStoredFingerprint() {
	o := suite.newOrder("ORD-100", order.Pending)
	suite.add(o)

	got, fp, err := suite.repository.GetByNumber(context.Background(), "ORD-100")

	suite.Require().NoError(err)
	suite.True(o.IsEqual(got))
	suite.Equal("ORD-100", fp.OrderNumber())

	_, _, err = suite.repository.GetByNumber(context.Background(), "ORD-404")
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGetMany_KeepsRequestedOrder() {
	first := suite.newOrder("ORD-1", order.Pending)
	second := suite.newOrder("ORD-2", order.Processing)
	suite.add(first)
	suite.add(second)

	got, err := suite.repository.GetMany(context.Background(), []kernel.UUID{second.ID(), kernel.NewUUID(), first.ID()})

	suite.Require().NoError(err)
	suite.Require().Len(got, 2)
	suite.Equal("ORD-2", got[0].Number())
	suite.Equal("ORD-1", got[1].Number())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestCompareAndSetStatus() {
	ctx := context.Background()
	o := suite.newOrder("ORD-100", order.Pending)
	suite.add(o)

	swapped, err := suite.repository.CompareAndSetStatus(ctx, o.ID(), order.Pending, order.Processing)
	suite.Require().NoError(err)
	suite.True(swapped)

	swapped, err = suite.repository.CompareAndSetStatus(ctx, o.ID(), order.Pending, order.Cancelled)
	suite.Require().NoError(err)
	suite.False(swapped)

	got, err := suite.repository.Get(ctx, o.ID())
	suite.Require().NoError(err)
	suite.Equal(order.Processing, got.Status())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestLegacyStatusesSurviveRoundTrip() {
	o := suite.newOrder("ORD-100", order.Shipped)
	suite.add(o)

	got, err := suite.repository.Get(context.Background(), o.ID())

	suite.Require().NoError(err)
	suite.Equal(order.Shipped, got.Status())
	suite.Equal(order.GroupInTransit, got.Status().DisplayGroup())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGetForUpdate_InsideTransaction() {
	ctx := context.Background()
	o := suite.newOrder("ORD-100", order.Processing)
	suite.add(o)

	err := suite.pg.DB.Transaction(func(tx *gorm.DB) error {
		got, err := orderrepo.NewGormOrderRepository(tx).GetForUpdate(ctx, o.ID())
		suite.Require().NoError(err)
		suite.Equal(order.Processing, got.Status())
		return nil
	})

	suite.Require().NoError(err)
}

func TestOrderRepositoryIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(OrderRepositoryIntegrationTestSuite))
}
