package assetstore_test

import (
	"context"
	"testing"

	"routesync/internal/adapters/out/assetstore"
	"routesync/internal/adapters/out/postgres/pgtest"
	"routesync/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
)

type AssetStoreIntegrationTestSuite struct {
	suite.Suite
	pg    *pgtest.Database
	store *assetstore.GormStore
}

func (suite *AssetStoreIntegrationTestSuite) SetupSuite() {
	pg, err := pgtest.Start(context.Background())
	suite.Require().NoError(err)
	suite.pg = pg

	suite.store = assetstore.NewGormStore(pg.DB, "http://localhost:8080/assets/")
	suite.Require().NoError(suite.store.Migrate(context.Background()))
}

func (suite *AssetStoreIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.pg.Truncate("assets"))
}

func (suite *AssetStoreIntegrationTestSuite) TearDownSuite() {
	suite.Require().NoError(suite.pg.Terminate())
}

func (suite *AssetStoreIntegrationTestSuite) TestUploadOverwritesSamePath() {
	ctx := context.Background()
	path := "delivery-photos/order-1/abc.jpg"

	suite.Require().NoError(suite.store.Upload(ctx, path, []byte("first"), "image/jpeg"))
	suite.Require().NoError(suite.store.Upload(ctx, path, []byte("second"), "image/jpeg"))

	asset, err := suite.store.Download(ctx, path)
	suite.Require().NoError(err)
	suite.Equal([]byte("second"), asset.Data)
	suite.Equal("image/jpeg", asset.ContentType)

	var count int64
	suite.Require().NoError(suite.pg.DB.Model(&assetstore.AssetDTO{}).Count(&count).Error)
	suite.EqualValues(1, count)
}

func (suite *AssetStoreIntegrationTestSuite) TestDownloadUnknown() {
	_, err := suite.store.Download(context.Background(), "delivery-photos/none.jpg")

	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *AssetStoreIntegrationTestSuite) TestUploadRequiresPath() {
	err := suite.store.Upload(context.Background(), "/", []byte("x"), "image/jpeg")

	suite.Require().ErrorIs(err, errs.ErrValueIsRequired)
}

func (suite *AssetStoreIntegrationTestSuite) TestPublicURL() {
	suite.Equal("http://localhost:8080/assets/delivery-photos/order-1/abc.jpg",
		suite.store.PublicURL("delivery-photos/order-1/abc.jpg"))
}

func TestAssetStoreIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(AssetStoreIntegrationTestSuite))
}
