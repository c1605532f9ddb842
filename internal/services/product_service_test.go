package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/repositories"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) CreateProduct(ctx context.Context, executor repositories.SQLExecutor, product *models.Product) (int64, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProductRepository) GetProductByID(ctx context.Context, executor repositories.SQLExecutor, productID int64) (*models.Product, error) {
	args := m.Called(ctx, productID)
	if p := args.Get(0); p != nil {
		return p.(*models.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProductRepository) GetProducts(ctx context.Context, establishmentID int64, filters models.ProductFilters) ([]models.Product, error) {
	args := m.Called(ctx, establishmentID, filters)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) UpdateProduct(ctx context.Context, executor repositories.SQLExecutor, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) DeleteProduct(ctx context.Context, executor repositories.SQLExecutor, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

// passthroughTx runs fn without a real transaction.
type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

func (passthroughTx) WithinReadTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

var managerSession = models.Session{EstablishmentID: 1, UserID: 1, Role: models.RoleManager}

func beer() *models.Product {
	return &models.Product{ID: 10, EstablishmentID: 1, Name: "Heineken 600ml", Category: "drinks", Price: mustDecimal("18.00"), IsAvailable: true}
}

func TestProductService_GetProductWithCache(t *testing.T) {
	cached, err := json.Marshal(beer())
	require.NoError(t, err)

	tests := []struct {
		name       string
		setupMocks func(*MockProductRepository, *MockRedisClient)
		wantErr    error
	}{
		{
			name: "cache hit skips the database",
			setupMocks: func(repo *MockProductRepository, cache *MockRedisClient) {
				cache.On("Get", mock.Anything, "product:10").Return(redis.NewStringResult(string(cached), nil))
			},
		},
		{
			name: "cache miss reads through and fills the cache",
			setupMocks: func(repo *MockProductRepository, cache *MockRedisClient) {
				cache.On("Get", mock.Anything, "product:10").Return(redis.NewStringResult("", redis.Nil))
				repo.On("GetProductByID", mock.Anything, int64(10)).Return(beer(), nil)
				cache.On("Set", mock.Anything, "product:10", mock.Anything, time.Minute).Return(redis.NewStatusResult("OK", nil))
			},
		},
		{
			name: "cache outage falls back to the database",
			setupMocks: func(repo *MockProductRepository, cache *MockRedisClient) {
				cache.On("Get", mock.Anything, "product:10").Return(redis.NewStringResult("", errors.New("connection refused")))
				repo.On("GetProductByID", mock.Anything, int64(10)).Return(beer(), nil)
				cache.On("Set", mock.Anything, "product:10", mock.Anything, time.Minute).Return(redis.NewStatusResult("", errors.New("connection refused")))
			},
		},
		{
			name: "unknown product",
			setupMocks: func(repo *MockProductRepository, cache *MockRedisClient) {
				cache.On("Get", mock.Anything, "product:10").Return(redis.NewStringResult("", redis.Nil))
				repo.On("GetProductByID", mock.Anything, int64(10)).Return(nil, repositories.ErrNotFound)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockProductRepository)
			cache := new(MockRedisClient)
			tt.setupMocks(repo, cache)
			svc := NewProductService(repo, passthroughTx{}, cache, time.Minute, time.Second)

			product, err := svc.GetProduct(context.Background(), managerSession, 10)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "Heineken 600ml", product.Name)
				assert.True(t, product.Price.Equal(mustDecimal("18")))
			}
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestProductService_GetProductChecksTenant(t *testing.T) {
	repo := new(MockProductRepository)
	repo.On("GetProductByID", mock.Anything, int64(10)).Return(beer(), nil)
	svc := NewProductService(repo, passthroughTx{}, nil, time.Minute, time.Second)

	_, err := svc.GetProduct(context.Background(), otherTenant, 10)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestProductService_CreateProductValidation(t *testing.T) {
	svc := NewProductService(new(MockProductRepository), passthroughTx{}, nil, time.Minute, time.Second)

	tests := []struct {
		name string
		req  ProductRequest
	}{
		{"missing name", ProductRequest{Category: "food", Price: mustDecimal("10")}},
		{"missing category", ProductRequest{Name: "Fries", Price: mustDecimal("10")}},
		{"zero price", ProductRequest{Name: "Fries", Category: "food"}},
		{"negative price", ProductRequest{Name: "Fries", Category: "food", Price: mustDecimal("-1")}},
		{"sub-cent price", ProductRequest{Name: "Fries", Category: "food", Price: mustDecimal("10.005")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(context.Background(), managerSession, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestProductService_CreateProduct(t *testing.T) {
	repo := new(MockProductRepository)
	repo.On("CreateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).Return(int64(42), nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Product).ID = 42
	})
	svc := NewProductService(repo, passthroughTx{}, nil, time.Minute, time.Second)

	product, err := svc.CreateProduct(context.Background(), managerSession, ProductRequest{
		Name: "  Batata Frita ", Category: "food", Price: mustDecimal("35.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), product.ID)
	assert.Equal(t, "Batata Frita", product.Name)
	assert.Equal(t, int64(1), product.EstablishmentID)
	assert.True(t, product.IsAvailable, "new products default to available")
	repo.AssertExpectations(t)
}

func TestProductService_CreateProductDuplicate(t *testing.T) {
	repo := new(MockProductRepository)
	repo.On("CreateProduct", mock.Anything, mock.Anything).Return(int64(0), repositories.ErrDuplicateKey)
	svc := NewProductService(repo, passthroughTx{}, nil, time.Minute, time.Second)

	_, err := svc.CreateProduct(context.Background(), managerSession, ProductRequest{Name: "Fries", Category: "food", Price: mustDecimal("9.90")})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestProductService_UpdateInvalidatesCache(t *testing.T) {
	repo := new(MockProductRepository)
	cache := new(MockRedisClient)
	available := false
	repo.On("GetProductByID", mock.Anything, int64(10)).Return(beer(), nil)
	repo.On("UpdateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)
	cache.On("Del", mock.Anything, []string{"product:10"}).Return(redis.NewIntResult(1, nil))
	svc := NewProductService(repo, passthroughTx{}, cache, time.Minute, time.Second)

	product, err := svc.UpdateProduct(context.Background(), managerSession, 10, ProductRequest{
		Name: "Heineken 600ml", Category: "drinks", Price: mustDecimal("19.50"), IsAvailable: &available,
	})
	require.NoError(t, err)
	assert.False(t, product.IsAvailable)
	assert.True(t, product.Price.Equal(mustDecimal("19.5")))
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestProductService_DeleteProduct(t *testing.T) {
	repo := new(MockProductRepository)
	cache := new(MockRedisClient)
	repo.On("GetProductByID", mock.Anything, int64(10)).Return(beer(), nil)
	repo.On("DeleteProduct", mock.Anything, int64(10)).Return(nil)
	cache.On("Del", mock.Anything, []string{"product:10"}).Return(redis.NewIntResult(1, nil))
	svc := NewProductService(repo, passthroughTx{}, cache, time.Minute, time.Second)

	require.NoError(t, svc.DeleteProduct(context.Background(), managerSession, 10))
	assert.ErrorIs(t, svc.DeleteProduct(context.Background(), otherTenant, 10), ErrForbidden)
	repo.AssertNumberOfCalls(t, "DeleteProduct", 1)
}

func TestProductService_OrderLinePriceIgnoresStaleCache(t *testing.T) {
	repo := new(MockProductRepository)
	cache := new(MockRedisClient)
	stale, err := json.Marshal(beer())
	require.NoError(t, err)

	repriced := beer()
	repriced.Price = mustDecimal("20.00")
	repo.On("GetProductByID", mock.Anything, int64(10)).Return(beer(), nil).Once()
	repo.On("UpdateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)
	cache.On("Del", mock.Anything, []string{"product:10"}).Return(redis.NewIntResult(0, errors.New("connection reset")))
	cache.On("Get", mock.Anything, "product:10").Return(redis.NewStringResult(string(stale), nil))
	repo.On("GetProductByID", mock.Anything, int64(10)).Return(repriced, nil).Once()
	products := NewProductService(repo, passthroughTx{}, cache, time.Minute, time.Second)

	ctx := context.Background()
	_, err = products.UpdateProduct(ctx, managerSession, 10, ProductRequest{
		Name: "Heineken 600ml", Category: "drinks", Price: mustDecimal("20.00"),
	})
	require.NoError(t, err)

	// the menu read may still serve the old entry until the TTL runs out
	menu, err := products.GetProduct(ctx, managerSession, 10)
	require.NoError(t, err)
	assertMoney(t, "18.00", menu.Price)

	store := newMemStore()
	store.addTable(1, 1, "1")
	ledger := NewLedgerService(store, store, store, store, products, store, nil, time.Second)

	line, err := ledger.AddOrderLine(ctx, waiterSession, 1, AddOrderLineRequest{ProductID: 10, Quantity: 1})
	require.NoError(t, err)
	assertMoney(t, "20.00", line.UnitPrice, "the line is priced from the committed row")
	repo.AssertExpectations(t)
}

func TestProductService_OrderableProductChecksTenant(t *testing.T) {
	repo := new(MockProductRepository)
	repo.On("GetProductByID", mock.Anything, int64(10)).Return(beer(), nil)
	svc := NewProductService(repo, passthroughTx{}, new(MockRedisClient), time.Minute, time.Second)

	_, err := svc.OrderableProduct(context.Background(), nil, otherTenant, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	repo.On("GetProductByID", mock.Anything, int64(404)).Return(nil, repositories.ErrNotFound)
	_, err = svc.OrderableProduct(context.Background(), nil, managerSession, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
