package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/repositories"
	"bar_backoffice/pkg/utils"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// ProductCache is the subset of *redis.Client the menu cache needs.
type ProductCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// --- Data Transfer Objects (DTOs) ---

// ProductRequest is used for creating and replacing a menu entry.
type ProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable *bool           `json:"is_available"`
	ImageURL    *string         `json:"image_url"`
}

// --- ProductService Interface ---
type ProductService interface {
	ProductLookup
	GetProduct(ctx context.Context, sess models.Session, productID int64) (*models.Product, error)
	ListProducts(ctx context.Context, sess models.Session, filters models.ProductFilters) ([]models.Product, error)
	CreateProduct(ctx context.Context, sess models.Session, req ProductRequest) (*models.Product, error)
	UpdateProduct(ctx context.Context, sess models.Session, productID int64, req ProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, sess models.Session, productID int64) error
}

type productService struct {
	repo         repositories.ProductRepository
	tx           repositories.Transactor
	cache        ProductCache
	cacheTTL     time.Duration
	queryTimeout time.Duration
}

// NewProductService creates a new instance of ProductService. cache may be nil.
func NewProductService(repo repositories.ProductRepository, tx repositories.Transactor, cache ProductCache, cacheTTL, queryTimeout time.Duration) ProductService {
	return &productService{repo: repo, tx: tx, cache: cache, cacheTTL: cacheTTL, queryTimeout: queryTimeout}
}

func productCacheKey(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

func validateProductRequest(req ProductRequest) error {
	if utils.IsEmpty(req.Name) {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utils.IsEmpty(req.Category) {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if !req.Price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", ErrValidation)
	}
	if !req.Price.Equal(req.Price.Round(2)) {
		return fmt.Errorf("%w: price has more than two decimal places", ErrValidation)
	}
	return nil
}

// getProductWithCache is a read-through lookup for menu reads; cache failures
// fall back to the database. A cached entry may lag an update by up to cacheTTL.
func (s *productService) getProductWithCache(ctx context.Context, productID int64) (*models.Product, error) {
	key := productCacheKey(productID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			var product models.Product
			if err := json.Unmarshal([]byte(cached), &product); err == nil {
				return &product, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			utils.LogWarn("Product cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	product, err := s.repo.GetProductByID(ctx, nil, productID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(product); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
				utils.LogWarn("Product cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
			}
		}
	}
	return product, nil
}

func (s *productService) invalidate(ctx context.Context, productID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, productCacheKey(productID)).Err(); err != nil {
		utils.LogWarn("Product cache invalidation failed", map[string]interface{}{"product_id": productID, "error": err.Error()})
	}
}

func (s *productService) GetProduct(ctx context.Context, sess models.Session, productID int64) (*models.Product, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	product, err := s.getProductWithCache(ctx, productID)
	if err != nil {
		return nil, mapRepoError(fmt.Sprintf("product %d", productID), err)
	}
	if err := checkTenant(sess, product.EstablishmentID, fmt.Sprintf("product %d", productID)); err != nil {
		return nil, err
	}
	return product, nil
}

// OrderableProduct reads the committed row through exec, bypassing the cache.
// The caller runs it inside the transaction that writes the order line.
func (s *productService) OrderableProduct(ctx context.Context, exec repositories.SQLExecutor, sess models.Session, productID int64) (*models.Product, error) {
	product, err := s.repo.GetProductByID(ctx, exec, productID)
	if err != nil {
		return nil, mapRepoError(fmt.Sprintf("product %d", productID), err)
	}
	if err := checkTenant(sess, product.EstablishmentID, fmt.Sprintf("product %d", productID)); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, sess models.Session, filters models.ProductFilters) ([]models.Product, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	products, err := s.repo.GetProducts(ctx, sess.EstablishmentID, filters)
	if err != nil {
		return nil, mapRepoError("listing products", err)
	}
	return products, nil
}

func (s *productService) CreateProduct(ctx context.Context, sess models.Session, req ProductRequest) (*models.Product, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if err := validateProductRequest(req); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	product := &models.Product{
		EstablishmentID: sess.EstablishmentID,
		Name:            strings.TrimSpace(req.Name),
		Category:        strings.TrimSpace(req.Category),
		Price:           req.Price,
		IsAvailable:     req.IsAvailable == nil || *req.IsAvailable,
		ImageURL:        req.ImageURL,
	}
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		_, err := s.repo.CreateProduct(ctx, exec, product)
		return err
	})
	if err != nil {
		return nil, mapRepoError("creating product", err)
	}
	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, sess models.Session, productID int64, req ProductRequest) (*models.Product, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if err := validateProductRequest(req); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	product, err := s.repo.GetProductByID(ctx, nil, productID)
	if err != nil {
		return nil, mapRepoError(fmt.Sprintf("product %d", productID), err)
	}
	if err := checkTenant(sess, product.EstablishmentID, fmt.Sprintf("product %d", productID)); err != nil {
		return nil, err
	}

	product.Name = strings.TrimSpace(req.Name)
	product.Category = strings.TrimSpace(req.Category)
	product.Price = req.Price
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}
	product.ImageURL = req.ImageURL

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.repo.UpdateProduct(ctx, exec, product)
	})
	if err != nil {
		return nil, mapRepoError("updating product", err)
	}
	s.invalidate(ctx, productID)
	return product, nil
}

// DeleteProduct removes a menu entry. Existing order lines keep their snapshot.
func (s *productService) DeleteProduct(ctx context.Context, sess models.Session, productID int64) error {
	if err := checkSession(sess); err != nil {
		return err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	product, err := s.repo.GetProductByID(ctx, nil, productID)
	if err != nil {
		return mapRepoError(fmt.Sprintf("product %d", productID), err)
	}
	if err := checkTenant(sess, product.EstablishmentID, fmt.Sprintf("product %d", productID)); err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.repo.DeleteProduct(ctx, exec, productID)
	})
	if err != nil {
		return mapRepoError("deleting product", err)
	}
	s.invalidate(ctx, productID)
	return nil
}
