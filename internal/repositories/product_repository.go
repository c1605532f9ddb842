package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bar_backoffice/internal/models"

	"github.com/lib/pq"
)

// ProductRepository defines the interface for menu database operations.
type ProductRepository interface {
	CreateProduct(ctx context.Context, executor SQLExecutor, product *models.Product) (int64, error)
	// GetProductByID reads through executor, or the pool when it is nil.
	GetProductByID(ctx context.Context, executor SQLExecutor, productID int64) (*models.Product, error)
	GetProducts(ctx context.Context, establishmentID int64, filters models.ProductFilters) ([]models.Product, error)
	UpdateProduct(ctx context.Context, executor SQLExecutor, product *models.Product) error
	DeleteProduct(ctx context.Context, executor SQLExecutor, productID int64) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository.
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, establishment_id, name, category, price, is_available, image_url, created_at, updated_at`

func scanProduct(row scanner, p *models.Product) error {
	var imageURL sql.NullString
	if err := row.Scan(&p.ID, &p.EstablishmentID, &p.Name, &p.Category, &p.Price, &p.IsAvailable, &imageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	if imageURL.Valid {
		u := imageURL.String
		p.ImageURL = &u
	}
	return nil
}

func (r *productRepository) CreateProduct(ctx context.Context, executor SQLExecutor, product *models.Product) (int64, error) {
	query := `INSERT INTO products (establishment_id, name, category, price, is_available, image_url, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id`
	currentTime := time.Now()
	err := executor.QueryRowContext(ctx, query,
		product.EstablishmentID, product.Name, product.Category, product.Price, product.IsAvailable, product.ImageURL,
		currentTime, currentTime,
	).Scan(&product.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, fmt.Errorf("%w: product name '%s' already exists (constraint: %s)", ErrDuplicateKey, product.Name, pqErr.Constraint)
		}
		return 0, dbError("creating product", err)
	}
	product.CreatedAt = currentTime
	product.UpdatedAt = currentTime
	return product.ID, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, executor SQLExecutor, productID int64) (*models.Product, error) {
	if executor == nil {
		executor = r.db
	}
	product := &models.Product{}
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := scanProduct(executor.QueryRowContext(ctx, query, productID), product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(fmt.Sprintf("getting product by ID %d", productID), err)
	}
	return product, nil
}

func (r *productRepository) GetProducts(ctx context.Context, establishmentID int64, filters models.ProductFilters) ([]models.Product, error) {
	products := []models.Product{}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + productColumns + ` FROM products WHERE establishment_id = $1`)
	args := []interface{}{establishmentID}
	argCounter := 2

	if filters.Category != nil && *filters.Category != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND category = $%d", argCounter))
		args = append(args, *filters.Category)
		argCounter++
	}
	if filters.OnlyAvailable {
		queryBuilder.WriteString(" AND is_available")
	}
	queryBuilder.WriteString(" ORDER BY name")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, dbError("querying products", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, dbError("scanning product", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, dbError("iterating products", err)
	}
	return products, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, executor SQLExecutor, product *models.Product) error {
	query := `UPDATE products
	          SET name = $1, category = $2, price = $3, is_available = $4, image_url = $5, updated_at = $6
	          WHERE id = $7 AND establishment_id = $8`
	product.UpdatedAt = time.Now()
	result, err := executor.ExecContext(ctx, query,
		product.Name, product.Category, product.Price, product.IsAvailable, product.ImageURL, product.UpdatedAt,
		product.ID, product.EstablishmentID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: product name '%s' already exists (constraint: %s)", ErrDuplicateKey, product.Name, pqErr.Constraint)
		}
		return dbError(fmt.Sprintf("updating product ID %d", product.ID), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a menu entry. Order lines keep their name and price
// snapshots; the schema nulls their product_id.
func (r *productRepository) DeleteProduct(ctx context.Context, executor SQLExecutor, productID int64) error {
	result, err := executor.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return dbError(fmt.Sprintf("deleting product ID %d", productID), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
