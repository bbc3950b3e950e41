package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stall_pos_backend/internal/models"

	"github.com/lib/pq"
)

// CatalogRepository defines the interface for category and product database
// operations, including the atomic stock primitives.
type CatalogRepository interface {
	// Category methods
	CreateCategory(executor SQLExecutor, category *models.Category) (int64, error)
	GetCategoryByID(id int64) (*models.Category, error)
	GetCategoriesByStore(storeID int64, activeOnly bool) ([]models.Category, error)
	UpdateCategory(executor SQLExecutor, category *models.Category) error
	DeleteCategory(executor SQLExecutor, id int64) error

	// Product methods
	CreateProduct(executor SQLExecutor, product *models.Product) (int64, error)
	GetProductByID(executor SQLExecutor, id int64) (*models.Product, error)
	GetProductsByStore(storeID int64, categorySlug *string, activeOnly bool) ([]models.Product, error)
	UpdateProduct(executor SQLExecutor, product *models.Product) error

	// Stock primitives. ReserveStock is a single conditional decrement:
	// it succeeds only when the product is active and holds enough stock,
	// so concurrent reservations can never oversell. ReleaseStock is an
	// unconditional increment; at-most-once release per reservation is the
	// caller's responsibility, tracked through order status transitions.
	ReserveStock(executor SQLExecutor, productID int64, quantity int) (int, error)
	ReleaseStock(executor SQLExecutor, productID int64, quantity int) (int, error)
	ReleaseStockBatch(executor SQLExecutor, quantities map[int64]int) error

	// Stock audit trail
	CreateStockMovement(executor SQLExecutor, movement *models.StockMovement) (int64, error)
}

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new instance of CatalogRepository.
func NewCatalogRepository(db *sql.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// --- Category Methods ---

func (r *catalogRepository) CreateCategory(executor SQLExecutor, category *models.Category) (int64, error) {
	query := `INSERT INTO categories (store_id, name, slug, sort_order, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`
	now := time.Now()
	err := executor.QueryRow(query, category.StoreID, category.Name, category.Slug,
		category.SortOrder, category.IsActive, now, now).Scan(&category.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if pqErr.Code.Name() == "unique_violation" {
				return 0, fmt.Errorf("%w: category slug '%s' already exists in store %d", ErrDuplicateKey, category.Slug, category.StoreID)
			}
			if pqErr.Code.Name() == "foreign_key_violation" {
				return 0, fmt.Errorf("%w: invalid store_id %d: %v", ErrDatabaseError, category.StoreID, err)
			}
		}
		return 0, fmt.Errorf("%w: creating category: %v", ErrDatabaseError, err)
	}
	return category.ID, nil
}

func (r *catalogRepository) GetCategoryByID(id int64) (*models.Category, error) {
	category := &models.Category{}
	query := `SELECT id, store_id, name, slug, sort_order, is_active, created_at, updated_at
	          FROM categories WHERE id = $1`
	err := r.db.QueryRow(query, id).Scan(
		&category.ID, &category.StoreID, &category.Name, &category.Slug,
		&category.SortOrder, &category.IsActive, &category.CreatedAt, &category.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting category by ID %d: %v", ErrDatabaseError, id, err)
	}
	return category, nil
}

func (r *catalogRepository) GetCategoriesByStore(storeID int64, activeOnly bool) ([]models.Category, error) {
	categories := []models.Category{}
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT id, store_id, name, slug, sort_order, is_active, created_at, updated_at
	          FROM categories WHERE store_id = $1`)
	if activeOnly {
		queryBuilder.WriteString(" AND is_active = TRUE")
	}
	queryBuilder.WriteString(" ORDER BY sort_order, id")

	rows, err := r.db.Query(queryBuilder.String(), storeID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying categories for store %d: %v", ErrDatabaseError, storeID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var category models.Category
		if err := rows.Scan(
			&category.ID, &category.StoreID, &category.Name, &category.Slug,
			&category.SortOrder, &category.IsActive, &category.CreatedAt, &category.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning category: %v", ErrDatabaseError, err)
		}
		categories = append(categories, category)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating category rows: %v", ErrDatabaseError, err)
	}
	return categories, nil
}

func (r *catalogRepository) UpdateCategory(executor SQLExecutor, category *models.Category) error {
	query := `UPDATE categories
	          SET name = $1, slug = $2, sort_order = $3, is_active = $4, updated_at = $5
	          WHERE id = $6`
	result, err := executor.Exec(query, category.Name, category.Slug,
		category.SortOrder, category.IsActive, time.Now(), category.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: category slug '%s' already exists in store", ErrDuplicateKey, category.Slug)
		}
		return fmt.Errorf("%w: updating category ID %d: %v", ErrDatabaseError, category.ID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *catalogRepository) DeleteCategory(executor SQLExecutor, id int64) error {
	// products.category_id is ON DELETE RESTRICT; the foreign-key violation
	// surfaces as ErrCategoryInUse so callers can ask for reassignment first.
	result, err := executor.Exec(`DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return fmt.Errorf("%w: category ID %d", ErrCategoryInUse, id)
		}
		return fmt.Errorf("%w: deleting category ID %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Product Methods ---

func (r *catalogRepository) CreateProduct(executor SQLExecutor, product *models.Product) (int64, error) {
	query := `INSERT INTO products
	          (store_id, category_id, name, description, flavor_options, price, stock, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id`
	now := time.Now()
	err := executor.QueryRow(query,
		product.StoreID, product.CategoryID, product.Name, product.Description,
		product.FlavorOptions, product.Price, product.Stock, product.IsActive, now, now,
	).Scan(&product.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return 0, fmt.Errorf("%w: invalid store or category reference (constraint: %s): %v", ErrDatabaseError, pqErr.Constraint, err)
		}
		return 0, fmt.Errorf("%w: creating product: %v", ErrDatabaseError, err)
	}
	return product.ID, nil
}

func (r *catalogRepository) GetProductByID(executor SQLExecutor, id int64) (*models.Product, error) {
	if executor == nil {
		executor = r.db
	}
	product := &models.Product{}
	var catID sql.NullInt64
	var catName, catSlug sql.NullString

	query := `SELECT p.id, p.store_id, p.category_id, p.name, p.description, p.flavor_options,
	                 p.price, p.stock, p.is_active, p.created_at, p.updated_at,
	                 c.name AS category_name, c.slug AS category_slug
	          FROM products p
	          LEFT JOIN categories c ON p.category_id = c.id
	          WHERE p.id = $1`
	err := executor.QueryRow(query, id).Scan(
		&product.ID, &product.StoreID, &catID, &product.Name, &product.Description,
		&product.FlavorOptions, &product.Price, &product.Stock, &product.IsActive,
		&product.CreatedAt, &product.UpdatedAt, &catName, &catSlug,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting product by ID %d: %v", ErrDatabaseError, id, err)
	}
	if catID.Valid {
		cid := catID.Int64
		product.CategoryID = &cid
		product.Category = &models.Category{ID: cid, StoreID: product.StoreID}
		if catName.Valid {
			product.Category.Name = catName.String
		}
		if catSlug.Valid {
			product.Category.Slug = catSlug.String
		}
	}
	product.ComputeSoldOut()
	return product, nil
}

func (r *catalogRepository) GetProductsByStore(storeID int64, categorySlug *string, activeOnly bool) ([]models.Product, error) {
	products := []models.Product{}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT p.id, p.store_id, p.category_id, p.name, p.description, p.flavor_options,
	       p.price, p.stock, p.is_active, p.created_at, p.updated_at,
	       c.name AS category_name, c.slug AS category_slug, c.sort_order AS category_sort_order
	  FROM products p
	  LEFT JOIN categories c ON p.category_id = c.id
	  WHERE p.store_id = $1`)

	args := []interface{}{storeID}
	argCount := 2

	if categorySlug != nil && *categorySlug != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND c.slug = $%d", argCount))
		args = append(args, *categorySlug)
		argCount++
	}
	if activeOnly {
		queryBuilder.WriteString(" AND p.is_active = TRUE")
	}
	queryBuilder.WriteString(" ORDER BY COALESCE(c.sort_order, 2147483647), p.id")

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying products for store %d: %v", ErrDatabaseError, storeID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var product models.Product
		var catID sql.NullInt64
		var catName, catSlug sql.NullString
		var catSortOrder sql.NullInt64

		if err := rows.Scan(
			&product.ID, &product.StoreID, &catID, &product.Name, &product.Description,
			&product.FlavorOptions, &product.Price, &product.Stock, &product.IsActive,
			&product.CreatedAt, &product.UpdatedAt, &catName, &catSlug, &catSortOrder,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning product: %v", ErrDatabaseError, err)
		}
		if catID.Valid {
			cid := catID.Int64
			product.CategoryID = &cid
			product.Category = &models.Category{ID: cid, StoreID: product.StoreID}
			if catName.Valid {
				product.Category.Name = catName.String
			}
			if catSlug.Valid {
				product.Category.Slug = catSlug.String
			}
			if catSortOrder.Valid {
				product.Category.SortOrder = int(catSortOrder.Int64)
			}
		}
		product.ComputeSoldOut()
		products = append(products, product)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating product rows: %v", ErrDatabaseError, err)
	}
	return products, nil
}

func (r *catalogRepository) UpdateProduct(executor SQLExecutor, product *models.Product) error {
	query := `UPDATE products
	          SET category_id = $1, name = $2, description = $3, flavor_options = $4,
	              price = $5, stock = $6, is_active = $7, updated_at = $8
	          WHERE id = $9`
	result, err := executor.Exec(query,
		product.CategoryID, product.Name, product.Description, product.FlavorOptions,
		product.Price, product.Stock, product.IsActive, time.Now(), product.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return fmt.Errorf("%w: invalid category reference (constraint: %s): %v", ErrDatabaseError, pqErr.Constraint, err)
		}
		return fmt.Errorf("%w: updating product ID %d: %v", ErrDatabaseError, product.ID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Stock Primitives ---

func (r *catalogRepository) ReserveStock(executor SQLExecutor, productID int64, quantity int) (int, error) {
	var newStock int
	query := `UPDATE products
	          SET stock = stock - $1, updated_at = $2
	          WHERE id = $3 AND is_active = TRUE AND stock >= $1
	          RETURNING stock`
	err := executor.QueryRow(query, quantity, time.Now(), productID).Scan(&newStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrStockConflict
		}
		return 0, fmt.Errorf("%w: reserving %d units of product %d: %v", ErrDatabaseError, quantity, productID, err)
	}
	return newStock, nil
}

func (r *catalogRepository) ReleaseStock(executor SQLExecutor, productID int64, quantity int) (int, error) {
	var newStock int
	query := `UPDATE products
	          SET stock = stock + $1, updated_at = $2
	          WHERE id = $3
	          RETURNING stock`
	err := executor.QueryRow(query, quantity, time.Now(), productID).Scan(&newStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: releasing %d units of product %d: %v", ErrDatabaseError, quantity, productID, err)
	}
	return newStock, nil
}

func (r *catalogRepository) ReleaseStockBatch(executor SQLExecutor, quantities map[int64]int) error {
	// One increment per product regardless of how many orders reserved it.
	for productID, quantity := range quantities {
		if quantity <= 0 {
			continue
		}
		if _, err := r.ReleaseStock(executor, productID, quantity); err != nil {
			if errors.Is(err, ErrNotFound) {
				// Product deleted since the reservation; nothing to restore.
				continue
			}
			return err
		}
	}
	return nil
}

// --- Stock Movements ---

func (r *catalogRepository) CreateStockMovement(executor SQLExecutor, movement *models.StockMovement) (int64, error) {
	query := `INSERT INTO stock_movements (product_id, order_id, change, reason, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now()
	}
	err := executor.QueryRow(query, movement.ProductID, movement.OrderID,
		movement.Change, movement.Reason, movement.CreatedAt).Scan(&movement.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating stock movement: %v", ErrDatabaseError, err)
	}
	return movement.ID, nil
}
