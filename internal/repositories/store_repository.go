package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stall_pos_backend/internal/models"

	"github.com/lib/pq"
)

// StoreRepository defines the interface for store-related database operations.
type StoreRepository interface {
	CreateStore(executor SQLExecutor, store *models.Store) (int64, error)
	GetStoreByID(id int64) (*models.Store, error)
	GetStoreBySlug(slug string) (*models.Store, error)
	GetStores() ([]models.Store, error)
	UpdateStore(executor SQLExecutor, store *models.Store) error
	// LockStore takes a row lock on the store, serializing daily-serial
	// assignment and the daily reset for that store.
	LockStore(executor SQLExecutor, id int64) error
}

type storeRepository struct {
	db *sql.DB
}

// NewStoreRepository creates a new instance of StoreRepository.
func NewStoreRepository(db *sql.DB) StoreRepository {
	return &storeRepository{db: db}
}

const storeColumns = `id, slug, name, is_active, payment_enabled, timezone, created_at, updated_at`

func scanStore(s scanner, store *models.Store) error {
	return s.Scan(&store.ID, &store.Slug, &store.Name, &store.IsActive,
		&store.PaymentEnabled, &store.Timezone, &store.CreatedAt, &store.UpdatedAt)
}

func (r *storeRepository) CreateStore(executor SQLExecutor, store *models.Store) (int64, error) {
	query := `INSERT INTO stores (slug, name, is_active, payment_enabled, timezone, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`
	now := time.Now()
	err := executor.QueryRow(query, store.Slug, store.Name, store.IsActive,
		store.PaymentEnabled, store.Timezone, now, now).Scan(&store.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, fmt.Errorf("%w: store slug '%s' already exists", ErrDuplicateKey, store.Slug)
		}
		return 0, fmt.Errorf("%w: creating store: %v", ErrDatabaseError, err)
	}
	return store.ID, nil
}

func (r *storeRepository) GetStoreByID(id int64) (*models.Store, error) {
	store := &models.Store{}
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`
	if err := scanStore(r.db.QueryRow(query, id), store); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting store by ID %d: %v", ErrDatabaseError, id, err)
	}
	return store, nil
}

func (r *storeRepository) GetStoreBySlug(slug string) (*models.Store, error) {
	store := &models.Store{}
	query := `SELECT ` + storeColumns + ` FROM stores WHERE slug = $1`
	if err := scanStore(r.db.QueryRow(query, slug), store); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting store by slug %q: %v", ErrDatabaseError, slug, err)
	}
	return store, nil
}

func (r *storeRepository) GetStores() ([]models.Store, error) {
	stores := []models.Store{}
	query := `SELECT ` + storeColumns + ` FROM stores ORDER BY id`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying stores: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var store models.Store
		if err := scanStore(rows, &store); err != nil {
			return nil, fmt.Errorf("%w: scanning store: %v", ErrDatabaseError, err)
		}
		stores = append(stores, store)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating store rows: %v", ErrDatabaseError, err)
	}
	return stores, nil
}

func (r *storeRepository) UpdateStore(executor SQLExecutor, store *models.Store) error {
	query := `UPDATE stores
	          SET slug = $1, name = $2, is_active = $3, payment_enabled = $4, timezone = $5, updated_at = $6
	          WHERE id = $7`
	result, err := executor.Exec(query, store.Slug, store.Name, store.IsActive,
		store.PaymentEnabled, store.Timezone, time.Now(), store.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: store slug '%s' already exists", ErrDuplicateKey, store.Slug)
		}
		return fmt.Errorf("%w: updating store ID %d: %v", ErrDatabaseError, store.ID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *storeRepository) LockStore(executor SQLExecutor, id int64) error {
	var lockedID int64
	err := executor.QueryRow(`SELECT id FROM stores WHERE id = $1 FOR UPDATE`, id).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: locking store ID %d: %v", ErrDatabaseError, id, err)
	}
	return nil
}
