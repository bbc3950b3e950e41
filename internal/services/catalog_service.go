package services

import (
	"errors"
	"fmt"

	"stall_pos_backend/internal/models"
	"stall_pos_backend/internal/repositories"
)

// Menu is the customer-facing catalog for one store.
type Menu struct {
	Store      *models.Store     `json:"store"`
	Categories []models.Category `json:"categories"`
	Products   []models.Product  `json:"products"`
}

// CatalogService covers menu queries and the catalog administration the
// staff backend needs.
type CatalogService interface {
	GetMenu(storeSlug string, categorySlug *string) (*Menu, error)
	GetStores() ([]models.Store, error)
	CreateStore(store *models.Store) (*models.Store, error)
	UpdateStore(store *models.Store) (*models.Store, error)

	CreateCategory(category *models.Category) (*models.Category, error)
	UpdateCategory(category *models.Category) (*models.Category, error)
	DeleteCategory(categoryID int64) error
	GetCategories(storeSlug string) ([]models.Category, error)

	CreateProduct(product *models.Product) (*models.Product, error)
	UpdateProduct(product *models.Product) (*models.Product, error)
	GetProduct(productID int64) (*models.Product, error)
	GetProducts(storeSlug string, categorySlug *string) ([]models.Product, error)
}

type catalogService struct {
	storeRepo   repositories.StoreRepository
	catalogRepo repositories.CatalogRepository
	tx          repositories.TxRunner
}

// NewCatalogService creates a new instance of CatalogService.
func NewCatalogService(
	sr repositories.StoreRepository,
	cr repositories.CatalogRepository,
	tx repositories.TxRunner,
) CatalogService {
	return &catalogService{storeRepo: sr, catalogRepo: cr, tx: tx}
}

func (s *catalogService) resolveStore(storeSlug string) (*models.Store, error) {
	store, err := s.storeRepo.GetStoreBySlug(storeSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}
	return store, nil
}

// GetMenu returns the ordering page's view of a store: active categories in
// display order and active products, optionally narrowed to one category.
func (s *catalogService) GetMenu(storeSlug string, categorySlug *string) (*Menu, error) {
	store, err := s.resolveStore(storeSlug)
	if err != nil {
		return nil, err
	}
	if !store.IsActive {
		return nil, ErrStoreNotFound
	}

	categories, err := s.catalogRepo.GetCategoriesByStore(store.ID, true)
	if err != nil {
		return nil, err
	}
	products, err := s.catalogRepo.GetProductsByStore(store.ID, categorySlug, true)
	if err != nil {
		return nil, err
	}
	return &Menu{Store: store, Categories: categories, Products: products}, nil
}

func (s *catalogService) GetStores() ([]models.Store, error) {
	return s.storeRepo.GetStores()
}

func (s *catalogService) CreateStore(store *models.Store) (*models.Store, error) {
	if store.Slug == "" || store.Name == "" {
		return nil, fmt.Errorf("%w: store slug and name are required", ErrValidation)
	}
	if store.Timezone == "" {
		store.Timezone = "Asia/Taipei"
	}
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		_, err := s.storeRepo.CreateStore(ex, store)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}
	return store, nil
}

func (s *catalogService) UpdateStore(store *models.Store) (*models.Store, error) {
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		return s.storeRepo.UpdateStore(ex, store)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}
	return store, nil
}

func (s *catalogService) CreateCategory(category *models.Category) (*models.Category, error) {
	if category.StoreID == 0 || category.Name == "" || category.Slug == "" {
		return nil, fmt.Errorf("%w: category store, name and slug are required", ErrValidation)
	}
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		_, err := s.catalogRepo.CreateCategory(ex, category)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}
	return category, nil
}

func (s *catalogService) UpdateCategory(category *models.Category) (*models.Category, error) {
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		return s.catalogRepo.UpdateCategory(ex, category)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}
	return category, nil
}

// DeleteCategory removes an empty category. Categories still referenced by
// products are protected; products must be reassigned first.
func (s *catalogService) DeleteCategory(categoryID int64) error {
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		return s.catalogRepo.DeleteCategory(ex, categoryID)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrCategoryNotFound
		}
		if errors.Is(err, repositories.ErrCategoryInUse) {
			return fmt.Errorf("%w: reassign its products first", ErrCategoryInUse)
		}
		return err
	}
	return nil
}

func (s *catalogService) GetCategories(storeSlug string) ([]models.Category, error) {
	store, err := s.resolveStore(storeSlug)
	if err != nil {
		return nil, err
	}
	return s.catalogRepo.GetCategoriesByStore(store.ID, false)
}

func (s *catalogService) CreateProduct(product *models.Product) (*models.Product, error) {
	if product.StoreID == 0 || product.Name == "" {
		return nil, fmt.Errorf("%w: product store and name are required", ErrValidation)
	}
	if product.Price < 0 {
		return nil, fmt.Errorf("%w: price must be non-negative", ErrValidation)
	}
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		_, err := s.catalogRepo.CreateProduct(ex, product)
		return err
	})
	if err != nil {
		return nil, err
	}
	product.ComputeSoldOut()
	return product, nil
}

func (s *catalogService) UpdateProduct(product *models.Product) (*models.Product, error) {
	if product.Price < 0 {
		return nil, fmt.Errorf("%w: price must be non-negative", ErrValidation)
	}
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		return s.catalogRepo.UpdateProduct(ex, product)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	product.ComputeSoldOut()
	return product, nil
}

func (s *catalogService) GetProduct(productID int64) (*models.Product, error) {
	product, err := s.catalogRepo.GetProductByID(nil, productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *catalogService) GetProducts(storeSlug string, categorySlug *string) ([]models.Product, error) {
	store, err := s.resolveStore(storeSlug)
	if err != nil {
		return nil, err
	}
	return s.catalogRepo.GetProductsByStore(store.ID, categorySlug, false)
}
