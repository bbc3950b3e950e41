package handlers

import (
	"net/http"
	"strconv"

	"stall_pos_backend/internal/models"
	"stall_pos_backend/internal/services"
	"stall_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// CatalogHandler holds the catalog service.
type CatalogHandler struct {
	catalogService services.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(cs services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: cs}
}

func categorySlugFilter(c *gin.Context) *string {
	if slug := c.Query("category"); slug != "" {
		return &slug
	}
	return nil
}

// GetMenu handles the public ordering-page menu for one store.
func (h *CatalogHandler) GetMenu(c *gin.Context) {
	storeSlug := c.Param("store")
	menu, err := h.catalogService.GetMenu(storeSlug, categorySlugFilter(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

// GetCategories lists a store's categories for the admin panel, inactive
// ones included.
func (h *CatalogHandler) GetCategories(c *gin.Context) {
	storeSlug := c.Param("store")
	categories, err := h.catalogService.GetCategories(storeSlug)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// CreateCategory handles category creation.
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var category models.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}

	created, err := h.catalogService.CreateCategory(&category)
	if err != nil {
		utils.LogError(err, "CreateCategory failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateCategory handles category updates.
func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	categoryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid category ID format.", err.Error()))
		return
	}

	var category models.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}
	category.ID = categoryID

	updated, err := h.catalogService.UpdateCategory(&category)
	if err != nil {
		utils.LogError(err, "UpdateCategory failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteCategory handles category deletion. Categories with products are
// rejected with a conflict.
func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	categoryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid category ID format.", err.Error()))
		return
	}

	if err := h.catalogService.DeleteCategory(categoryID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetProducts lists a store's products for the admin panel.
func (h *CatalogHandler) GetProducts(c *gin.Context) {
	storeSlug := c.Param("store")
	products, err := h.catalogService.GetProducts(storeSlug, categorySlugFilter(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// GetProductByID handles fetching a single product.
func (h *CatalogHandler) GetProductByID(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid product ID format.", err.Error()))
		return
	}

	product, err := h.catalogService.GetProduct(productID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// CreateProduct handles product creation.
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}

	created, err := h.catalogService.CreateProduct(&product)
	if err != nil {
		utils.LogError(err, "CreateProduct failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateProduct handles product updates, stock adjustments included.
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid product ID format.", err.Error()))
		return
	}

	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}
	product.ID = productID

	updated, err := h.catalogService.UpdateProduct(&product)
	if err != nil {
		utils.LogError(err, "UpdateProduct failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
