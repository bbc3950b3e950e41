package handlers

import (
	"net/http"
	"strconv"

	"stall_pos_backend/internal/models"
	"stall_pos_backend/internal/services"
	"stall_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// StoreHandler holds the catalog service for store administration.
type StoreHandler struct {
	catalogService services.CatalogService
}

// NewStoreHandler creates a new StoreHandler.
func NewStoreHandler(cs services.CatalogService) *StoreHandler {
	return &StoreHandler{catalogService: cs}
}

// GetStores lists all stores.
func (h *StoreHandler) GetStores(c *gin.Context) {
	stores, err := h.catalogService.GetStores()
	if err != nil {
		utils.LogError(err, "GetStores failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stores)
}

// CreateStore handles store creation.
func (h *StoreHandler) CreateStore(c *gin.Context) {
	var store models.Store
	if err := c.ShouldBindJSON(&store); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}

	created, err := h.catalogService.CreateStore(&store)
	if err != nil {
		utils.LogError(err, "CreateStore failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateStore handles store updates, including toggling gateway payments.
func (h *StoreHandler) UpdateStore(c *gin.Context) {
	storeID, err := strconv.ParseInt(c.Param("store"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid store ID format.", err.Error()))
		return
	}

	var store models.Store
	if err := c.ShouldBindJSON(&store); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}
	store.ID = storeID

	updated, err := h.catalogService.UpdateStore(&store)
	if err != nil {
		utils.LogError(err, "UpdateStore failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
