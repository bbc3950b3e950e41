package handlers

import (
	"errors"
	"net/http"

	"stall_pos_backend/internal/gateway"
	"stall_pos_backend/internal/services"
	"stall_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps service-layer errors onto the APIError envelope.
// Gateway errors keep the provider's raw code/message so staff can debug a
// failed provider call from the response alone.
func respondServiceError(c *gin.Context, err error) {
	var insufficientStock *services.InsufficientStockError
	var inactiveProduct *services.InactiveProductError
	var gatewayErr *gateway.Error

	switch {
	case errors.As(err, &insufficientStock):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeInsufficientStock,
			insufficientStock.Error(), ""))
	case errors.As(err, &inactiveProduct):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict,
			inactiveProduct.Error(), ""))
	case errors.As(err, &gatewayErr):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadGateway, utils.ErrCodeGatewayError,
			"Payment gateway call failed.", gatewayErr.Error()))
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidStatus):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			err.Error(), ""))
	case errors.Is(err, services.ErrStoreNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrCategoryNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound,
			err.Error(), ""))
	case errors.Is(err, services.ErrPermission):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden,
			err.Error(), ""))
	case errors.Is(err, services.ErrBadCredentials):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized,
			err.Error(), ""))
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrCategoryInUse):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict,
			err.Error(), ""))
	default:
		utils.LogError(err, "unhandled service error")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError,
			"Internal error", ""))
	}
}
