package handlers

import (
	"net/http"
	"strconv"

	"stall_pos_backend/internal/services"
	"stall_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// PaymentHandler holds the payment service.
type PaymentHandler struct {
	paymentService services.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(ps services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: ps}
}

// ConfirmCallback handles the provider redirect after the customer approved
// the payment. The provider appends transactionId to the confirm URL.
func (h *PaymentHandler) ConfirmCallback(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid order ID format.", err.Error()))
		return
	}

	transactionID := c.Query("transactionId")
	if transactionID == "" {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"transactionId query parameter is required", ""))
		return
	}

	order, err := h.paymentService.ConfirmCallback(c.Request.Context(), orderID, transactionID)
	if err != nil {
		utils.LogError(err, "payment confirm callback failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelCallback handles the provider redirect after the customer abandoned
// the payment screen.
func (h *PaymentHandler) CancelCallback(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid order ID format.", err.Error()))
		return
	}

	order, err := h.paymentService.CancelCallback(c.Request.Context(), orderID)
	if err != nil {
		utils.LogError(err, "payment cancel callback failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RefundOrder handles a staff-driven refund of a gateway-paid order.
func (h *PaymentHandler) RefundOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid order ID format.", err.Error()))
		return
	}

	order, err := h.paymentService.RefundOrder(c.Request.Context(), orderID)
	if err != nil {
		utils.LogError(err, "refund failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
