package handlers

import (
	"net/http"
	"strconv"

	"stall_pos_backend/internal/models"
	"stall_pos_backend/internal/services"
	"stall_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// OrderHandler holds the order service.
type OrderHandler struct {
	orderService services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(os services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: os}
}

// CreateOrder handles the customer order-creation endpoint. For gateway
// payments the response additionally carries the provider redirect URL.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}

	result, err := h.orderService.CreateOrder(c.Request.Context(), req)
	if err != nil {
		utils.LogError(err, "CreateOrder failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetOrders handles the staff order listing with filters.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	var filters models.OrderFilters

	if storeIDStr := c.Query("store_id"); storeIDStr != "" {
		storeID, err := strconv.ParseInt(storeIDStr, 10, 64)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
				"Invalid store_id format.", err.Error()))
			return
		}
		filters.StoreID = &storeID
	}
	if status := c.Query("status"); status != "" {
		filters.Status = &status
	}
	filters.Page = 1
	filters.PageSize = 20
	if pageStr := c.Query("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filters.Page = page
		}
	}
	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		if pageSize, err := strconv.Atoi(pageSizeStr); err == nil && pageSize > 0 {
			filters.PageSize = pageSize
		}
	}

	orders, totalCount, err := h.orderService.GetOrders(filters)
	if err != nil {
		utils.LogError(err, "GetOrders failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      orders,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetLatestOrders returns the most recent orders for a store, feeding the
// live dashboard and the number-calling board.
func (h *OrderHandler) GetLatestOrders(c *gin.Context) {
	storeSlug := c.Query("store")
	if storeSlug == "" {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"store query parameter is required", ""))
		return
	}
	limit := 30
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	orders, err := h.orderService.GetLatestOrders(storeSlug, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrderByID handles fetching a single order.
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid order ID format.", err.Error()))
		return
	}

	order, err := h.orderService.GetOrderByID(orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatusRequest is the staff status-transition payload.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatus handles a staff-driven status transition.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid order ID format.", err.Error()))
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		utils.LogError(err, "UpdateOrderStatus failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CustomerUpdateStatusRequest is the unauthenticated self-service payload.
// The phone tail doubles as the customer's proof of ownership.
type CustomerUpdateStatusRequest struct {
	PhoneTail string `json:"phone_tail" binding:"required"`
	Status    string `json:"status" binding:"required"`
}

// CustomerUpdateOrderStatus handles the self-service transitions: a customer
// can announce arrival (completed→arrived) or settle the order (→final).
func (h *OrderHandler) CustomerUpdateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid order ID format.", err.Error()))
		return
	}

	var req CustomerUpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}

	order, err := h.orderService.UpdateStatusAsCustomer(c.Request.Context(), orderID, req.PhoneTail, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderItemsRequest is the staff item-edit payload.
type UpdateOrderItemsRequest struct {
	Items []models.OrderItemInput `json:"items" binding:"required"`
}

// UpdateOrderItems handles a staff edit of an order's line items while the
// order is still pending or confirmed.
func (h *OrderHandler) UpdateOrderItems(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid order ID format.", err.Error()))
		return
	}

	var req UpdateOrderItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}

	order, err := h.orderService.UpdateItems(c.Request.Context(), orderID, req.Items)
	if err != nil {
		utils.LogError(err, "UpdateOrderItems failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
