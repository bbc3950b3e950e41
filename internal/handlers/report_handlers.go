package handlers

import (
	"net/http"

	"stall_pos_backend/internal/services"
	"stall_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ReportHandler holds the report service.
type ReportHandler struct {
	reportService services.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(rs services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: rs}
}

// GetDashboardStats handles the staff dashboard aggregates for one store.
func (h *ReportHandler) GetDashboardStats(c *gin.Context) {
	storeSlug := c.Param("store")
	stats, err := h.reportService.DashboardStats(storeSlug)
	if err != nil {
		utils.LogError(err, "DashboardStats failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ResetDaily handles the end-of-day close: cancels in-flight orders,
// restores their stock and archives the day's settled orders.
func (h *ReportHandler) ResetDaily(c *gin.Context) {
	storeSlug := c.Param("store")
	result, err := h.reportService.ResetDaily(storeSlug)
	if err != nil {
		utils.LogError(err, "ResetDaily failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
