package handlers

import (
	"ridehail/internal/services"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService services.AdminService
	logger       *logger.Logger
}

func NewAdminHandler(adminService services.AdminService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       log.WithComponent("admin_handler"),
	}
}

// GetPendingDrivers lists drivers waiting for a decision, oldest first
func (h *AdminHandler) GetPendingDrivers(c *gin.Context) {
	drivers, err := h.adminService.GetPendingDrivers(c.Request.Context())
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, drivers)
}

func (h *AdminHandler) ApproveDriver(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	driverID, ok := parseObjectID(c, "id", "driver")
	if !ok {
		return
	}

	driver, err := h.adminService.ApproveDriver(c.Request.Context(), actor, driverID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, driver)
}

func (h *AdminHandler) RejectDriver(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	driverID, ok := parseObjectID(c, "id", "driver")
	if !ok {
		return
	}

	driver, err := h.adminService.RejectDriver(c.Request.Context(), actor, driverID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, driver)
}

func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, stats)
}
