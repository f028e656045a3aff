package handlers

import (
	"ridehail/internal/models"
	"ridehail/internal/services"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService services.UserService
	logger      *logger.Logger
}

func NewUserHandler(userService services.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      log.WithComponent("user_handler"),
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), actor.ID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, user)
}

// UpdateLocation overwrites the calling driver's last known position
func (h *UserHandler) UpdateLocation(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var request services.LocationUpdateRequest
	if !bindJSON(c, &request) {
		return
	}

	user, err := h.userService.UpdateLocation(c.Request.Context(), actor, &request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, user)
}

func (h *UserHandler) SetAvailability(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var request services.AvailabilityRequest
	if !bindJSON(c, &request) {
		return
	}

	user, err := h.userService.SetAvailability(c.Request.Context(), actor, &request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, user)
}

// UploadDocument stores a multipart "file" under the given document "type"
func (h *UserHandler) UploadDocument(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		utils.BadRequestResponse(c, "unable to read uploaded file")
		return
	}
	defer file.Close()

	document, err := h.userService.UploadDocument(c.Request.Context(), actor, &services.DocumentUpload{
		Type:     c.PostForm("type"),
		Filename: header.Filename,
		Size:     header.Size,
		Reader:   file,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, document)
}

// ListUsers is the admin user listing, optionally filtered by ?role=
func (h *UserHandler) ListUsers(c *gin.Context) {
	role := models.UserRole(c.Query("role"))
	if role != "" && !role.IsValid() {
		utils.BadRequestResponse(c, "invalid role")
		return
	}

	params := utils.GetPaginationParams(c)
	users, total, err := h.userService.ListUsers(c.Request.Context(), role, params)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.PaginatedJSONResponse(c, users, params, total)
}
