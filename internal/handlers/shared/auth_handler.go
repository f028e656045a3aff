package handlers

import (
	"ridehail/internal/services"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
	logger      *logger.Logger
}

func NewAuthHandler(authService services.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      log.WithComponent("auth_handler"),
	}
}

// Register creates a passenger or driver account
func (h *AuthHandler) Register(c *gin.Context) {
	var request services.RegisterRequest
	if !bindJSON(c, &request) {
		return
	}

	response, err := h.authService.Register(c.Request.Context(), &request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, response)
}

// Login exchanges credentials for a token
func (h *AuthHandler) Login(c *gin.Context) {
	var request services.LoginRequest
	if !bindJSON(c, &request) {
		return
	}

	response, err := h.authService.Login(c.Request.Context(), &request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, response)
}

// Validate returns the profile behind the presented token
func (h *AuthHandler) Validate(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	user, err := h.authService.GetProfile(c.Request.Context(), actor.ID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, gin.H{"user": user})
}
