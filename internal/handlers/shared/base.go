package handlers

import (
	"errors"
	"strconv"

	"ridehail/internal/models"
	"ridehail/internal/services"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errNoActor = errors.New("no authenticated user on request")

// currentActor reads the identity set by middleware.AuthRequired.
func currentActor(c *gin.Context) (services.Actor, error) {
	id, exists := c.Get(utils.ContextUserID)
	if !exists {
		return services.Actor{}, errNoActor
	}
	userID, ok := id.(primitive.ObjectID)
	if !ok {
		return services.Actor{}, errNoActor
	}
	role, _ := c.Get(utils.ContextUserRole)
	roleStr, _ := role.(string)
	return services.Actor{ID: userID, Role: models.UserRole(roleStr)}, nil
}

// mustActor writes a 401 and returns false when the request is anonymous.
func mustActor(c *gin.Context) (services.Actor, bool) {
	actor, err := currentActor(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return actor, false
	}
	return actor, true
}

func parseObjectID(c *gin.Context, param, resource string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		utils.BadRequestResponse(c, "invalid "+resource+" id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		utils.BadRequestResponse(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryFloat(c *gin.Context, key string) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// handleServiceError translates a service error into the response body.
// Internal errors are logged with their cause and reported generically.
func handleServiceError(c *gin.Context, log *logger.Logger, err error) {
	appErr := services.AsAppError(err)
	if appErr.Kind == services.KindInternal {
		log.WithContext(c.Request.Context()).WithError(err).
			WithField("endpoint", c.FullPath()).Error("Request failed")
		utils.InternalServerErrorResponse(c)
		return
	}
	utils.ErrorResponseWithDetails(c, appErr.HTTPStatus(), appErr.Code, appErr.Message, appErr.Details)
}
