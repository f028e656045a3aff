package handlers

import (
	"context"

	"ridehail/internal/models"
	"ridehail/internal/services"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService services.RideService
	logger      *logger.Logger
}

func NewRideHandler(rideService services.RideService, log *logger.Logger) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		logger:      log.WithComponent("ride_handler"),
	}
}

// RequestRide creates a pending ride for the calling passenger
func (h *RideHandler) RequestRide(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var request services.RideRequest
	if !bindJSON(c, &request) {
		return
	}

	result, err := h.rideService.RequestRide(c.Request.Context(), actor, &request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, result)
}

// EstimateRide prices a trip without creating it
func (h *RideHandler) EstimateRide(c *gin.Context) {
	var request services.EstimateRequest
	if !bindJSON(c, &request) {
		return
	}

	estimate, err := h.rideService.EstimateRide(c.Request.Context(), &request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, estimate)
}

type rideAction func(ctx context.Context, actor services.Actor, rideID primitive.ObjectID) (*models.RideDetails, error)

func (h *RideHandler) withRide(c *gin.Context, apply rideAction) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	rideID, ok := parseObjectID(c, "rideId", "ride")
	if !ok {
		return
	}

	ride, err := apply(c.Request.Context(), actor, rideID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, ride)
}

func (h *RideHandler) AcceptRide(c *gin.Context) {
	h.withRide(c, h.rideService.AcceptRide)
}

func (h *RideHandler) StartRide(c *gin.Context) {
	h.withRide(c, h.rideService.StartRide)
}

func (h *RideHandler) CompleteRide(c *gin.Context) {
	h.withRide(c, h.rideService.CompleteRide)
}

func (h *RideHandler) CancelRide(c *gin.Context) {
	h.withRide(c, h.rideService.CancelRide)
}

func (h *RideHandler) GetRide(c *gin.Context) {
	h.withRide(c, h.rideService.GetRide)
}

// UpdateRideLocation records the assigned driver's position during a trip
func (h *RideHandler) UpdateRideLocation(c *gin.Context) {
	var request services.LocationUpdateRequest
	if !bindJSON(c, &request) {
		return
	}
	h.withRide(c, func(ctx context.Context, actor services.Actor, rideID primitive.ObjectID) (*models.RideDetails, error) {
		return h.rideService.UpdateRideLocation(ctx, actor, rideID, &request)
	})
}

// GetCurrentRide responds with the caller's accepted or in-progress ride, or null
func (h *RideHandler) GetCurrentRide(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	ride, err := h.rideService.GetCurrentRide(c.Request.Context(), actor)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, ride)
}

// GetAvailableRides returns at most one pending ride near the calling driver
func (h *RideHandler) GetAvailableRides(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	rides, err := h.rideService.GetAvailableRides(c.Request.Context(), actor)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, rides)
}

func (h *RideHandler) GetNearbyDrivers(c *gin.Context) {
	lng, okLng := queryFloat(c, "lng")
	lat, okLat := queryFloat(c, "lat")
	if !okLng || !okLat {
		utils.BadRequestResponse(c, "lng and lat query parameters are required")
		return
	}
	radius, _ := queryFloat(c, "radius")

	drivers, err := h.rideService.GetNearbyDrivers(c.Request.Context(), models.NewPoint(lng, lat), radius)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, drivers)
}

// GetRideHistory lists rides where the caller is passenger or driver
func (h *RideHandler) GetRideHistory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	rides, total, err := h.rideService.GetRideHistory(c.Request.Context(), actor, params)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.PaginatedJSONResponse(c, rides, params, total)
}
