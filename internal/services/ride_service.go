package services

import (
	"context"
	"errors"
	"math"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/internal/validators"
	"ridehail/pkg/logger"
	"ridehail/pkg/maps"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   primitive.ObjectID
	Role models.UserRole
}

func (a Actor) IsAdmin() bool  { return a.Role == models.UserRoleAdmin }
func (a Actor) IsDriver() bool { return a.Role == models.UserRoleDriver }

type RideService interface {
	RequestRide(ctx context.Context, actor Actor, request *RideRequest) (*models.RideRequestResult, error)
	EstimateRide(ctx context.Context, request *EstimateRequest) (*models.RideEstimate, error)

	AcceptRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error)
	StartRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error)
	CompleteRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error)
	CancelRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error)
	UpdateRideLocation(ctx context.Context, actor Actor, rideID primitive.ObjectID, request *LocationUpdateRequest) (*models.RideDetails, error)

	GetRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error)
	GetCurrentRide(ctx context.Context, actor Actor) (*models.RideDetails, error)
	GetAvailableRides(ctx context.Context, actor Actor) ([]*models.RideDetails, error)
	GetNearbyDrivers(ctx context.Context, point models.Location, radiusMeters float64) ([]*models.UserSummary, error)
	GetRideHistory(ctx context.Context, actor Actor, params *utils.PaginationParams) ([]*models.Ride, int64, error)
}

type PlaceInput struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
	Address string  `json:"address" validate:"max=500"`
}

func (p PlaceInput) Location() models.Location {
	return models.NewAddressedPoint(p.Lng, p.Lat, p.Address)
}

func (p PlaceInput) mapsLocation() maps.Location {
	return maps.Location{Latitude: p.Lat, Longitude: p.Lng}
}

// RideRequest deliberately has no price: the server computes it.
type RideRequest struct {
	Origin      PlaceInput `json:"origin"`
	Destination PlaceInput `json:"destination"`
	Distance    float64    `json:"distance" validate:"gte=0"`
	Duration    float64    `json:"duration" validate:"gte=0"`
}

type EstimateRequest struct {
	Origin      PlaceInput `json:"origin"`
	Destination PlaceInput `json:"destination"`
	Distance    float64    `json:"distance" validate:"gte=0"`
	Duration    float64    `json:"duration" validate:"gte=0"`
}

type RideServiceConfig struct {
	Limits validators.RideLimits
}

type rideService struct {
	rideRepo  interfaces.RideRepository
	userRepo  interfaces.UserRepository
	pricing   PricingService
	discovery DiscoveryService
	events    EventService
	maps      maps.MapsProvider
	config    RideServiceConfig
	logger    *logger.Logger
}

// NewRideService accepts a nil maps provider; clients must then always send
// distance and duration.
func NewRideService(
	rideRepo interfaces.RideRepository,
	userRepo interfaces.UserRepository,
	pricing PricingService,
	discovery DiscoveryService,
	events EventService,
	mapsProvider maps.MapsProvider,
	config RideServiceConfig,
	logger *logger.Logger,
) RideService {
	if config.Limits.MaxDistanceMeters <= 0 {
		config.Limits.MaxDistanceMeters = utils.MaxRideDistanceMeters
	}
	if config.Limits.MaxDurationSeconds <= 0 {
		config.Limits.MaxDurationSeconds = utils.MaxRideDurationSeconds
	}
	return &rideService{
		rideRepo:  rideRepo,
		userRepo:  userRepo,
		pricing:   pricing,
		discovery: discovery,
		events:    events,
		maps:      mapsProvider,
		config:    config,
		logger:    logger.WithComponent("rides"),
	}
}

func (s *rideService) RequestRide(ctx context.Context, actor Actor, request *RideRequest) (*models.RideRequestResult, error) {
	if actor.Role != models.UserRolePassenger {
		return nil, NewAuthorizationError(utils.CodeForbidden, "only passengers can request rides")
	}
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}

	distance, duration, err := s.resolveRoute(ctx, request.Origin, request.Destination, request.Distance, request.Duration)
	if err != nil {
		return nil, err
	}
	if err := s.checkBounds(distance, duration); err != nil {
		return nil, err
	}

	open, err := s.rideRepo.FindLatestForUser(ctx, actor.ID, models.OpenRideStatuses)
	if err != nil {
		return nil, NewInternalError("failed to check open rides", err)
	}
	if open != nil {
		return nil, NewConflictError(utils.CodeActiveRideExists, "you already have a ride in progress")
	}

	ride := &models.Ride{
		PassengerID: actor.ID,
		Origin:      s.resolvePlace(ctx, request.Origin),
		Destination: s.resolvePlace(ctx, request.Destination),
		Distance:    math.Round(distance),
		Duration:    math.Round(duration),
		Price:       s.pricing.Estimate(distance, duration),
		Status:      models.RideStatusPending,
	}
	if err := s.rideRepo.Create(ctx, ride); err != nil {
		s.logger.WithError(err).WithUserID(actor.ID).Error("Failed to create ride")
		return nil, NewInternalError("failed to request ride", err)
	}

	available, err := s.discovery.CountAvailableDrivers(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to count available drivers")
	}

	s.logger.LogRideEvent(ride.ID, models.EventRideRequested, map[string]interface{}{
		"passenger_id": actor.ID.Hex(),
		"price":        ride.Price,
		"distance":     ride.Distance,
	})
	s.events.Publish(ctx, models.NewRideEvent(models.EventRideRequested, ride))

	return &models.RideRequestResult{
		RideDetails:      s.populate(ctx, ride),
		AvailableDrivers: available,
	}, nil
}

func (s *rideService) EstimateRide(ctx context.Context, request *EstimateRequest) (*models.RideEstimate, error) {
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}

	distance, duration, err := s.resolveRoute(ctx, request.Origin, request.Destination, request.Distance, request.Duration)
	if err != nil {
		return nil, err
	}
	if err := s.checkBounds(distance, duration); err != nil {
		return nil, err
	}

	available, err := s.discovery.CountAvailableDrivers(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to count available drivers")
	}

	return &models.RideEstimate{
		Distance:         math.Round(distance),
		Duration:         math.Round(duration),
		Price:            s.pricing.Estimate(distance, duration),
		AvailableDrivers: available,
	}, nil
}

func (s *rideService) AcceptRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error) {
	if !actor.IsDriver() {
		return nil, NewAuthorizationError(utils.CodeForbidden, "only drivers can accept rides")
	}

	driver, err := s.loadUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !driver.IsApproved {
		return nil, NewAuthorizationError(utils.CodeDriverNotApproved, "your account is pending approval by an administrator")
	}

	current, err := s.rideRepo.FindLatestForUser(ctx, actor.ID, models.ActiveRideStatuses)
	if err != nil {
		return nil, NewInternalError("failed to check current ride", err)
	}
	if current != nil {
		return nil, NewConflictError(utils.CodeDriverBusy, "finish your current ride before accepting another")
	}

	now := time.Now()
	ride, err := s.rideRepo.ApplyTransition(ctx, &interfaces.RideTransition{
		RideID:            rideID,
		From:              []models.RideStatus{models.RideStatusPending},
		RequireUnassigned: true,
		ExclusiveDriver:   &actor.ID,
		To:                models.RideStatusAccepted,
		Set: map[string]interface{}{
			"driver_id":   actor.ID,
			"accepted_at": now,
		},
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNoMatch) {
			return nil, NewNotFoundError(utils.CodeRideUnavailable, utils.ErrRideUnavailable)
		}
		if errors.Is(err, interfaces.ErrDriverBusy) {
			return nil, NewConflictError(utils.CodeDriverBusy, "finish your current ride before accepting another")
		}
		return nil, NewInternalError("failed to accept ride", err)
	}

	s.logger.LogRideEvent(ride.ID, models.EventRideAccepted, map[string]interface{}{"driver_id": actor.ID.Hex()})
	s.events.Publish(ctx, models.NewRideEvent(models.EventRideAccepted, ride))

	return s.populate(ctx, ride), nil
}

func (s *rideService) StartRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error) {
	ride, err := s.driverTransition(ctx, actor, rideID, models.RideStatusAccepted, models.RideStatusInProgress, "start_time",
		"ride must be accepted before it can start", "only the assigned driver can start the ride")
	if err != nil {
		return nil, err
	}

	s.logger.LogRideEvent(ride.ID, models.EventRideStarted, nil)
	s.events.Publish(ctx, models.NewRideEvent(models.EventRideStarted, ride))

	return s.populate(ctx, ride), nil
}

// CompleteRide finishes the ride and then frees the driver. The two writes
// are not atomic; a failure on the second is logged and the ride stays
// completed.
func (s *rideService) CompleteRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error) {
	ride, err := s.driverTransition(ctx, actor, rideID, models.RideStatusInProgress, models.RideStatusCompleted, "end_time",
		"ride must be in progress before it can be completed", "only the assigned driver can complete the ride")
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.SetAvailability(ctx, actor.ID, true); err != nil {
		s.logger.WithError(err).WithUserID(actor.ID).WithRideID(ride.ID).Error("Failed to mark driver available after completion")
	}

	s.logger.LogRideEvent(ride.ID, models.EventRideCompleted, map[string]interface{}{"price": ride.Price})
	s.events.Publish(ctx, models.NewRideEvent(models.EventRideCompleted, ride))

	return s.populate(ctx, ride), nil
}

func (s *rideService) driverTransition(
	ctx context.Context,
	actor Actor,
	rideID primitive.ObjectID,
	from, to models.RideStatus,
	timestampField, statusMessage, actorMessage string,
) (*models.Ride, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != from {
		return nil, NewConflictError(utils.CodeInvalidTransition, statusMessage)
	}
	if !ride.IsDriver(actor.ID) {
		return nil, NewAuthorizationError(utils.CodeForbidden, actorMessage)
	}

	updated, err := s.rideRepo.ApplyTransition(ctx, &interfaces.RideTransition{
		RideID:   rideID,
		From:     []models.RideStatus{from},
		DriverID: &actor.ID,
		To:       to,
		Set:      map[string]interface{}{timestampField: time.Now()},
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNoMatch) {
			return nil, NewConflictError(utils.CodeInvalidTransition, statusMessage)
		}
		return nil, NewInternalError("failed to update ride", err)
	}
	return updated, nil
}

// CancelRide is open to the passenger, the assigned driver and admins.
func (s *rideService) CancelRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !ride.IsParty(actor.ID) {
		return nil, NewAuthorizationError(utils.CodeForbidden, "you are not allowed to cancel this ride")
	}
	if ride.Status.IsTerminal() {
		return nil, NewConflictError(utils.CodeInvalidTransition, "ride can no longer be cancelled")
	}

	updated, err := s.rideRepo.ApplyTransition(ctx, &interfaces.RideTransition{
		RideID: rideID,
		From:   models.OpenRideStatuses,
		To:     models.RideStatusCancelled,
		Set: map[string]interface{}{
			"cancelled_at": time.Now(),
			"cancelled_by": actor.ID,
		},
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNoMatch) {
			return nil, NewConflictError(utils.CodeInvalidTransition, "ride can no longer be cancelled")
		}
		return nil, NewInternalError("failed to cancel ride", err)
	}

	s.logger.LogRideEvent(updated.ID, models.EventRideCancelled, map[string]interface{}{
		"cancelled_by": actor.ID.Hex(),
		"from_status":  ride.Status,
	})
	s.events.Publish(ctx, models.NewRideEvent(models.EventRideCancelled, updated))

	return s.populate(ctx, updated), nil
}

type LocationUpdateRequest struct {
	Coordinates []float64 `json:"coordinates" validate:"required,coordinates"`
}

func (s *rideService) UpdateRideLocation(ctx context.Context, actor Actor, rideID primitive.ObjectID, request *LocationUpdateRequest) (*models.RideDetails, error) {
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsDriver(actor.ID) {
		return nil, NewAuthorizationError(utils.CodeForbidden, "only the assigned driver can update the ride location")
	}
	if !ride.Status.IsActive() {
		return nil, NewConflictError(utils.CodeInvalidTransition, "ride is not active")
	}

	location := models.NewPoint(request.Coordinates[0], request.Coordinates[1])
	if err := s.userRepo.UpdateLocation(ctx, actor.ID, location); err != nil {
		return nil, NewInternalError("failed to update location", err)
	}

	event := models.NewRideEvent(models.EventDriverLocation, ride)
	event.Location = &location
	s.events.Publish(ctx, event)

	return s.populate(ctx, ride), nil
}

func (s *rideService) GetRide(ctx context.Context, actor Actor, rideID primitive.ObjectID) (*models.RideDetails, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.IsAdmin(), ride.IsParty(actor.ID):
	case actor.IsDriver() && ride.Status == models.RideStatusPending:
	default:
		return nil, NewAuthorizationError(utils.CodeForbidden, "you are not allowed to view this ride")
	}

	return s.populate(ctx, ride), nil
}

// GetCurrentRide derives the caller's current ride by query; nothing stores
// a pointer to it.
func (s *rideService) GetCurrentRide(ctx context.Context, actor Actor) (*models.RideDetails, error) {
	ride, err := s.rideRepo.FindLatestForUser(ctx, actor.ID, models.ActiveRideStatuses)
	if err != nil {
		return nil, NewInternalError("failed to get current ride", err)
	}
	if ride == nil {
		return nil, nil
	}
	return s.populate(ctx, ride), nil
}

// GetAvailableRides returns at most one ride: the nearest pending ride for a
// driver who is approved, available, idle and located.
func (s *rideService) GetAvailableRides(ctx context.Context, actor Actor) ([]*models.RideDetails, error) {
	if !actor.IsDriver() {
		return nil, NewAuthorizationError(utils.CodeForbidden, "only drivers can look for rides")
	}

	rides := make([]*models.RideDetails, 0, 1)

	driver, err := s.loadUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !driver.Dispatchable() {
		return rides, nil
	}

	current, err := s.rideRepo.FindLatestForUser(ctx, actor.ID, models.ActiveRideStatuses)
	if err != nil {
		return nil, NewInternalError("failed to check current ride", err)
	}
	if current != nil {
		return rides, nil
	}

	ride, err := s.discovery.FindAvailableRideForDriver(ctx, driver)
	if err != nil {
		return nil, err
	}
	if ride != nil {
		rides = append(rides, s.populate(ctx, ride))
	}
	return rides, nil
}

func (s *rideService) GetNearbyDrivers(ctx context.Context, point models.Location, radiusMeters float64) ([]*models.UserSummary, error) {
	drivers, err := s.discovery.FindNearbyDrivers(ctx, point, radiusMeters)
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.UserSummary, 0, len(drivers))
	for _, driver := range drivers {
		summaries = append(summaries, driver.Summary())
	}
	return summaries, nil
}

func (s *rideService) GetRideHistory(ctx context.Context, actor Actor, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	rides, total, err := s.rideRepo.ListForUser(ctx, actor.ID, params)
	if err != nil {
		return nil, 0, NewInternalError("failed to get ride history", err)
	}
	return rides, total, nil
}

// resolveRoute fills in distance and duration from the maps provider when
// the client sent neither. Values are returned unrounded; bounds and price
// are computed on them and only the stored ride is rounded.
func (s *rideService) resolveRoute(ctx context.Context, origin, destination PlaceInput, distance, duration float64) (float64, float64, error) {
	if distance == 0 && duration == 0 {
		if s.maps == nil {
			return 0, 0, NewValidationError(utils.CodeValidation, "distance and duration are required")
		}
		route, err := s.maps.EstimateRoute(ctx, origin.mapsLocation(), destination.mapsLocation())
		if err != nil {
			if errors.Is(err, maps.ErrNoRoute) {
				return 0, 0, NewValidationError(utils.CodeValidation, "no route found between origin and destination")
			}
			return 0, 0, NewInternalError("failed to estimate route", err)
		}
		distance, duration = route.DistanceMeters, route.DurationSeconds
	}
	return distance, duration, nil
}

// resolvePlace reverse geocodes a place sent without an address. Lookup
// failures leave the address empty.
func (s *rideService) resolvePlace(ctx context.Context, place PlaceInput) models.Location {
	if place.Address == "" && s.maps != nil {
		address, err := s.maps.ReverseGeocode(ctx, place.mapsLocation())
		if err != nil {
			s.logger.WithError(err).Debug("Reverse geocoding failed")
		} else {
			place.Address = address
		}
	}
	return place.Location()
}

func (s *rideService) checkBounds(distance, duration float64) error {
	boundsErr := validators.ValidateRideBounds(distance, duration, s.config.Limits)
	if boundsErr == nil {
		return nil
	}
	code := utils.CodeDistanceTooLong
	if boundsErr.Field == "duration" {
		code = utils.CodeDurationTooLong
	}
	return NewValidationError(code, boundsErr.Message)
}

func (s *rideService) loadRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError(utils.CodeNotFound, utils.ErrRideNotFound)
		}
		return nil, NewInternalError("failed to get ride", err)
	}
	return ride, nil
}

func (s *rideService) loadUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError(utils.CodeNotFound, utils.ErrUserNotFound)
		}
		return nil, NewInternalError("failed to get user", err)
	}
	return user, nil
}

// populate looks up the ride's parties. Missing users are left nil.
func (s *rideService) populate(ctx context.Context, ride *models.Ride) *models.RideDetails {
	details := &models.RideDetails{Ride: ride}
	if passenger, err := s.userRepo.GetByID(ctx, ride.PassengerID); err == nil {
		details.Passenger = passenger.Summary()
	}
	if ride.DriverID != nil {
		if driver, err := s.userRepo.GetByID(ctx, *ride.DriverID); err == nil {
			details.Driver = driver.Summary()
		}
	}
	return details
}
