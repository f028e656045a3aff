package services

import (
	"context"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"
)

type DiscoveryConfig struct {
	SearchRadiusMeters float64
	DriverCountTTL     time.Duration
}

// DiscoveryService answers "who is near" and "what is near" questions. It
// never reserves anything; accepting a ride is the only arbiter.
type DiscoveryService interface {
	FindNearbyDrivers(ctx context.Context, point models.Location, radiusMeters float64) ([]*models.User, error)
	FindAvailableRideForDriver(ctx context.Context, driver *models.User) (*models.Ride, error)
	CountAvailableDrivers(ctx context.Context) (int64, error)
}

type discoveryService struct {
	userRepo interfaces.UserRepository
	rideRepo interfaces.RideRepository
	cache    Cache
	config   DiscoveryConfig
	logger   *logger.Logger
}

func NewDiscoveryService(
	userRepo interfaces.UserRepository,
	rideRepo interfaces.RideRepository,
	cache Cache,
	config DiscoveryConfig,
	logger *logger.Logger,
) DiscoveryService {
	if config.SearchRadiusMeters <= 0 {
		config.SearchRadiusMeters = utils.DefaultSearchRadiusM
	}
	if config.DriverCountTTL <= 0 {
		config.DriverCountTTL = utils.AvailableDriversCacheTTL
	}
	return &discoveryService{
		userRepo: userRepo,
		rideRepo: rideRepo,
		cache:    cache,
		config:   config,
		logger:   logger.WithComponent("discovery"),
	}
}

func (s *discoveryService) FindNearbyDrivers(ctx context.Context, point models.Location, radiusMeters float64) ([]*models.User, error) {
	if !point.IsValid() {
		return nil, NewValidationError(utils.CodeValidation, "invalid coordinates")
	}
	if radiusMeters <= 0 {
		radiusMeters = s.config.SearchRadiusMeters
	}
	if radiusMeters > utils.MaxSearchRadiusM {
		radiusMeters = utils.MaxSearchRadiusM
	}

	drivers, err := s.userRepo.FindNearbyDrivers(ctx, point, radiusMeters, utils.DefaultNearbyDriverLimit)
	if err != nil {
		return nil, NewInternalError("failed to find nearby drivers", err)
	}
	return drivers, nil
}

// FindAvailableRideForDriver returns the nearest pending, unclaimed ride
// within the search radius of the driver's last known location, or nil.
func (s *discoveryService) FindAvailableRideForDriver(ctx context.Context, driver *models.User) (*models.Ride, error) {
	if driver.Location == nil || !driver.Location.IsValid() {
		return nil, nil
	}

	ride, err := s.rideRepo.FindNearestPending(ctx, *driver.Location, s.config.SearchRadiusMeters)
	if err != nil {
		return nil, NewInternalError("failed to find available rides", err)
	}
	if ride == nil || ride.Status != models.RideStatusPending || ride.DriverID != nil {
		return nil, nil
	}
	return ride, nil
}

// CountAvailableDrivers is advisory. The count is cached briefly when a
// cache is configured.
func (s *discoveryService) CountAvailableDrivers(ctx context.Context) (int64, error) {
	if s.cache != nil {
		var count int64
		if err := s.cache.Get(ctx, utils.CacheKeyAvailableDrivers, &count); err == nil {
			return count, nil
		}
	}

	count, err := s.userRepo.CountAvailableDrivers(ctx)
	if err != nil {
		return 0, NewInternalError("failed to count available drivers", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, utils.CacheKeyAvailableDrivers, count, s.config.DriverCountTTL); err != nil {
			s.logger.WithError(err).Debug("Failed to cache driver count")
		}
	}
	return count, nil
}
