package interfaces

import (
	"context"

	"ridehail/internal/models"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideTransition is a compare-and-set on a ride's status. The update applies
// only if the ride is currently in one of From and, when DriverID is set,
// assigned to that driver; RequireUnassigned demands that no driver is set.
type RideTransition struct {
	RideID            primitive.ObjectID
	From              []models.RideStatus
	DriverID          *primitive.ObjectID
	RequireUnassigned bool
	// ExclusiveDriver fails the transition with ErrDriverBusy when that driver
	// already holds another ride in models.ActiveRideStatuses.
	ExclusiveDriver *primitive.ObjectID
	To              models.RideStatus
	// Set holds additional fields written together with the status, keyed by
	// their stored field name.
	Set map[string]interface{}
}

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// ApplyTransition returns the updated ride, or ErrNoMatch when the guard
	// did not hold.
	ApplyTransition(ctx context.Context, t *RideTransition) (*models.Ride, error)

	// FindLatestForUser returns the most recent ride in one of statuses where
	// userID is the passenger or the driver, or nil when there is none.
	FindLatestForUser(ctx context.Context, userID primitive.ObjectID, statuses []models.RideStatus) (*models.Ride, error)

	// FindNearestPending returns the pending, unassigned ride whose origin is
	// closest to point within radius, or nil.
	FindNearestPending(ctx context.Context, point models.Location, radiusMeters float64) (*models.Ride, error)

	ListForUser(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	CountByStatus(ctx context.Context) (map[models.RideStatus]int64, error)
}
