package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type rideRepository struct {
	mu    sync.RWMutex
	rides map[primitive.ObjectID]*models.Ride
}

func NewRideRepository() interfaces.RideRepository {
	return &rideRepository{rides: make(map[primitive.ObjectID]*models.Ride)}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.CreatedAt = now
	ride.UpdatedAt = now
	r.rides[ride.ID] = cloneRide(ride)
	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ride, ok := r.rides[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneRide(ride), nil
}

// ApplyTransition checks the guard and writes under the same lock.
func (r *rideRepository) ApplyTransition(ctx context.Context, t *interfaces.RideTransition) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[t.RideID]
	if !ok || !ride.Status.In(t.From) {
		return nil, interfaces.ErrNoMatch
	}
	if t.DriverID != nil && !ride.IsDriver(*t.DriverID) {
		return nil, interfaces.ErrNoMatch
	}
	if t.DriverID == nil && t.RequireUnassigned && ride.DriverID != nil {
		return nil, interfaces.ErrNoMatch
	}
	if t.ExclusiveDriver != nil {
		for id, other := range r.rides {
			if id != t.RideID && other.Status.In(models.ActiveRideStatuses) && other.IsDriver(*t.ExclusiveDriver) {
				return nil, interfaces.ErrDriverBusy
			}
		}
	}

	updated := cloneRide(ride)
	for field, value := range t.Set {
		if err := setRideField(updated, field, value); err != nil {
			return nil, err
		}
	}
	updated.Status = t.To
	updated.UpdatedAt = time.Now()

	r.rides[t.RideID] = updated
	return cloneRide(updated), nil
}

func (r *rideRepository) FindLatestForUser(ctx context.Context, userID primitive.ObjectID, statuses []models.RideStatus) (*models.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.Ride
	for _, ride := range r.rides {
		if !ride.Status.In(statuses) || !ride.IsParty(userID) {
			continue
		}
		if latest == nil || ride.CreatedAt.After(latest.CreatedAt) {
			latest = ride
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneRide(latest), nil
}

func (r *rideRepository) FindNearestPending(ctx context.Context, point models.Location, radiusMeters float64) (*models.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var nearest *models.Ride
	best := radiusMeters
	for _, ride := range r.rides {
		if ride.Status != models.RideStatusPending || ride.DriverID != nil {
			continue
		}
		d := utils.DistanceMeters(point.Coordinates, ride.Origin.Coordinates)
		if d <= best {
			nearest = ride
			best = d
		}
	}
	if nearest == nil {
		return nil, nil
	}
	return cloneRide(nearest), nil
}

func (r *rideRepository) ListForUser(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Ride
	var keys []sortKey
	for _, ride := range r.rides {
		if !ride.IsParty(userID) {
			continue
		}
		matched = append(matched, ride)
		keys = append(keys, sortKey{
			id:      ride.ID,
			created: ride.CreatedAt,
			updated: ride.UpdatedAt,
			str:     map[string]string{"status": string(ride.Status)},
			num:     map[string]float64{"price": ride.Price},
		})
	}

	rides := make([]*models.Ride, 0)
	for _, i := range sortPage(keys, params) {
		rides = append(rides, cloneRide(matched[i]))
	}
	return rides, int64(len(matched)), nil
}

func (r *rideRepository) CountByStatus(ctx context.Context) (map[models.RideStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[models.RideStatus]int64{
		models.RideStatusPending:    0,
		models.RideStatusAccepted:   0,
		models.RideStatusInProgress: 0,
		models.RideStatusCompleted:  0,
		models.RideStatusCancelled:  0,
	}
	for _, ride := range r.rides {
		counts[ride.Status]++
	}
	return counts, nil
}

func setRideField(ride *models.Ride, field string, value interface{}) error {
	switch field {
	case "driver_id":
		id, ok := asObjectID(value)
		if !ok {
			return fmt.Errorf("invalid value for %s: %T", field, value)
		}
		ride.DriverID = id
	case "cancelled_by":
		id, ok := asObjectID(value)
		if !ok {
			return fmt.Errorf("invalid value for %s: %T", field, value)
		}
		ride.CancelledBy = id
	case "accepted_at", "start_time", "end_time", "cancelled_at":
		ts, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("invalid value for %s: %T", field, value)
		}
		switch field {
		case "accepted_at":
			ride.AcceptedAt = &ts
		case "start_time":
			ride.StartTime = &ts
		case "end_time":
			ride.EndTime = &ts
		case "cancelled_at":
			ride.CancelledAt = &ts
		}
	default:
		return fmt.Errorf("unsupported ride field %q", field)
	}
	return nil
}

func asObjectID(value interface{}) (*primitive.ObjectID, bool) {
	switch v := value.(type) {
	case primitive.ObjectID:
		return &v, true
	case *primitive.ObjectID:
		if v == nil {
			return nil, true
		}
		id := *v
		return &id, true
	}
	return nil, false
}

func cloneRide(ride *models.Ride) *models.Ride {
	c := *ride
	c.Origin = cloneLocation(ride.Origin)
	c.Destination = cloneLocation(ride.Destination)
	if ride.DriverID != nil {
		id := *ride.DriverID
		c.DriverID = &id
	}
	return &c
}
