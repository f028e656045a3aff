package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type rideRepository struct {
	collection *mongo.Collection
}

func NewRideRepository(db *mongo.Database) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection("rides"),
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.CreatedAt = now
	ride.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, ride); err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}
	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return &ride, nil
}

// ApplyTransition runs the whole guard inside a single FindOneAndUpdate, so
// two callers racing on the same ride cannot both match.
func (r *rideRepository) ApplyTransition(ctx context.Context, t *interfaces.RideTransition) (*models.Ride, error) {
	filter := bson.M{
		"_id":    t.RideID,
		"status": bson.M{"$in": t.From},
	}
	if t.DriverID != nil {
		filter["driver_id"] = *t.DriverID
	} else if t.RequireUnassigned {
		filter["driver_id"] = nil
	}

	set := bson.M{
		"status":     t.To,
		"updated_at": time.Now(),
	}
	for field, value := range t.Set {
		set[field] = value
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var ride models.Ride
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNoMatch
		}
		// the active-driver partial unique index rejects a second active ride
		if t.ExclusiveDriver != nil && mongo.IsDuplicateKeyError(err) {
			return nil, interfaces.ErrDriverBusy
		}
		return nil, fmt.Errorf("failed to update ride status: %w", err)
	}
	return &ride, nil
}

func (r *rideRepository) FindLatestForUser(ctx context.Context, userID primitive.ObjectID, statuses []models.RideStatus) (*models.Ride, error) {
	filter := bson.M{
		"status": bson.M{"$in": statuses},
		"$or": []bson.M{
			{"passenger_id": userID},
			{"driver_id": userID},
		},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var ride models.Ride
	err := r.collection.FindOne(ctx, filter, opts).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get current ride: %w", err)
	}
	return &ride, nil
}

func (r *rideRepository) FindNearestPending(ctx context.Context, point models.Location, radiusMeters float64) (*models.Ride, error) {
	filter := bson.M{
		"status":    models.RideStatusPending,
		"driver_id": nil,
		"origin": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        models.GeoJSONPoint,
					"coordinates": point.Coordinates,
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	var ride models.Ride
	err := r.collection.FindOne(ctx, filter).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find nearby rides: %w", err)
	}
	return &ride, nil
}

func (r *rideRepository) ListForUser(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"passenger_id": userID},
			{"driver_id": userID},
		},
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get ride history: %w", err)
	}
	defer cursor.Close(ctx)

	rides := make([]*models.Ride, 0)
	if err := cursor.All(ctx, &rides); err != nil {
		return nil, 0, fmt.Errorf("failed to decode rides: %w", err)
	}
	return rides, total, nil
}

func (r *rideRepository) CountByStatus(ctx context.Context) (map[models.RideStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ride statuses: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.RideStatus `bson:"_id"`
		Count  int64             `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode ride statuses: %w", err)
	}

	counts := map[models.RideStatus]int64{
		models.RideStatusPending:    0,
		models.RideStatusAccepted:   0,
		models.RideStatusInProgress: 0,
		models.RideStatusCompleted:  0,
		models.RideStatusCancelled:  0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
