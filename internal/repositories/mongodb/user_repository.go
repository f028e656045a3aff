package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userRepository struct {
	collection *mongo.Collection
	cache      Cache
}

// NewUserRepository caches users by id when cache is non-nil. Cached copies
// never carry the password hash; credential checks go through GetByEmail,
// which always reads the database.
func NewUserRepository(db *mongo.Database, cache Cache) interfaces.UserRepository {
	return &userRepository{
		collection: db.Collection("users"),
		cache:      cache,
	}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.ID = primitive.NewObjectID()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if user := r.getUserFromCache(ctx, id); user != nil {
		return user, nil
	}

	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	r.cacheUser(ctx, &user)
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, role models.UserRole, params *utils.PaginationParams) ([]*models.User, int64, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	return r.find(ctx, filter, params)
}

func (r *userRepository) GetPendingDrivers(ctx context.Context) ([]*models.User, error) {
	filter := bson.M{
		"role":        models.UserRoleDriver,
		"is_approved": false,
		"rejected_at": bson.M{"$exists": false},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending drivers: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]*models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode pending drivers: %w", err)
	}
	return users, nil
}

func (r *userRepository) SetApproval(ctx context.Context, driverID primitive.ObjectID, approved bool) (*models.User, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{"is_approved": approved, "updated_at": now},
	}
	if approved {
		update["$set"].(bson.M)["approved_at"] = now
		update["$unset"] = bson.M{"rejected_at": ""}
	} else {
		update["$set"].(bson.M)["rejected_at"] = now
		update["$set"].(bson.M)["is_available"] = false
		update["$unset"] = bson.M{"approved_at": ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": driverID, "role": models.UserRoleDriver},
		update, opts,
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update driver approval: %w", err)
	}

	r.invalidateUserCache(ctx, driverID)
	return &user, nil
}

func (r *userRepository) AddDocument(ctx context.Context, driverID primitive.ObjectID, doc models.Document) error {
	return r.updateOne(ctx, driverID, bson.M{
		"$push": bson.M{"documents": doc},
		"$set":  bson.M{"updated_at": time.Now()},
	})
}

func (r *userRepository) UpdateLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error {
	now := time.Now()
	location.Type = models.GeoJSONPoint
	return r.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			"location":             location,
			"last_location_update": now,
			"updated_at":           now,
		},
	})
}

func (r *userRepository) SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) error {
	return r.updateOne(ctx, id, bson.M{
		"$set": bson.M{"is_available": available, "updated_at": time.Now()},
	})
}

func (r *userRepository) FindNearbyDrivers(ctx context.Context, point models.Location, radiusMeters float64, limit int) ([]*models.User, error) {
	filter := bson.M{
		"role":         models.UserRoleDriver,
		"is_approved":  true,
		"is_available": true,
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        models.GeoJSONPoint,
					"coordinates": point.Coordinates,
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby drivers: %w", err)
	}
	defer cursor.Close(ctx)

	drivers := make([]*models.User, 0)
	if err := cursor.All(ctx, &drivers); err != nil {
		return nil, fmt.Errorf("failed to decode nearby drivers: %w", err)
	}
	return drivers, nil
}

func (r *userRepository) CountAvailableDrivers(ctx context.Context) (int64, error) {
	return r.count(ctx, bson.M{
		"role":         models.UserRoleDriver,
		"is_approved":  true,
		"is_available": true,
	})
}

func (r *userRepository) CountPendingDrivers(ctx context.Context) (int64, error) {
	return r.count(ctx, bson.M{
		"role":        models.UserRoleDriver,
		"is_approved": false,
		"rejected_at": bson.M{"$exists": false},
	})
}

func (r *userRepository) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	return r.count(ctx, bson.M{"role": role})
}

func (r *userRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (r *userRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}

	r.invalidateUserCache(ctx, id)
	return nil
}

func (r *userRepository) find(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.User, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]*models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, total, nil
}

func (r *userRepository) cacheUser(ctx context.Context, user *models.User) {
	if r.cache != nil {
		r.cache.Set(ctx, fmt.Sprintf(utils.CacheKeyUser, user.ID.Hex()), user, utils.UserCacheTTL)
	}
}

func (r *userRepository) getUserFromCache(ctx context.Context, id primitive.ObjectID) *models.User {
	if r.cache == nil {
		return nil
	}

	var user models.User
	if err := r.cache.Get(ctx, fmt.Sprintf(utils.CacheKeyUser, id.Hex()), &user); err != nil {
		return nil
	}
	return &user
}

func (r *userRepository) invalidateUserCache(ctx context.Context, id primitive.ObjectID) {
	if r.cache != nil {
		r.cache.Delete(ctx, fmt.Sprintf(utils.CacheKeyUser, id.Hex()))
	}
}
