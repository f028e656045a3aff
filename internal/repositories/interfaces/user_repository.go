package interfaces

import (
	"context"

	"ridehail/internal/models"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, role models.UserRole, params *utils.PaginationParams) ([]*models.User, int64, error)

	// Driver moderation
	GetPendingDrivers(ctx context.Context) ([]*models.User, error)
	SetApproval(ctx context.Context, driverID primitive.ObjectID, approved bool) (*models.User, error)
	AddDocument(ctx context.Context, driverID primitive.ObjectID, doc models.Document) error

	// Location and availability are unconditional overwrites.
	UpdateLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error
	SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) error

	// FindNearbyDrivers returns approved, available drivers within radius,
	// nearest first.
	FindNearbyDrivers(ctx context.Context, point models.Location, radiusMeters float64, limit int) ([]*models.User, error)

	CountAvailableDrivers(ctx context.Context) (int64, error)
	CountPendingDrivers(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role models.UserRole) (int64, error)
}
