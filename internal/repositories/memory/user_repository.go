package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
}

func NewUserRepository() interfaces.UserRepository {
	return &userRepository{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range r.users {
		if existing.Email == email {
			return interfaces.ErrDuplicateKey
		}
	}

	now := time.Now()
	user.ID = primitive.NewObjectID()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range r.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *userRepository) List(ctx context.Context, role models.UserRole, params *utils.PaginationParams) ([]*models.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.User
	var keys []sortKey
	for _, user := range r.users {
		if role != "" && user.Role != role {
			continue
		}
		matched = append(matched, user)
		keys = append(keys, sortKey{
			id:      user.ID,
			created: user.CreatedAt,
			updated: user.UpdatedAt,
			str:     map[string]string{"name": user.Name, "email": user.Email, "status": string(user.Role)},
		})
	}

	users := make([]*models.User, 0)
	for _, i := range sortPage(keys, params) {
		users = append(users, cloneUser(matched[i]))
	}
	return users, int64(len(matched)), nil
}

func (r *userRepository) GetPendingDrivers(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drivers := make([]*models.User, 0)
	for _, user := range r.users {
		if user.IsDriver() && !user.IsApproved && user.RejectedAt == nil {
			drivers = append(drivers, cloneUser(user))
		}
	}
	sort.Slice(drivers, func(i, j int) bool {
		return drivers[i].CreatedAt.Before(drivers[j].CreatedAt)
	})
	return drivers, nil
}

func (r *userRepository) SetApproval(ctx context.Context, driverID primitive.ObjectID, approved bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[driverID]
	if !ok || !user.IsDriver() {
		return nil, interfaces.ErrNotFound
	}

	now := time.Now()
	user.IsApproved = approved
	user.UpdatedAt = now
	if approved {
		user.ApprovedAt = &now
		user.RejectedAt = nil
	} else {
		user.RejectedAt = &now
		user.ApprovedAt = nil
		user.IsAvailable = false
	}
	return cloneUser(user), nil
}

func (r *userRepository) AddDocument(ctx context.Context, driverID primitive.ObjectID, doc models.Document) error {
	return r.update(driverID, func(user *models.User) {
		user.Documents = append(user.Documents, doc)
	})
}

func (r *userRepository) UpdateLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error {
	return r.update(id, func(user *models.User) {
		now := time.Now()
		loc := cloneLocation(location)
		loc.Type = models.GeoJSONPoint
		user.Location = &loc
		user.LastLocationUpdate = &now
	})
}

func (r *userRepository) SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) error {
	return r.update(id, func(user *models.User) {
		user.IsAvailable = available
	})
}

func (r *userRepository) FindNearbyDrivers(ctx context.Context, point models.Location, radiusMeters float64, limit int) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type candidate struct {
		user     *models.User
		distance float64
	}
	var candidates []candidate
	for _, user := range r.users {
		if !user.Dispatchable() || user.Location == nil {
			continue
		}
		d := utils.DistanceMeters(point.Coordinates, user.Location.Coordinates)
		if d <= radiusMeters {
			candidates = append(candidates, candidate{user: user, distance: d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	drivers := make([]*models.User, 0, len(candidates))
	for _, c := range candidates {
		drivers = append(drivers, cloneUser(c.user))
	}
	return drivers, nil
}

func (r *userRepository) CountAvailableDrivers(ctx context.Context) (int64, error) {
	return r.count(func(u *models.User) bool { return u.Dispatchable() }), nil
}

func (r *userRepository) CountPendingDrivers(ctx context.Context) (int64, error) {
	return r.count(func(u *models.User) bool {
		return u.IsDriver() && !u.IsApproved && u.RejectedAt == nil
	}), nil
}

func (r *userRepository) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	return r.count(func(u *models.User) bool { return u.Role == role }), nil
}

func (r *userRepository) count(match func(*models.User) bool) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, user := range r.users {
		if match(user) {
			n++
		}
	}
	return n
}

func (r *userRepository) update(id primitive.ObjectID, apply func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	apply(user)
	user.UpdatedAt = time.Now()
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.Vehicle != nil {
		v := *u.Vehicle
		c.Vehicle = &v
	}
	if u.Documents != nil {
		c.Documents = append([]models.Document(nil), u.Documents...)
	}
	if u.Location != nil {
		loc := cloneLocation(*u.Location)
		c.Location = &loc
	}
	return &c
}

func cloneLocation(l models.Location) models.Location {
	l.Coordinates = append([]float64(nil), l.Coordinates...)
	return l
}
