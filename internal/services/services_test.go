package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/repositories/memory"
	"ridehail/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

// recordingSink keeps every delivered event.
type recordingSink struct {
	mu     sync.Mutex
	events []*models.Event
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Deliver(ctx context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type testEnv struct {
	users    interfaces.UserRepository
	rides    interfaces.RideRepository
	messages interfaces.MessageRepository
	sink     *recordingSink

	auth    AuthService
	ride    RideService
	user    UserService
	message MessageService
	admin   AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()

	env := &testEnv{
		users:    memory.NewUserRepository(),
		rides:    memory.NewRideRepository(),
		messages: memory.NewMessageRepository(),
		sink:     &recordingSink{},
	}
	events := NewEventService(log, env.sink)
	discovery := NewDiscoveryService(env.users, env.rides, nil, DiscoveryConfig{}, log)

	env.auth = NewAuthService(env.users, AuthConfig{JWTSecret: "test-secret", BcryptCost: bcrypt.MinCost}, log)
	env.ride = NewRideService(env.rides, env.users, NewPricingService(DefaultPricingConfig()), discovery, events, nil, RideServiceConfig{}, log)
	env.user = NewUserService(env.users, nil, 0, log)
	env.message = NewMessageService(env.messages, env.rides, env.users, events, log)
	env.admin = NewAdminService(env.users, env.rides, log)
	return env
}

func (e *testEnv) createUser(t *testing.T, name string, role models.UserRole) Actor {
	t.Helper()
	user := &models.User{
		Name:       name,
		Email:      name + "@example.com",
		Role:       role,
		IsApproved: true,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return Actor{ID: user.ID, Role: role}
}

// createDriver makes an approved, available driver at the given position.
func (e *testEnv) createDriver(t *testing.T, name string, lng, lat float64) Actor {
	t.Helper()
	ctx := context.Background()
	driver := e.createUser(t, name, models.UserRoleDriver)
	if err := e.users.SetAvailability(ctx, driver.ID, true); err != nil {
		t.Fatalf("availability: %v", err)
	}
	if err := e.users.UpdateLocation(ctx, driver.ID, models.NewPoint(lng, lat)); err != nil {
		t.Fatalf("location: %v", err)
	}
	return driver
}

func (e *testEnv) requestRide(t *testing.T, passenger Actor) *models.RideRequestResult {
	t.Helper()
	result, err := e.ride.RequestRide(context.Background(), passenger, exampleRideRequest(3500, 600))
	if err != nil {
		t.Fatalf("request ride: %v", err)
	}
	return result
}

func (e *testEnv) rideCount(t *testing.T) int64 {
	t.Helper()
	counts, err := e.rides.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("count rides: %v", err)
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}

func exampleRideRequest(distance, duration float64) *RideRequest {
	return &RideRequest{
		Origin:      PlaceInput{Lng: -49.2567, Lat: -16.6799, Address: "Praça Cívica"},
		Destination: PlaceInput{Lng: -49.2545, Lat: -16.6820, Address: "Rua 10"},
		Distance:    distance,
		Duration:    duration,
	}
}

func requireAppError(t *testing.T, err error, kind ErrorKind, code string) *AppError {
	t.Helper()
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T (%v)", err, err)
	}
	if appErr.Kind != kind {
		t.Fatalf("expected kind %d, got %d (%s)", kind, appErr.Kind, appErr.Message)
	}
	if code != "" && appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}
