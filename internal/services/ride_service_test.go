package services

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"ridehail/internal/models"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"
	"ridehail/pkg/maps"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRequestRidePersistsServerPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)
	env.createDriver(t, "dora", -49.2560, -16.6790)

	result := env.requestRide(t, passenger)
	if result.Price != 11.50 {
		t.Fatalf("expected price 11.50, got %v", result.Price)
	}
	if result.Status != models.RideStatusPending || result.DriverID != nil {
		t.Fatalf("unexpected new ride: %+v", result.Ride)
	}
	if result.AvailableDrivers != 1 {
		t.Fatalf("expected 1 available driver, got %d", result.AvailableDrivers)
	}
	if result.Passenger == nil || result.Passenger.Name != "paula" {
		t.Fatalf("passenger not populated: %+v", result.Passenger)
	}

	stored, err := env.rides.GetByID(ctx, result.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if stored.Price != 11.50 || stored.Origin.Coordinates[0] != -49.2567 || stored.Origin.Address != "Praça Cívica" {
		t.Fatalf("unexpected stored ride: %+v", stored)
	}

	if types := env.sink.types(); len(types) != 1 || types[0] != models.EventRideRequested {
		t.Fatalf("expected one ride_requested event, got %v", types)
	}
	if !env.sink.events[0].Drivers {
		t.Fatal("ride_requested should be broadcast to drivers")
	}
}

func TestRequestRideRejectsOutOfBounds(t *testing.T) {
	env := newTestEnv(t)
	passenger := env.createUser(t, "paula", models.UserRolePassenger)

	_, err := env.ride.RequestRide(context.Background(), passenger, exampleRideRequest(100001, 600))
	appErr := requireAppError(t, err, KindValidation, utils.CodeDistanceTooLong)
	if appErr.HTTPStatus() != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", appErr.HTTPStatus())
	}

	_, err = env.ride.RequestRide(context.Background(), passenger, exampleRideRequest(3500, 7201))
	requireAppError(t, err, KindValidation, utils.CodeDurationTooLong)

	if n := env.rideCount(t); n != 0 {
		t.Fatalf("expected no ride persisted, found %d", n)
	}
	if len(env.sink.types()) != 0 {
		t.Fatal("no event should be published for a rejected ride")
	}
}

func TestRequestRideBoundsAndPriceUseUnroundedInputs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)

	_, err := env.ride.RequestRide(ctx, passenger, exampleRideRequest(100000.4, 600))
	requireAppError(t, err, KindValidation, utils.CodeDistanceTooLong)
	_, err = env.ride.RequestRide(ctx, passenger, exampleRideRequest(3500, 7200.4))
	requireAppError(t, err, KindValidation, utils.CodeDurationTooLong)
	if n := env.rideCount(t); n != 0 {
		t.Fatalf("expected no ride persisted, found %d", n)
	}

	result, err := env.ride.RequestRide(ctx, passenger, exampleRideRequest(1000, 1.4))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	stored, err := env.rides.GetByID(ctx, result.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	want := NewPricingService(DefaultPricingConfig()).Estimate(1000, 1.4)
	if want != 4.01 || stored.Price != want {
		t.Fatalf("stored price %v, want %v", stored.Price, want)
	}
	if stored.Distance != 1000 || stored.Duration != 1 {
		t.Fatalf("stored route not rounded: %v m, %v s", stored.Distance, stored.Duration)
	}
}

func TestRequestRideRequiresPassengerAndSingleOpenRide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)
	driver := env.createDriver(t, "dora", 0, 0)

	_, err := env.ride.RequestRide(ctx, driver, exampleRideRequest(3500, 600))
	requireAppError(t, err, KindAuthorization, utils.CodeForbidden)

	env.requestRide(t, passenger)
	_, err = env.ride.RequestRide(ctx, passenger, exampleRideRequest(3500, 600))
	requireAppError(t, err, KindConflict, utils.CodeActiveRideExists)

	_, err = env.ride.RequestRide(ctx, passenger, &RideRequest{
		Origin:      PlaceInput{Lng: 200, Lat: 0},
		Destination: PlaceInput{Lng: 0, Lat: 0},
		Distance:    10,
		Duration:    10,
	})
	requireAppError(t, err, KindValidation, utils.CodeValidation)
}

func TestConcurrentAcceptHasSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)
	ride := env.requestRide(t, passenger)

	const contenders = 10
	drivers := make([]Actor, contenders)
	for i := range drivers {
		drivers[i] = env.createDriver(t, "driver"+string(rune('a'+i)), -49.2567, -16.6799)
	}

	var wg sync.WaitGroup
	results := make([]error, contenders)
	for i, driver := range drivers {
		wg.Add(1)
		go func(i int, driver Actor) {
			defer wg.Done()
			_, results[i] = env.ride.AcceptRide(ctx, driver, ride.ID)
		}(i, driver)
	}
	wg.Wait()

	var winner *Actor
	for i, err := range results {
		if err == nil {
			if winner != nil {
				t.Fatal("more than one driver accepted the ride")
			}
			winner = &drivers[i]
			continue
		}
		requireAppError(t, err, KindNotFound, utils.CodeRideUnavailable)
	}
	if winner == nil {
		t.Fatal("no driver accepted the ride")
	}

	stored, err := env.rides.GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if stored.Status != models.RideStatusAccepted || !stored.IsDriver(winner.ID) {
		t.Fatalf("ride not assigned to the winner: %+v", stored)
	}
}

func TestConcurrentAcceptsBySameDriverClaimOneRide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	driver := env.createDriver(t, "dora", -49.2567, -16.6799)

	const pending = 6
	rides := make([]*models.RideRequestResult, pending)
	for i := range rides {
		rides[i] = env.requestRide(t, env.createUser(t, "passenger"+string(rune('a'+i)), models.UserRolePassenger))
	}

	var wg sync.WaitGroup
	results := make([]error, pending)
	for i, ride := range rides {
		wg.Add(1)
		go func(i int, rideID primitive.ObjectID) {
			defer wg.Done()
			_, results[i] = env.ride.AcceptRide(ctx, driver, rideID)
		}(i, ride.ID)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
			continue
		}
		requireAppError(t, err, KindConflict, utils.CodeDriverBusy)
	}
	if won != 1 {
		t.Fatalf("driver accepted %d rides at once", won)
	}
}

func TestAcceptRideGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)
	other := env.createUser(t, "olga", models.UserRolePassenger)
	driver := env.createDriver(t, "dora", 0, 0)
	ride := env.requestRide(t, passenger)

	_, err := env.ride.AcceptRide(ctx, passenger, ride.ID)
	requireAppError(t, err, KindAuthorization, utils.CodeForbidden)

	unapproved := env.createDriver(t, "newbie", 0, 0)
	if _, err := env.users.SetApproval(ctx, unapproved.ID, false); err != nil {
		t.Fatalf("set approval: %v", err)
	}
	_, err = env.ride.AcceptRide(ctx, unapproved, ride.ID)
	requireAppError(t, err, KindAuthorization, utils.CodeDriverNotApproved)

	_, err = env.ride.AcceptRide(ctx, driver, primitive.NewObjectID())
	requireAppError(t, err, KindNotFound, utils.CodeRideUnavailable)

	if _, err := env.ride.AcceptRide(ctx, driver, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	second := env.requestRide(t, other)
	_, err = env.ride.AcceptRide(ctx, driver, second.ID)
	requireAppError(t, err, KindConflict, utils.CodeDriverBusy)
}

func TestRideLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)
	driver := env.createDriver(t, "dora", 0, 0)
	intruder := env.createDriver(t, "ivan", 0, 0)
	ride := env.requestRide(t, passenger)

	_, err := env.ride.StartRide(ctx, driver, ride.ID)
	requireAppError(t, err, KindConflict, utils.CodeInvalidTransition)

	accepted, err := env.ride.AcceptRide(ctx, driver, ride.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Driver == nil || accepted.Driver.ID != driver.ID || accepted.AcceptedAt == nil {
		t.Fatalf("accepted ride not populated: %+v", accepted)
	}

	_, err = env.ride.StartRide(ctx, intruder, ride.ID)
	requireAppError(t, err, KindAuthorization, utils.CodeForbidden)

	_, err = env.ride.CompleteRide(ctx, driver, ride.ID)
	requireAppError(t, err, KindConflict, utils.CodeInvalidTransition)

	started, err := env.ride.StartRide(ctx, driver, ride.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != models.RideStatusInProgress || started.StartTime == nil {
		t.Fatalf("unexpected started ride: %+v", started.Ride)
	}

	current, err := env.ride.GetCurrentRide(ctx, passenger)
	if err != nil || current == nil || current.ID != ride.ID {
		t.Fatalf("expected current ride for passenger, got %+v (%v)", current, err)
	}

	if err := env.users.SetAvailability(ctx, driver.ID, false); err != nil {
		t.Fatalf("availability: %v", err)
	}
	completed, err := env.ride.CompleteRide(ctx, driver, ride.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != models.RideStatusCompleted || completed.EndTime == nil {
		t.Fatalf("unexpected completed ride: %+v", completed.Ride)
	}

	user, err := env.users.GetByID(ctx, driver.ID)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	if !user.IsAvailable {
		t.Fatal("driver should be available after completing a ride")
	}

	current, err = env.ride.GetCurrentRide(ctx, driver)
	if err != nil || current != nil {
		t.Fatalf("expected no current ride after completion, got %+v (%v)", current, err)
	}

	want := []string{models.EventRideRequested, models.EventRideAccepted, models.EventRideStarted, models.EventRideCompleted}
	got := env.sink.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "ada", models.UserRoleAdmin)

	setup := map[models.RideStatus]func(t *testing.T, passenger, driver Actor, rideID primitive.ObjectID){
		models.RideStatusCompleted: func(t *testing.T, passenger, driver Actor, rideID primitive.ObjectID) {
			if _, err := env.ride.AcceptRide(ctx, driver, rideID); err != nil {
				t.Fatalf("accept: %v", err)
			}
			if _, err := env.ride.StartRide(ctx, driver, rideID); err != nil {
				t.Fatalf("start: %v", err)
			}
			if _, err := env.ride.CompleteRide(ctx, driver, rideID); err != nil {
				t.Fatalf("complete: %v", err)
			}
		},
		models.RideStatusCancelled: func(t *testing.T, passenger, driver Actor, rideID primitive.ObjectID) {
			if _, err := env.ride.AcceptRide(ctx, driver, rideID); err != nil {
				t.Fatalf("accept: %v", err)
			}
			if _, err := env.ride.CancelRide(ctx, passenger, rideID); err != nil {
				t.Fatalf("cancel: %v", err)
			}
		},
	}

	for status, reach := range setup {
		t.Run(string(status), func(t *testing.T) {
			passenger := env.createUser(t, "p-"+string(status), models.UserRolePassenger)
			driver := env.createDriver(t, "d-"+string(status), 0, 0)
			other := env.createDriver(t, "o-"+string(status), 0, 0)
			ride := env.requestRide(t, passenger)
			reach(t, passenger, driver, ride.ID)

			before, err := env.rides.GetByID(ctx, ride.ID)
			if err != nil {
				t.Fatalf("get ride: %v", err)
			}
			if before.Status != status {
				t.Fatalf("expected %s, got %s", status, before.Status)
			}

			attempts := map[string]func() error{
				"accept": func() error { _, err := env.ride.AcceptRide(ctx, other, ride.ID); return err },
				"start":  func() error { _, err := env.ride.StartRide(ctx, driver, ride.ID); return err },
				"complete": func() error {
					_, err := env.ride.CompleteRide(ctx, driver, ride.ID)
					return err
				},
				"cancel by passenger": func() error { _, err := env.ride.CancelRide(ctx, passenger, ride.ID); return err },
				"cancel by admin":     func() error { _, err := env.ride.CancelRide(ctx, admin, ride.ID); return err },
			}
			for name, attempt := range attempts {
				if err := attempt(); err == nil {
					t.Fatalf("%s succeeded on a %s ride", name, status)
				}
			}

			after, err := env.rides.GetByID(ctx, ride.ID)
			if err != nil {
				t.Fatalf("get ride: %v", err)
			}
			if after.Status != status || !after.IsDriver(driver.ID) {
				t.Fatalf("ride changed after rejected transitions: %+v", after)
			}
		})
	}
}

func TestCancelRideAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)
	stranger := env.createUser(t, "sam", models.UserRolePassenger)
	strangerDriver := env.createDriver(t, "sid", 0, 0)
	admin := env.createUser(t, "ada", models.UserRoleAdmin)
	ride := env.requestRide(t, passenger)

	_, err := env.ride.CancelRide(ctx, stranger, ride.ID)
	requireAppError(t, err, KindAuthorization, utils.CodeForbidden)
	_, err = env.ride.CancelRide(ctx, strangerDriver, ride.ID)
	requireAppError(t, err, KindAuthorization, utils.CodeForbidden)

	cancelled, err := env.ride.CancelRide(ctx, admin, ride.ID)
	if err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if cancelled.Status != models.RideStatusCancelled || cancelled.CancelledBy == nil || *cancelled.CancelledBy != admin.ID {
		t.Fatalf("unexpected cancelled ride: %+v", cancelled.Ride)
	}
}

func TestGetAvailableRidesOnlyReturnsPendingUnclaimed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)
	second := env.createUser(t, "pedro", models.UserRolePassenger)
	driver := env.createDriver(t, "dora", -49.2560, -16.6790)
	rival := env.createDriver(t, "rita", -49.2560, -16.6790)

	ride := env.requestRide(t, passenger)

	rides, err := env.ride.GetAvailableRides(ctx, driver)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(rides) != 1 || rides[0].ID != ride.ID {
		t.Fatalf("expected the pending ride, got %+v", rides)
	}

	if _, err := env.ride.AcceptRide(ctx, rival, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	rides, err = env.ride.GetAvailableRides(ctx, driver)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(rides) != 0 {
		t.Fatalf("claimed ride offered again: %+v", rides)
	}

	far := env.requestRide(t, second)
	if _, err := env.ride.CancelRide(ctx, second, far.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	rides, err = env.ride.GetAvailableRides(ctx, driver)
	if err != nil || len(rides) != 0 {
		t.Fatalf("cancelled ride offered: %+v (%v)", rides, err)
	}

	third := env.createUser(t, "tina", models.UserRolePassenger)
	pending := env.requestRide(t, third)
	if err := env.users.SetAvailability(ctx, driver.ID, false); err != nil {
		t.Fatalf("availability: %v", err)
	}
	rides, err = env.ride.GetAvailableRides(ctx, driver)
	if err != nil || len(rides) != 0 {
		t.Fatalf("offline driver offered a ride: %+v (%v)", rides, err)
	}

	if err := env.users.SetAvailability(ctx, driver.ID, true); err != nil {
		t.Fatalf("availability: %v", err)
	}
	rides, err = env.ride.GetAvailableRides(ctx, driver)
	if err != nil || len(rides) != 1 || rides[0].ID != pending.ID {
		t.Fatalf("expected pending ride %s, got %+v (%v)", pending.ID.Hex(), rides, err)
	}
	for _, r := range rides {
		if r.Status != models.RideStatusPending || r.DriverID != nil {
			t.Fatalf("offered ride is not pending and unclaimed: %+v", r.Ride)
		}
	}

	_, err = env.ride.GetAvailableRides(ctx, passenger)
	requireAppError(t, err, KindAuthorization, utils.CodeForbidden)
}

func TestGetRideVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)
	stranger := env.createUser(t, "sam", models.UserRolePassenger)
	driver := env.createDriver(t, "dora", 0, 0)
	onlooker := env.createDriver(t, "otto", 0, 0)
	ride := env.requestRide(t, passenger)

	if _, err := env.ride.GetRide(ctx, onlooker, ride.ID); err != nil {
		t.Fatalf("drivers may read pending rides: %v", err)
	}
	_, err := env.ride.GetRide(ctx, stranger, ride.ID)
	requireAppError(t, err, KindAuthorization, utils.CodeForbidden)

	if _, err := env.ride.AcceptRide(ctx, driver, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err = env.ride.GetRide(ctx, onlooker, ride.ID)
	requireAppError(t, err, KindAuthorization, utils.CodeForbidden)

	details, err := env.ride.GetRide(ctx, passenger, ride.ID)
	if err != nil {
		t.Fatalf("passenger read: %v", err)
	}
	if details.Driver == nil || details.Driver.Name != "dora" {
		t.Fatalf("driver not populated: %+v", details.Driver)
	}

	_, err = env.ride.GetRide(ctx, passenger, primitive.NewObjectID())
	requireAppError(t, err, KindNotFound, utils.CodeNotFound)
}

func TestUpdateRideLocationEmitsDriverLocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.createUser(t, "paula", models.UserRolePassenger)
	driver := env.createDriver(t, "dora", 0, 0)
	ride := env.requestRide(t, passenger)

	_, err := env.ride.UpdateRideLocation(ctx, driver, ride.ID, &LocationUpdateRequest{Coordinates: []float64{1, 1}})
	requireAppError(t, err, KindAuthorization, utils.CodeForbidden)

	if _, err := env.ride.AcceptRide(ctx, driver, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.ride.UpdateRideLocation(ctx, driver, ride.ID, &LocationUpdateRequest{Coordinates: []float64{-49.25, -16.68}}); err != nil {
		t.Fatalf("update location: %v", err)
	}

	user, _ := env.users.GetByID(ctx, driver.ID)
	if user.Location == nil || user.Location.Coordinates[0] != -49.25 {
		t.Fatalf("driver location not stored: %+v", user.Location)
	}

	last := env.sink.events[len(env.sink.events)-1]
	if last.Type != models.EventDriverLocation || last.Location == nil || len(last.Recipients) != 2 {
		t.Fatalf("unexpected location event: %+v", last)
	}
}

func TestEstimateRideRequiresRouteWithoutMaps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createDriver(t, "dora", 0, 0)

	estimate, err := env.ride.EstimateRide(ctx, &EstimateRequest{
		Origin:      PlaceInput{Lng: -49.2567, Lat: -16.6799},
		Destination: PlaceInput{Lng: -49.2545, Lat: -16.6820},
		Distance:    3500,
		Duration:    600,
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if estimate.Price != 11.50 || estimate.AvailableDrivers != 1 {
		t.Fatalf("unexpected estimate: %+v", estimate)
	}

	_, err = env.ride.EstimateRide(ctx, &EstimateRequest{
		Origin:      PlaceInput{Lng: -49.2567, Lat: -16.6799},
		Destination: PlaceInput{Lng: -49.2545, Lat: -16.6820},
	})
	requireAppError(t, err, KindValidation, utils.CodeValidation)
	if n := env.rideCount(t); n != 0 {
		t.Fatalf("estimate must not persist rides, found %d", n)
	}
}

type fakeMaps struct {
	route   *maps.RouteEstimate
	address string
}

func (f *fakeMaps) EstimateRoute(ctx context.Context, origin, destination maps.Location) (*maps.RouteEstimate, error) {
	if f.route == nil {
		return nil, maps.ErrNoRoute
	}
	return f.route, nil
}

func (f *fakeMaps) ReverseGeocode(ctx context.Context, location maps.Location) (string, error) {
	return f.address, nil
}

func TestRequestRideResolvesRouteAndAddressFromMaps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	log := logger.NewNop()
	provider := &fakeMaps{
		route:   &maps.RouteEstimate{DistanceMeters: 3500.4, DurationSeconds: 599.6},
		address: "Avenida Goiás, 100",
	}
	discovery := NewDiscoveryService(env.users, env.rides, nil, DiscoveryConfig{}, log)
	rides := NewRideService(env.rides, env.users, NewPricingService(DefaultPricingConfig()), discovery, NewEventService(log, env.sink), provider, RideServiceConfig{}, log)
	passenger := env.createUser(t, "paula", models.UserRolePassenger)

	result, err := rides.RequestRide(ctx, passenger, &RideRequest{
		Origin:      PlaceInput{Lng: -49.2567, Lat: -16.6799, Address: "Praça Cívica"},
		Destination: PlaceInput{Lng: -49.2545, Lat: -16.6820},
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if result.Distance != 3500 || result.Duration != 600 || result.Price != 11.50 {
		t.Fatalf("route not resolved: %+v", result.Ride)
	}
	if result.Origin.Address != "Praça Cívica" || result.Destination.Address != "Avenida Goiás, 100" {
		t.Fatalf("addresses: %q, %q", result.Origin.Address, result.Destination.Address)
	}

	provider.route = nil
	_, err = rides.EstimateRide(ctx, &EstimateRequest{
		Origin:      PlaceInput{Lng: -49.2567, Lat: -16.6799},
		Destination: PlaceInput{Lng: 0, Lat: 0},
	})
	requireAppError(t, err, KindValidation, utils.CodeValidation)
}
