package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newPendingRide(t *testing.T, repo interfaces.RideRepository, lng, lat float64) *models.Ride {
	t.Helper()
	ride := &models.Ride{
		PassengerID: primitive.NewObjectID(),
		Origin:      models.NewPoint(lng, lat),
		Destination: models.NewPoint(lng+0.01, lat+0.01),
		Status:      models.RideStatusPending,
	}
	if err := repo.Create(context.Background(), ride); err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return ride
}

func TestApplyTransitionSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewRideRepository()
	ride := newPendingRide(t, repo, -49.2567, -16.6799)

	const contenders = 16
	var wg sync.WaitGroup
	winners := make(chan primitive.ObjectID, contenders)
	for i := 0; i < contenders; i++ {
		driverID := primitive.NewObjectID()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyTransition(ctx, &interfaces.RideTransition{
				RideID:            ride.ID,
				From:              []models.RideStatus{models.RideStatusPending},
				RequireUnassigned: true,
				To:                models.RideStatusAccepted,
				Set:               map[string]interface{}{"driver_id": driverID, "accepted_at": time.Now()},
			})
			if err == nil {
				winners <- driverID
			} else if err != interfaces.ErrNoMatch {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(winners)

	var won []primitive.ObjectID
	for id := range winners {
		won = append(won, id)
	}
	if len(won) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(won))
	}

	stored, err := repo.GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if stored.Status != models.RideStatusAccepted || !stored.IsDriver(won[0]) {
		t.Fatalf("ride not assigned to winner: status=%s driver=%v", stored.Status, stored.DriverID)
	}
	if stored.AcceptedAt == nil {
		t.Fatal("accepted_at not set")
	}
}

func TestApplyTransitionDriverGuard(t *testing.T) {
	ctx := context.Background()
	repo := NewRideRepository()
	ride := newPendingRide(t, repo, 10, 10)
	driverID := primitive.NewObjectID()

	if _, err := repo.ApplyTransition(ctx, &interfaces.RideTransition{
		RideID: ride.ID,
		From:   []models.RideStatus{models.RideStatusPending},
		To:     models.RideStatusAccepted,
		Set:    map[string]interface{}{"driver_id": driverID},
	}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	other := primitive.NewObjectID()
	_, err := repo.ApplyTransition(ctx, &interfaces.RideTransition{
		RideID:   ride.ID,
		From:     []models.RideStatus{models.RideStatusAccepted},
		DriverID: &other,
		To:       models.RideStatusInProgress,
	})
	if err != interfaces.ErrNoMatch {
		t.Fatalf("expected ErrNoMatch for wrong driver, got %v", err)
	}

	started, err := repo.ApplyTransition(ctx, &interfaces.RideTransition{
		RideID:   ride.ID,
		From:     []models.RideStatus{models.RideStatusAccepted},
		DriverID: &driverID,
		To:       models.RideStatusInProgress,
		Set:      map[string]interface{}{"start_time": time.Now()},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != models.RideStatusInProgress || started.StartTime == nil {
		t.Fatalf("unexpected ride after start: %+v", started)
	}
}

func TestFindNearestPendingSkipsClaimedRides(t *testing.T) {
	ctx := context.Background()
	repo := NewRideRepository()

	near := newPendingRide(t, repo, -49.2567, -16.6799)
	farther := newPendingRide(t, repo, -49.2400, -16.6700)
	newPendingRide(t, repo, 10, 10)

	driverID := primitive.NewObjectID()
	if _, err := repo.ApplyTransition(ctx, &interfaces.RideTransition{
		RideID:            near.ID,
		From:              []models.RideStatus{models.RideStatusPending},
		RequireUnassigned: true,
		To:                models.RideStatusAccepted,
		Set:               map[string]interface{}{"driver_id": driverID},
	}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	got, err := repo.FindNearestPending(ctx, models.NewPoint(-49.2567, -16.6799), 10000)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.ID != farther.ID {
		t.Fatalf("expected ride %s, got %+v", farther.ID.Hex(), got)
	}

	got, err = repo.FindNearestPending(ctx, models.NewPoint(100, 50), 10000)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no ride outside radius, got %s", got.ID.Hex())
	}
}

func TestFindNearbyDriversOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	create := func(name string, lng, lat float64, approved, available bool) *models.User {
		u := &models.User{Name: name, Email: name + "@example.com", Role: models.UserRoleDriver, IsApproved: approved, IsAvailable: available}
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if err := repo.UpdateLocation(ctx, u.ID, models.NewPoint(lng, lat)); err != nil {
			t.Fatalf("location %s: %v", name, err)
		}
		return u
	}

	far := create("far", -49.2000, -16.6799, true, true)
	near := create("near", -49.2560, -16.6799, true, true)
	create("offline", -49.2567, -16.6799, true, false)
	create("unapproved", -49.2567, -16.6799, false, true)

	drivers, err := repo.FindNearbyDrivers(ctx, models.NewPoint(-49.2567, -16.6799), 10000, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(drivers) != 2 || drivers[0].ID != near.ID || drivers[1].ID != far.ID {
		t.Fatalf("unexpected drivers: %+v", drivers)
	}

	if err := repo.Create(ctx, &models.User{Email: "NEAR@example.com"}); err != interfaces.ErrDuplicateKey {
		t.Fatalf("expected duplicate key, got %v", err)
	}
}

func TestListForUserPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewRideRepository()
	passenger := primitive.NewObjectID()

	for i := 0; i < 5; i++ {
		ride := &models.Ride{PassengerID: passenger, Origin: models.NewPoint(0, 0), Status: models.RideStatusCompleted, Price: float64(i)}
		if err := repo.Create(ctx, ride); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	newPendingRide(t, repo, 0, 0)

	rides, total, err := repo.ListForUser(ctx, passenger, utils.NewPaginationParams(2, 2, "price", "asc"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(rides) != 2 || rides[0].Price != 2 || rides[1].Price != 3 {
		t.Fatalf("unexpected page: %+v", rides)
	}
}

func TestSupportConversationsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository()
	alice, bob, admin := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	send := func(sender primitive.ObjectID, receiver *primitive.ObjectID, user primitive.ObjectID, content string) {
		u := user
		if err := repo.Create(ctx, &models.Message{SenderID: sender, ReceiverID: receiver, SupportChat: true, SupportUser: &u, Content: content}); err != nil {
			t.Fatalf("create: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	send(alice, nil, alice, "alice 1")
	send(bob, nil, bob, "bob 1")
	send(alice, nil, alice, "alice 2")
	send(admin, &bob, bob, "reply to bob")

	conversations, err := repo.SupportConversations(ctx)
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].UserID != bob || conversations[0].LastMessage != "reply to bob" || conversations[0].UnreadCount != 1 {
		t.Fatalf("unexpected first conversation: %+v", conversations[0])
	}
	if conversations[1].UserID != alice || conversations[1].UnreadCount != 2 {
		t.Fatalf("unexpected second conversation: %+v", conversations[1])
	}

	n, err := repo.MarkSupportThreadRead(ctx, alice, true)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 marked read, got %d (%v)", n, err)
	}
	n, err = repo.MarkSupportThreadRead(ctx, bob, true)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 marked read for bob, got %d (%v)", n, err)
	}
}

func TestApplyTransitionExclusiveDriver(t *testing.T) {
	ctx := context.Background()
	repo := NewRideRepository()
	driverID := primitive.NewObjectID()

	const rides = 8
	ids := make([]primitive.ObjectID, rides)
	for i := range ids {
		ids[i] = newPendingRide(t, repo, -49.2567, -16.6799).ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, busy := 0, 0
	for _, id := range ids {
		wg.Add(1)
		go func(id primitive.ObjectID) {
			defer wg.Done()
			_, err := repo.ApplyTransition(ctx, &interfaces.RideTransition{
				RideID:            id,
				From:              []models.RideStatus{models.RideStatusPending},
				RequireUnassigned: true,
				ExclusiveDriver:   &driverID,
				To:                models.RideStatusAccepted,
				Set:               map[string]interface{}{"driver_id": driverID, "accepted_at": time.Now()},
			})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				accepted++
			case interfaces.ErrDriverBusy:
				busy++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if accepted != 1 || busy != rides-1 {
		t.Fatalf("accepted=%d busy=%d, want 1 and %d", accepted, busy, rides-1)
	}
	current, err := repo.FindLatestForUser(ctx, driverID, models.ActiveRideStatuses)
	if err != nil || current == nil {
		t.Fatalf("driver has no current ride: %v", err)
	}
}
