package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ridehail/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// scriptedRides returns one scripted response per call and repeats the last.
type scriptedRides struct {
	mu    sync.Mutex
	steps []*models.RideDetails
	errs  []error
	calls int
}

func (s *scriptedRides) GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.steps[i], nil
}

func rideWith(id primitive.ObjectID, status models.RideStatus, driver *primitive.ObjectID) *models.RideDetails {
	return &models.RideDetails{Ride: &models.Ride{ID: id, Status: status, DriverID: driver}}
}

func TestRidePollerReportsChangesUntilTerminal(t *testing.T) {
	rideID := primitive.NewObjectID()
	driverID := primitive.NewObjectID()
	fetcher := &scriptedRides{
		steps: []*models.RideDetails{
			rideWith(rideID, models.RideStatusPending, nil),
			rideWith(rideID, models.RideStatusPending, nil),
			nil,
			rideWith(rideID, models.RideStatusAccepted, &driverID),
			rideWith(rideID, models.RideStatusAccepted, &driverID),
			rideWith(rideID, models.RideStatusInProgress, &driverID),
			rideWith(rideID, models.RideStatusCompleted, &driverID),
		},
		errs: []error{nil, nil, errors.New("connection reset")},
	}

	var changes []models.RideStatus
	var failures int
	poller := &RidePoller{
		Fetcher:  fetcher,
		RideID:   rideID,
		Interval: time.Millisecond,
		OnChange: func(ride *models.RideDetails) { changes = append(changes, ride.Status) },
		OnError:  func(err error) { failures++ },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	last, err := poller.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if last.Status != models.RideStatusCompleted {
		t.Fatalf("expected completed, got %s", last.Status)
	}

	want := []models.RideStatus{
		models.RideStatusPending,
		models.RideStatusAccepted,
		models.RideStatusInProgress,
		models.RideStatusCompleted,
	}
	if len(changes) != len(want) {
		t.Fatalf("expected changes %v, got %v", want, changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("expected changes %v, got %v", want, changes)
		}
	}
	if failures != 1 {
		t.Fatalf("expected one reported error, got %d", failures)
	}
	if fetcher.calls != len(fetcher.steps) {
		t.Fatalf("expected polling to stop at the terminal status after %d calls, got %d", len(fetcher.steps), fetcher.calls)
	}
}

func TestRidePollerStopsOnCancel(t *testing.T) {
	rideID := primitive.NewObjectID()
	fetcher := &scriptedRides{steps: []*models.RideDetails{rideWith(rideID, models.RideStatusPending, nil)}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	last, err := (&RidePoller{Fetcher: fetcher, RideID: rideID, Interval: time.Millisecond}).Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if last == nil || last.Status != models.RideStatusPending {
		t.Fatalf("expected the pending ride as last observation, got %+v", last)
	}
}

func TestRideChangedOnDriverSwap(t *testing.T) {
	rideID := primitive.NewObjectID()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	if rideChanged(rideWith(rideID, models.RideStatusAccepted, &a), rideWith(rideID, models.RideStatusAccepted, &a)) {
		t.Fatal("identical observations must not count as a change")
	}
	if !rideChanged(rideWith(rideID, models.RideStatusAccepted, &a), rideWith(rideID, models.RideStatusAccepted, &b)) {
		t.Fatal("a different driver is a change")
	}
}

type stubAvailable struct {
	batches [][]*models.RideDetails
	calls   int
}

func (s *stubAvailable) GetAvailableRides(ctx context.Context) ([]*models.RideDetails, error) {
	i := s.calls
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	s.calls++
	return s.batches[i], nil
}

func TestAvailableRidesPollerDeduplicates(t *testing.T) {
	first := rideWith(primitive.NewObjectID(), models.RideStatusPending, nil)
	second := rideWith(primitive.NewObjectID(), models.RideStatusPending, nil)
	poller := &AvailableRidesPoller{Fetcher: &stubAvailable{batches: [][]*models.RideDetails{
		{first},
		{first},
		{},
		{second},
		{first},
	}}}

	var reported []primitive.ObjectID
	for i := 0; i < 5; i++ {
		fresh, err := poller.Poll(context.Background())
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		for _, ride := range fresh {
			reported = append(reported, ride.ID)
		}
	}

	if len(reported) != 2 || reported[0] != first.ID || reported[1] != second.ID {
		t.Fatalf("expected each ride reported once in order, got %v", reported)
	}
}
