package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeNotifier struct {
	users    []primitive.ObjectID
	rooms    []string
	payloads []interface{}
}

func (f *fakeNotifier) SendUserNotification(userID primitive.ObjectID, notificationType string, data interface{}) int {
	f.users = append(f.users, userID)
	f.payloads = append(f.payloads, data)
	return 1
}

func (f *fakeNotifier) SendRoomNotification(roomID, notificationType string, data interface{}) int {
	f.rooms = append(f.rooms, roomID)
	f.payloads = append(f.payloads, data)
	return 1
}

type fakePublisher struct {
	keys []string
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, key string, payload interface{}) error {
	f.keys = append(f.keys, key)
	return f.err
}

func TestHubSinkRoutesByAudience(t *testing.T) {
	passenger, driver := primitive.NewObjectID(), primitive.NewObjectID()
	ride := &models.Ride{ID: primitive.NewObjectID(), PassengerID: passenger, Status: models.RideStatusPending}

	notifier := &fakeNotifier{}
	sink := NewHubSink(notifier)

	if err := sink.Deliver(context.Background(), models.NewRideEvent(models.EventRideRequested, ride)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(notifier.users) != 1 || notifier.users[0] != passenger {
		t.Fatalf("unexpected user deliveries: %v", notifier.users)
	}
	if len(notifier.rooms) != 1 || notifier.rooms[0] != utils.RoomDrivers {
		t.Fatalf("ride_requested should reach the drivers room, got %v", notifier.rooms)
	}

	notifier = &fakeNotifier{}
	sink = NewHubSink(notifier)
	ride.DriverID = &driver
	ride.Status = models.RideStatusAccepted
	if err := sink.Deliver(context.Background(), models.NewRideEvent(models.EventRideAccepted, ride)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(notifier.users) != 2 || len(notifier.rooms) != 0 {
		t.Fatalf("accepted event should go to both parties only: users=%v rooms=%v", notifier.users, notifier.rooms)
	}

	notifier = &fakeNotifier{}
	sink = NewHubSink(notifier)
	msg := &models.Message{ID: primitive.NewObjectID(), SenderID: passenger, SupportChat: true, SupportUser: &passenger}
	if err := sink.Deliver(context.Background(), models.NewMessageEvent(msg)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(notifier.users) != 0 || len(notifier.rooms) != 1 || notifier.rooms[0] != utils.RoomAdmins {
		t.Fatalf("support message should reach admins only: users=%v rooms=%v", notifier.users, notifier.rooms)
	}
}

func TestHubSinkStripsRouting(t *testing.T) {
	passenger, driver := primitive.NewObjectID(), primitive.NewObjectID()
	ride := &models.Ride{ID: primitive.NewObjectID(), PassengerID: passenger, DriverID: &driver, Status: models.RideStatusAccepted}

	notifier := &fakeNotifier{}
	if err := NewHubSink(notifier).Deliver(context.Background(), models.NewRideEvent(models.EventRideAccepted, ride)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(notifier.payloads) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(notifier.payloads))
	}
	for _, payload := range notifier.payloads {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		var fields map[string]interface{}
		if err := json.Unmarshal(data, &fields); err != nil {
			t.Fatal(err)
		}
		for _, key := range []string{"recipients", "drivers", "admins"} {
			if _, ok := fields[key]; ok {
				t.Fatalf("client frame carries %q: %s", key, data)
			}
		}
		if fields["type"] != models.EventRideAccepted || fields["ride_id"] != ride.ID.Hex() || fields["status"] != string(models.RideStatusAccepted) {
			t.Fatalf("unexpected frame: %s", data)
		}
	}
}

func TestEventServiceContinuesPastFailingSink(t *testing.T) {
	broken := &fakePublisher{err: errors.New("broker down")}
	recorder := &recordingSink{}
	events := NewEventService(logger.NewNop(), NewBrokerSink(broken), recorder)

	ride := &models.Ride{ID: primitive.NewObjectID(), PassengerID: primitive.NewObjectID(), Status: models.RideStatusCancelled}
	events.Publish(context.Background(), models.NewRideEvent(models.EventRideCancelled, ride))

	if len(broken.keys) != 1 || broken.keys[0] != "ride.ride_cancelled" {
		t.Fatalf("unexpected routing keys: %v", broken.keys)
	}
	if types := recorder.types(); len(types) != 1 || types[0] != models.EventRideCancelled {
		t.Fatalf("later sink skipped after failure: %v", types)
	}
}

func TestRelayEventsDecodesPayloads(t *testing.T) {
	ride := &models.Ride{ID: primitive.NewObjectID(), PassengerID: primitive.NewObjectID(), Status: models.RideStatusInProgress}
	payload, err := json.Marshal(models.NewRideEvent(models.EventRideStarted, ride))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	messages := make(chan *redis.Message, 2)
	messages <- &redis.Message{Channel: utils.ChannelRideEvents, Payload: "not json"}
	messages <- &redis.Message{Channel: utils.ChannelRideEvents, Payload: string(payload)}
	close(messages)

	recorder := &recordingSink{}
	done := make(chan struct{})
	go func() {
		RelayEvents(context.Background(), messages, recorder, logger.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop when the channel closed")
	}

	if len(recorder.events) != 1 || recorder.events[0].RideID == nil || *recorder.events[0].RideID != ride.ID {
		t.Fatalf("unexpected relayed events: %+v", recorder.events)
	}
}
