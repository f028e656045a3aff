package services

import (
	"context"
	"encoding/json"
	"fmt"

	"ridehail/internal/models"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventSink delivers an event to one destination.
type EventSink interface {
	Name() string
	Deliver(ctx context.Context, event *models.Event) error
}

// EventService fans events out to every configured sink. Delivery is best
// effort: a failing sink is logged and never fails the caller.
type EventService interface {
	Publish(ctx context.Context, event *models.Event)
}

type eventService struct {
	sinks  []EventSink
	logger *logger.Logger
}

func NewEventService(logger *logger.Logger, sinks ...EventSink) EventService {
	return &eventService{
		sinks:  sinks,
		logger: logger.WithComponent("events"),
	}
}

func (s *eventService) Publish(ctx context.Context, event *models.Event) {
	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"sink":  sink.Name(),
				"event": event.Type,
			}).Warn("Failed to deliver event")
		}
	}
}

// HubNotifier is implemented by the websocket handler.
type HubNotifier interface {
	SendUserNotification(userID primitive.ObjectID, notificationType string, data interface{}) int
	SendRoomNotification(roomID, notificationType string, data interface{}) int
}

type hubSink struct {
	notifier HubNotifier
}

func NewHubSink(notifier HubNotifier) EventSink {
	return &hubSink{notifier: notifier}
}

func (s *hubSink) Name() string { return "websocket" }

func (s *hubSink) Deliver(ctx context.Context, event *models.Event) error {
	payload := event.Notification()
	for _, userID := range event.Recipients {
		s.notifier.SendUserNotification(userID, event.Type, payload)
	}
	if event.Drivers {
		s.notifier.SendRoomNotification(utils.RoomDrivers, event.Type, payload)
	}
	if event.Admins {
		s.notifier.SendRoomNotification(utils.RoomAdmins, event.Type, payload)
	}
	return nil
}

// Publisher is implemented by pkg/cache.RedisCache.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type redisSink struct {
	publisher Publisher
	channel   string
}

// NewRedisSink publishes events on a pub/sub channel so every server
// instance can relay them to its own websocket clients.
func NewRedisSink(publisher Publisher, channel string) EventSink {
	return &redisSink{publisher: publisher, channel: channel}
}

func (s *redisSink) Name() string { return "redis" }

func (s *redisSink) Deliver(ctx context.Context, event *models.Event) error {
	return s.publisher.Publish(ctx, s.channel, event)
}

// RoutedPublisher is implemented by pkg/broker.RabbitMQ.
type RoutedPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

type brokerSink struct {
	publisher RoutedPublisher
}

func NewBrokerSink(publisher RoutedPublisher) EventSink {
	return &brokerSink{publisher: publisher}
}

func (s *brokerSink) Name() string { return "rabbitmq" }

func (s *brokerSink) Deliver(ctx context.Context, event *models.Event) error {
	return s.publisher.Publish(ctx, RoutingKey(event), event)
}

func RoutingKey(event *models.Event) string {
	return fmt.Sprintf("ride.%s", event.Type)
}

// RelayEvents decodes events received on a pub/sub channel and hands them to
// sink until ctx is done or the channel closes.
func RelayEvents(ctx context.Context, messages <-chan *redis.Message, sink EventSink, log *logger.Logger) {
	log = log.WithComponent("event_relay")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.WithError(err).Warn("Dropping malformed event")
				continue
			}
			if err := sink.Deliver(ctx, &event); err != nil {
				log.WithError(err).WithField("event", event.Type).Warn("Failed to relay event")
			}
		}
	}
}
