package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EventRideRequested  = "ride_requested"
	EventRideAccepted   = "ride_accepted"
	EventRideStarted    = "ride_started"
	EventRideCompleted  = "ride_completed"
	EventRideCancelled  = "ride_cancelled"
	EventDriverLocation = "driver_location"
	EventNewMessage     = "new_message"
)

// Event is a change notification plus its routing. It only hints at what
// changed; receivers refetch the resource it names. The routing fields travel
// between instances and brokers but never reach websocket clients.
type Event struct {
	Type       string               `json:"type"`
	RideID     *primitive.ObjectID  `json:"ride_id,omitempty"`
	MessageID  *primitive.ObjectID  `json:"message_id,omitempty"`
	Status     RideStatus           `json:"status,omitempty"`
	Location   *Location            `json:"location,omitempty"`
	Recipients []primitive.ObjectID `json:"recipients"`
	Drivers    bool                 `json:"drivers,omitempty"`
	Admins     bool                 `json:"admins,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// EventNotification is the part of an Event sent to websocket clients.
type EventNotification struct {
	Type       string              `json:"type"`
	RideID     *primitive.ObjectID `json:"ride_id,omitempty"`
	MessageID  *primitive.ObjectID `json:"message_id,omitempty"`
	Status     RideStatus          `json:"status,omitempty"`
	Location   *Location           `json:"location,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func (e *Event) Notification() *EventNotification {
	return &EventNotification{
		Type:       e.Type,
		RideID:     e.RideID,
		MessageID:  e.MessageID,
		Status:     e.Status,
		Location:   e.Location,
		OccurredAt: e.OccurredAt,
	}
}

func NewRideEvent(eventType string, ride *Ride) *Event {
	id := ride.ID
	recipients := []primitive.ObjectID{ride.PassengerID}
	if ride.DriverID != nil {
		recipients = append(recipients, *ride.DriverID)
	}
	return &Event{
		Type:       eventType,
		RideID:     &id,
		Status:     ride.Status,
		Recipients: recipients,
		Drivers:    eventType == EventRideRequested,
		OccurredAt: time.Now(),
	}
}

func NewMessageEvent(msg *Message) *Event {
	id := msg.ID
	event := &Event{
		Type:       EventNewMessage,
		RideID:     msg.RideID,
		MessageID:  &id,
		OccurredAt: time.Now(),
	}
	if msg.ReceiverID != nil {
		event.Recipients = []primitive.ObjectID{*msg.ReceiverID}
	} else {
		event.Admins = msg.SupportChat
	}
	return event
}
