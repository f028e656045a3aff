package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string

const (
	RideStatusPending    RideStatus = "pending"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

var (
	// OpenRideStatuses are the statuses a ride can still be cancelled from.
	OpenRideStatuses = []RideStatus{RideStatusPending, RideStatusAccepted, RideStatusInProgress}
	// ActiveRideStatuses are the statuses that make a ride "current" for its parties.
	ActiveRideStatuses = []RideStatus{RideStatusAccepted, RideStatusInProgress}
)

func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

func (s RideStatus) IsActive() bool {
	return s == RideStatusAccepted || s == RideStatusInProgress
}

func (s RideStatus) In(statuses []RideStatus) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

type Ride struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	PassengerID primitive.ObjectID  `json:"passenger_id" bson:"passenger_id"`
	DriverID    *primitive.ObjectID `json:"driver_id" bson:"driver_id"`
	Origin      Location            `json:"origin" bson:"origin"`
	Destination Location            `json:"destination" bson:"destination"`
	Distance    float64             `json:"distance" bson:"distance"` // meters
	Duration    float64             `json:"duration" bson:"duration"` // seconds
	Price       float64             `json:"price" bson:"price"`
	Status      RideStatus          `json:"status" bson:"status"`
	AcceptedAt  *time.Time          `json:"accepted_at,omitempty" bson:"accepted_at,omitempty"`
	StartTime   *time.Time          `json:"start_time,omitempty" bson:"start_time,omitempty"`
	EndTime     *time.Time          `json:"end_time,omitempty" bson:"end_time,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CancelledBy *primitive.ObjectID `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CreatedAt   time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" bson:"updated_at"`
}

func (r *Ride) IsPassenger(userID primitive.ObjectID) bool {
	return r.PassengerID == userID
}

func (r *Ride) IsDriver(userID primitive.ObjectID) bool {
	return r.DriverID != nil && *r.DriverID == userID
}

func (r *Ride) IsParty(userID primitive.ObjectID) bool {
	return r.IsPassenger(userID) || r.IsDriver(userID)
}

// Counterpart returns the other party of the ride, or nil when userID is the
// passenger and no driver has been assigned yet.
func (r *Ride) Counterpart(userID primitive.ObjectID) *primitive.ObjectID {
	if r.IsPassenger(userID) {
		return r.DriverID
	}
	if r.IsDriver(userID) {
		id := r.PassengerID
		return &id
	}
	return nil
}

// RideDetails is a ride with its passenger and driver looked up.
type RideDetails struct {
	*Ride
	Passenger *UserSummary `json:"passenger,omitempty"`
	Driver    *UserSummary `json:"driver,omitempty"`
}

type RideRequestResult struct {
	*RideDetails
	AvailableDrivers int64 `json:"available_drivers"`
}

type RideEstimate struct {
	Distance         float64 `json:"distance"`
	Duration         float64 `json:"duration"`
	Price            float64 `json:"price"`
	AvailableDrivers int64   `json:"available_drivers"`
}
