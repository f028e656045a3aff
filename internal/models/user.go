package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRole string

const (
	UserRolePassenger UserRole = "passenger"
	UserRoleDriver    UserRole = "driver"
	UserRoleAdmin     UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRolePassenger, UserRoleDriver, UserRoleAdmin:
		return true
	}
	return false
}

type Vehicle struct {
	Make  string `json:"make" bson:"make"`
	Model string `json:"model" bson:"model"`
	Color string `json:"color" bson:"color"`
	Plate string `json:"plate" bson:"plate"`
	Year  int    `json:"year,omitempty" bson:"year,omitempty"`
}

type Document struct {
	Type       string    `json:"type" bson:"type"`
	Key        string    `json:"key" bson:"key"`
	URL        string    `json:"url" bson:"url"`
	UploadedAt time.Time `json:"uploaded_at" bson:"uploaded_at"`
}

type User struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name               string             `json:"name" bson:"name"`
	Email              string             `json:"email" bson:"email"`
	Password           string             `json:"-" bson:"password"`
	Phone              string             `json:"phone" bson:"phone"`
	Role               UserRole           `json:"role" bson:"role"`
	Vehicle            *Vehicle           `json:"vehicle,omitempty" bson:"vehicle,omitempty"`
	Documents          []Document         `json:"documents,omitempty" bson:"documents,omitempty"`
	IsApproved         bool               `json:"is_approved" bson:"is_approved"`
	IsAvailable        bool               `json:"is_available" bson:"is_available"`
	Location           *Location          `json:"location,omitempty" bson:"location,omitempty"`
	LastLocationUpdate *time.Time         `json:"last_location_update,omitempty" bson:"last_location_update,omitempty"`
	ApprovedAt         *time.Time         `json:"approved_at,omitempty" bson:"approved_at,omitempty"`
	RejectedAt         *time.Time         `json:"rejected_at,omitempty" bson:"rejected_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

func (u *User) IsDriver() bool    { return u.Role == UserRoleDriver }
func (u *User) IsAdmin() bool     { return u.Role == UserRoleAdmin }
func (u *User) IsPassenger() bool { return u.Role == UserRolePassenger }

// Dispatchable reports whether the driver may be offered rides.
func (u *User) Dispatchable() bool {
	return u.IsDriver() && u.IsApproved && u.IsAvailable
}

// UserSummary is the public projection of a user embedded in ride and
// message responses.
type UserSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Name     string             `json:"name"`
	Phone    string             `json:"phone,omitempty"`
	Role     UserRole           `json:"role"`
	Vehicle  *Vehicle           `json:"vehicle,omitempty"`
	Location *Location          `json:"location,omitempty"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:       u.ID,
		Name:     u.Name,
		Phone:    u.Phone,
		Role:     u.Role,
		Vehicle:  u.Vehicle,
		Location: u.Location,
	}
}

type DashboardStats struct {
	ActiveDrivers   int64                `json:"activeDrivers"`
	PendingDrivers  int64                `json:"pendingDrivers"`
	TotalPassengers int64                `json:"totalPassengers"`
	TotalDrivers    int64                `json:"totalDrivers"`
	RidesByStatus   map[RideStatus]int64 `json:"ridesByStatus"`
}
