package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"ridehail/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type RegisterRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Phone    string          `json:"phone"`
	Role     string          `json:"role"`
	Vehicle  *models.Vehicle `json:"vehicle,omitempty"`
}

type Place struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

type RideRequest struct {
	Origin      Place   `json:"origin"`
	Destination Place   `json:"destination"`
	Distance    float64 `json:"distance,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
}

// Login stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// Register stores the returned token on the client.
func (c *Client) Register(ctx context.Context, request *RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", request, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

func (c *Client) RequestRide(ctx context.Context, request *RideRequest) (*models.RideRequestResult, error) {
	var result models.RideRequestResult
	if err := c.do(ctx, http.MethodPost, "/api/rides/request", request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) rideCall(ctx context.Context, method, path string, body interface{}) (*models.RideDetails, error) {
	var ride models.RideDetails
	if err := c.do(ctx, method, path, body, &ride); err != nil {
		return nil, err
	}
	return &ride, nil
}

func (c *Client) GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideDetails, error) {
	return c.rideCall(ctx, http.MethodGet, "/api/rides/status/"+rideID.Hex(), nil)
}

func (c *Client) AcceptRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideDetails, error) {
	return c.rideCall(ctx, http.MethodPost, "/api/rides/accept/"+rideID.Hex(), nil)
}

func (c *Client) StartRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideDetails, error) {
	return c.rideCall(ctx, http.MethodPost, "/api/rides/start/"+rideID.Hex(), nil)
}

func (c *Client) CompleteRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideDetails, error) {
	return c.rideCall(ctx, http.MethodPost, "/api/rides/complete/"+rideID.Hex(), nil)
}

func (c *Client) CancelRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideDetails, error) {
	return c.rideCall(ctx, http.MethodPost, "/api/rides/cancel/"+rideID.Hex(), nil)
}

func (c *Client) UpdateRideLocation(ctx context.Context, rideID primitive.ObjectID, lng, lat float64) (*models.RideDetails, error) {
	return c.rideCall(ctx, http.MethodPatch, "/api/rides/"+rideID.Hex()+"/location", map[string][]float64{
		"coordinates": {lng, lat},
	})
}

// GetCurrentRide returns nil when the caller has no accepted or in-progress ride.
func (c *Client) GetCurrentRide(ctx context.Context) (*models.RideDetails, error) {
	var ride *models.RideDetails
	if err := c.do(ctx, http.MethodGet, "/api/rides/current", nil, &ride); err != nil {
		return nil, err
	}
	return ride, nil
}

func (c *Client) GetAvailableRides(ctx context.Context) ([]*models.RideDetails, error) {
	var rides []*models.RideDetails
	if err := c.do(ctx, http.MethodGet, "/api/rides/available", nil, &rides); err != nil {
		return nil, err
	}
	return rides, nil
}

func (c *Client) GetNearbyDrivers(ctx context.Context, lng, lat, radiusMeters float64) ([]*models.UserSummary, error) {
	query := url.Values{}
	query.Set("lng", fmt.Sprint(lng))
	query.Set("lat", fmt.Sprint(lat))
	if radiusMeters > 0 {
		query.Set("radius", fmt.Sprint(radiusMeters))
	}

	var drivers []*models.UserSummary
	if err := c.do(ctx, http.MethodGet, "/api/rides/nearby-drivers?"+query.Encode(), nil, &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

func (c *Client) UpdateLocation(ctx context.Context, lng, lat float64) (*models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodPatch, "/api/users/location", map[string][]float64{
		"coordinates": {lng, lat},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SetAvailability(ctx context.Context, available bool) (*models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodPatch, "/api/users/availability", map[string]bool{
		"isAvailable": available,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SendMessage(ctx context.Context, rideID primitive.ObjectID, content string) (*models.Message, error) {
	var message models.Message
	err := c.do(ctx, http.MethodPost, "/api/messages", map[string]string{
		"rideId":  rideID.Hex(),
		"content": content,
	}, &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) GetUnreadMessages(ctx context.Context) ([]*models.Message, error) {
	var messages []*models.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/unread", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
