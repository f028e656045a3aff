package client

import (
	"context"
	"time"

	"ridehail/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultRidePollInterval      = 3 * time.Second
	DefaultAvailablePollInterval = 5 * time.Second
)

type RideFetcher interface {
	GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideDetails, error)
}

type AvailableRidesFetcher interface {
	GetAvailableRides(ctx context.Context) ([]*models.RideDetails, error)
}

// RidePoller refetches one ride and reports every observed change of status
// or assigned driver. It stops by itself once the ride is terminal.
type RidePoller struct {
	Fetcher  RideFetcher
	RideID   primitive.ObjectID
	Interval time.Duration

	OnChange func(ride *models.RideDetails)
	OnError  func(err error)
}

// Run polls until ctx is cancelled or the ride reaches a terminal status.
// It returns the last ride observed.
func (p *RidePoller) Run(ctx context.Context) (*models.RideDetails, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultRidePollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *models.RideDetails
	for {
		ride, err := p.Fetcher.GetRide(ctx, p.RideID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if p.OnError != nil {
				p.OnError(err)
			}
		case rideChanged(last, ride):
			last = ride
			if p.OnChange != nil {
				p.OnChange(ride)
			}
		}
		if last != nil && last.Status.IsTerminal() {
			return last, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func rideChanged(prev, next *models.RideDetails) bool {
	if next == nil || next.Ride == nil {
		return false
	}
	if prev == nil {
		return true
	}
	if prev.Status != next.Status {
		return true
	}
	return !sameDriver(prev.DriverID, next.DriverID)
}

func sameDriver(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AvailableRidesPoller asks for dispatchable rides and reports each ride id
// once, however many polls return it.
type AvailableRidesPoller struct {
	Fetcher  AvailableRidesFetcher
	Interval time.Duration

	OnRide  func(ride *models.RideDetails)
	OnError func(err error)

	seen map[primitive.ObjectID]struct{}
}

// Poll performs one fetch and returns the rides not reported before.
func (p *AvailableRidesPoller) Poll(ctx context.Context) ([]*models.RideDetails, error) {
	rides, err := p.Fetcher.GetAvailableRides(ctx)
	if err != nil {
		return nil, err
	}
	if p.seen == nil {
		p.seen = make(map[primitive.ObjectID]struct{})
	}

	var fresh []*models.RideDetails
	for _, ride := range rides {
		if ride == nil || ride.Ride == nil {
			continue
		}
		if _, ok := p.seen[ride.ID]; ok {
			continue
		}
		p.seen[ride.ID] = struct{}{}
		fresh = append(fresh, ride)
	}
	return fresh, nil
}

// Run polls until ctx is cancelled.
func (p *AvailableRidesPoller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultAvailablePollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fresh, err := p.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if p.OnError != nil {
				p.OnError(err)
			}
		}
		for _, ride := range fresh {
			if p.OnRide != nil {
				p.OnRide(ride)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
