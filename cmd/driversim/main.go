// Command driversim logs in as a driver, goes online and serves the rides the
// server offers it: accept, drive to the pickup, start, drive, complete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ridehail/internal/models"
	"ridehail/pkg/client"
	"ridehail/pkg/logger"
)

type Config struct {
	BaseURL      string
	Email        string
	Password     string
	Lng          float64
	Lat          float64
	PollInterval time.Duration
	TickInterval time.Duration
	Steps        int
	UseWebSocket bool
	LogLevel     string
	MaxRides     int
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("DRIVERSIM_BASE_URL", "http://localhost:5000"), "API base URL")
	flag.StringVar(&cfg.Email, "email", envOrDefault("DRIVERSIM_EMAIL", ""), "driver email")
	flag.StringVar(&cfg.Password, "password", envOrDefault("DRIVERSIM_PASSWORD", ""), "driver password")
	flag.Float64Var(&cfg.Lng, "lng", envOrDefaultFloat("DRIVERSIM_LNG", -49.2648), "starting longitude")
	flag.Float64Var(&cfg.Lat, "lat", envOrDefaultFloat("DRIVERSIM_LAT", -16.6869), "starting latitude")
	flag.DurationVar(&cfg.PollInterval, "poll", envOrDefaultDuration("DRIVERSIM_POLL", client.DefaultAvailablePollInterval), "available rides poll interval")
	flag.DurationVar(&cfg.TickInterval, "tick", envOrDefaultDuration("DRIVERSIM_TICK", 2*time.Second), "delay between simulated location updates")
	flag.IntVar(&cfg.Steps, "steps", envOrDefaultInt("DRIVERSIM_STEPS", 5), "location updates per leg")
	flag.BoolVar(&cfg.UseWebSocket, "ws", envOrDefaultBool("DRIVERSIM_WS", true), "poll immediately when the server announces a ride")
	flag.StringVar(&cfg.LogLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "log level")
	flag.IntVar(&cfg.MaxRides, "max-rides", envOrDefaultInt("DRIVERSIM_MAX_RIDES", 0), "stop after this many completed rides (0 = unlimited)")
	flag.Parse()
	return cfg
}

func main() {
	cfg := loadConfig()
	if cfg.Email == "" || cfg.Password == "" {
		fmt.Fprintln(os.Stderr, "driversim: -email and -password are required")
		os.Exit(2)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.LogLevel),
		Format:  "text",
		Output:  "stdout",
		AppName: "driversim",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "driversim: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := &simulator{
		cfg: cfg,
		api: client.New(cfg.BaseURL),
		log: log.WithComponent("driversim"),
		lng: cfg.Lng,
		lat: cfg.Lat,
	}
	if err := sim.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sim.log.WithError(err).Fatal("Simulator stopped")
	}
}

type simulator struct {
	cfg      Config
	api      *client.Client
	log      *logger.Logger
	lng, lat float64
	served   int
}

func (s *simulator) run(ctx context.Context) error {
	auth, err := s.api.Login(ctx, s.cfg.Email, s.cfg.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.log = s.log.WithUserID(auth.User.ID)
	s.log.WithField("name", auth.User.Name).Info("Logged in")

	if _, err := s.api.UpdateLocation(ctx, s.lng, s.lat); err != nil {
		return fmt.Errorf("initial location: %w", err)
	}
	if _, err := s.api.SetAvailability(ctx, true); err != nil {
		return fmt.Errorf("go online: %w", err)
	}
	defer func() {
		offline, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.api.SetAvailability(offline, false); err != nil {
			s.log.WithError(err).Warn("Failed to go offline")
		}
	}()

	// a ride left over from a previous run comes first
	if current, err := s.api.GetCurrentRide(ctx); err != nil {
		return fmt.Errorf("current ride: %w", err)
	} else if current != nil {
		if err := s.serve(ctx, current); err != nil {
			return err
		}
	}

	wake := make(chan struct{}, 1)
	if s.cfg.UseWebSocket {
		go s.listen(ctx, wake)
	}

	poller := &client.AvailableRidesPoller{Fetcher: s.api}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		fresh, err := poller.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.WithError(err).Warn("Polling for rides failed")
		}

		for _, offer := range fresh {
			ride, err := s.api.AcceptRide(ctx, offer.ID)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
					s.log.WithRideID(offer.ID).Info("Ride taken by another driver")
					continue
				}
				s.log.WithError(err).WithRideID(offer.ID).Warn("Accept failed")
				continue
			}
			if err := s.serve(ctx, ride); err != nil {
				return err
			}
			if s.cfg.MaxRides > 0 && s.served >= s.cfg.MaxRides {
				s.log.WithField("rides", s.served).Info("Done")
				return nil
			}
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
		}
	}
}

// listen turns ride_requested events into an immediate poll. Polling still
// runs on its interval when the stream is down.
func (s *simulator) listen(ctx context.Context, wake chan<- struct{}) {
	sub := client.NewSubscriber(s.api)
	for ctx.Err() == nil {
		err := sub.Listen(ctx, func(event *models.EventNotification) {
			if event.Type != models.EventRideRequested {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		})
		if ctx.Err() != nil {
			return
		}
		s.log.WithError(err).Warn("Event stream closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// serve drives an accepted or in-progress ride to completion.
func (s *simulator) serve(ctx context.Context, ride *models.RideDetails) error {
	log := s.log.WithRideID(ride.ID)

	if ride.Status == models.RideStatusAccepted {
		log.Info("Driving to pickup")
		if err := s.drive(ctx, ride, ride.Origin); err != nil {
			return err
		}
		started, err := s.api.StartRide(ctx, ride.ID)
		if err != nil {
			return s.abandon(log, err)
		}
		ride = started
	}

	if ride.Status == models.RideStatusInProgress {
		log.Info("Driving to destination")
		if err := s.drive(ctx, ride, ride.Destination); err != nil {
			return err
		}
		completed, err := s.api.CompleteRide(ctx, ride.ID)
		if err != nil {
			return s.abandon(log, err)
		}
		s.served++
		log.WithField("price", completed.Price).Info("Ride completed")
	}
	return nil
}

// abandon logs a transition the server refused, e.g. a passenger cancel.
func (s *simulator) abandon(log *logger.Logger, err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		log.WithField("code", apiErr.Code).Warn("Ride no longer servable")
		return nil
	}
	return err
}

func (s *simulator) drive(ctx context.Context, ride *models.RideDetails, to models.Location) error {
	steps := s.cfg.Steps
	if steps < 1 {
		steps = 1
	}
	fromLng, fromLat := s.lng, s.lat
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.TickInterval):
		}
		frac := float64(i) / float64(steps)
		s.lng = fromLng + (to.Longitude()-fromLng)*frac
		s.lat = fromLat + (to.Latitude()-fromLat)*frac

		if _, err := s.api.UpdateRideLocation(ctx, ride.ID, s.lng, s.lat); err != nil {
			s.log.WithError(err).WithRideID(ride.ID).Debug("Ride location update failed")
		}
	}
	if _, err := s.api.UpdateLocation(ctx, s.lng, s.lat); err != nil {
		s.log.WithError(err).Debug("Location update failed")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
