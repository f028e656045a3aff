package config

import "time"

// RideConfig holds pricing and dispatch parameters.
type RideConfig struct {
	BasePrice          float64       `yaml:"base_price"`
	PricePerKm         float64       `yaml:"price_per_km"`
	PricePerMinute     float64       `yaml:"price_per_minute"`
	MaxDistanceMeters  float64       `yaml:"max_distance_meters"`
	MaxDurationSeconds float64       `yaml:"max_duration_seconds"`
	SearchRadiusMeters float64       `yaml:"search_radius_meters"`
	DriverCountTTL     time.Duration `yaml:"driver_count_ttl"`
}

func loadRideConfig() *RideConfig {
	return &RideConfig{
		BasePrice:          getEnvAsFloat64("PRICING_BASE", 2.0),
		PricePerKm:         getEnvAsFloat64("PRICING_PER_KM", 2.0),
		PricePerMinute:     getEnvAsFloat64("PRICING_PER_MINUTE", 0.25),
		MaxDistanceMeters:  getEnvAsFloat64("RIDE_MAX_DISTANCE_METERS", 100000),
		MaxDurationSeconds: getEnvAsFloat64("RIDE_MAX_DURATION_SECONDS", 7200),
		SearchRadiusMeters: getEnvAsFloat64("RIDE_SEARCH_RADIUS_METERS", 10000),
		DriverCountTTL:     getEnvAsDuration("RIDE_DRIVER_COUNT_TTL", 10*time.Second),
	}
}
