package config

import (
	"fmt"
	"time"

	"ridehail/pkg/database"
)

const (
	DatabaseDriverMongo  = "mongodb"
	DatabaseDriverMemory = "memory"
)

// DatabaseConfig selects the storage backend. The MONGODB_* settings are
// ignored by the memory driver.
type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	MinPoolSize    int           `yaml:"min_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SocketTimeout  time.Duration `yaml:"socket_timeout"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver:         getEnv("DATABASE_DRIVER", DatabaseDriverMongo),
		URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database:       getEnv("MONGODB_DATABASE", "ridehail"),
		MaxPoolSize:    getEnvAsInt("MONGODB_MAX_POOL_SIZE", 100),
		MinPoolSize:    getEnvAsInt("MONGODB_MIN_POOL_SIZE", 5),
		ConnectTimeout: getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
		SocketTimeout:  getEnvAsDuration("MONGODB_SOCKET_TIMEOUT", 30*time.Second),
		RetryDelay:     getEnvAsDuration("MONGODB_RETRY_DELAY", 5*time.Second),
	}
}

func (d *DatabaseConfig) InMemory() bool {
	return d.Driver == DatabaseDriverMemory
}

func (d *DatabaseConfig) validate() error {
	switch d.Driver {
	case DatabaseDriverMemory:
		return nil
	case DatabaseDriverMongo:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", d.Driver)
	}
	if d.URI == "" || d.Database == "" {
		return fmt.Errorf("MONGODB_URI and MONGODB_DATABASE are required for the mongodb driver")
	}
	if d.MinPoolSize > d.MaxPoolSize {
		return fmt.Errorf("MONGODB_MIN_POOL_SIZE (%d) exceeds MONGODB_MAX_POOL_SIZE (%d)", d.MinPoolSize, d.MaxPoolSize)
	}
	return nil
}

// MongoConfig builds the connection settings. retryForever keeps the initial
// connect looping, which production deployments want.
func (d *DatabaseConfig) MongoConfig(retryForever bool) *database.DatabaseConfig {
	return &database.DatabaseConfig{
		URI:            d.URI,
		Database:       d.Database,
		MaxPoolSize:    d.MaxPoolSize,
		MinPoolSize:    d.MinPoolSize,
		ConnectTimeout: d.ConnectTimeout,
		SocketTimeout:  d.SocketTimeout,
		RetryForever:   retryForever,
		RetryDelay:     d.RetryDelay,
	}
}
