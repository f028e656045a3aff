package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"ridehail/pkg/logger"
)

const (
	UsersCollection      = "users"
	RidesCollection      = "rides"
	MessagesCollection   = "messages"
	MigrationsCollection = "migrations"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
	Config   *DatabaseConfig
}

type DatabaseConfig struct {
	URI            string
	Database       string
	MaxPoolSize    int
	MinPoolSize    int
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
	// RetryForever keeps retrying the initial connection every RetryDelay
	// instead of failing on the first error.
	RetryForever bool
	RetryDelay   time.Duration
}

func NewMongoDB(ctx context.Context, config *DatabaseConfig) (*MongoDB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(uint64(config.MaxPoolSize)).
		SetMinPoolSize(uint64(config.MinPoolSize)).
		SetSocketTimeout(config.SocketTimeout).
		SetConnectTimeout(config.ConnectTimeout).
		SetServerSelectionTimeout(config.ConnectTimeout)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &MongoDB{
		Client:   client,
		Database: client.Database(config.Database),
		Config:   config,
	}, nil
}

// Connect opens the database. With RetryForever set it logs each failure and
// tries again after RetryDelay until ctx is cancelled.
func Connect(ctx context.Context, config *DatabaseConfig, log *logger.Logger) (*MongoDB, error) {
	for attempt := 1; ; attempt++ {
		db, err := NewMongoDB(ctx, config)
		if err == nil {
			log.WithField("database", config.Database).Info("Connected to MongoDB")
			return db, nil
		}
		if !config.RetryForever {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}

		log.WithError(err).WithFields(map[string]interface{}{
			"attempt":     attempt,
			"retry_delay": config.RetryDelay.String(),
		}).Warn("MongoDB connection failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(config.RetryDelay):
		}
	}
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.Database.Collection(name)
}

func (m *MongoDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx, readpref.Primary())
}
