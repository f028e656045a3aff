package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridehail/internal/config"
	handlers "ridehail/internal/handlers/shared"
	"ridehail/internal/middleware"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/repositories/memory"
	"ridehail/internal/repositories/mongodb"
	"ridehail/internal/services"
	"ridehail/internal/utils"
	"ridehail/internal/validators"
	"ridehail/pkg/broker"
	"ridehail/pkg/cache"
	"ridehail/pkg/database"
	"ridehail/pkg/logger"
	"ridehail/pkg/maps"
	"ridehail/pkg/storage"
	"ridehail/pkg/websocket"
	"ridehail/routes"

	"github.com/gin-gonic/gin"
)

type repositories struct {
	users    interfaces.UserRepository
	rides    interfaces.RideRepository
	messages interfaces.MessageRepository
	ping     func(context.Context) error
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  "stdout",
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional Redis: cache, rate limiting and cross-instance event relay
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(ctx, &cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without cache")
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	repos, err := openRepositories(ctx, cfg, redisCache, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open repositories")
	}
	defer repos.close()

	storageProvider, uploadsDir, err := openStorage(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	var mapsProvider maps.MapsProvider
	if cfg.Maps.Enabled() {
		googleMaps, err := maps.NewGoogleMapsProvider(cfg.Maps.GoogleMaps.APIKey, cfg.Maps.GoogleMaps.Timeout)
		if err != nil {
			log.WithError(err).Warn("Maps provider unavailable, clients must send distance and duration")
		} else {
			mapsProvider = googleMaps
		}
	}

	// Websocket hub and event sinks
	hub := websocket.NewHub(log)
	go hub.Run(ctx)
	wsHandler := websocket.NewHandler(hub, cfg.WebSocket.HandlerConfig(), log)
	hubSink := services.NewHubSink(wsHandler)

	var sinks []services.EventSink
	var serviceCache services.Cache
	var limiter middleware.RateCounter
	if redisCache != nil {
		serviceCache = redisCache
		limiter = redisCache
		// every instance, this one included, receives its events back through
		// the subscription
		sinks = append(sinks, services.NewRedisSink(redisCache, utils.ChannelRideEvents))
		subscription := redisCache.Subscribe(ctx, utils.ChannelRideEvents)
		defer subscription.Close()
		go services.RelayEvents(ctx, subscription.Channel(), hubSink, log)
	} else {
		sinks = append(sinks, hubSink)
	}

	if cfg.Broker.Enabled() {
		rabbit, err := broker.NewRabbitMQ(&broker.Config{
			URL:            cfg.Broker.URL,
			Exchange:       cfg.Broker.Exchange,
			ConnectRetries: cfg.Broker.ConnectRetries,
			PublishTimeout: cfg.Broker.PublishTimeout,
		}, log)
		if err != nil {
			log.WithError(err).Warn("RabbitMQ unavailable, events stay internal")
		} else {
			defer rabbit.Close()
			sinks = append(sinks, services.NewBrokerSink(rabbit))
		}
	}
	events := services.NewEventService(log, sinks...)

	// Services
	discovery := services.NewDiscoveryService(repos.users, repos.rides, serviceCache, services.DiscoveryConfig{
		SearchRadiusMeters: cfg.Ride.SearchRadiusMeters,
		DriverCountTTL:     cfg.Ride.DriverCountTTL,
	}, log)
	pricing := services.NewPricingService(services.PricingConfig{
		BasePrice:      cfg.Ride.BasePrice,
		PricePerKm:     cfg.Ride.PricePerKm,
		PricePerMinute: cfg.Ride.PricePerMinute,
	})
	authService := services.NewAuthService(repos.users, services.AuthConfig{
		JWTSecret:  cfg.Security.JWTSecret,
		TokenTTL:   cfg.Security.JWTAccessTokenTTL,
		BcryptCost: cfg.Security.BcryptCost,
	}, log)
	rideService := services.NewRideService(repos.rides, repos.users, pricing, discovery, events, mapsProvider, services.RideServiceConfig{
		Limits: validators.RideLimits{
			MaxDistanceMeters:  cfg.Ride.MaxDistanceMeters,
			MaxDurationSeconds: cfg.Ride.MaxDurationSeconds,
		},
	}, log)
	userService := services.NewUserService(repos.users, storageProvider, cfg.Storage.MaxFileSize, log)
	messageService := services.NewMessageService(repos.messages, repos.rides, repos.users, events, log)
	adminService := services.NewAdminService(repos.users, repos.rides, log)

	if err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.WithError(err).Error("Failed to seed admin account")
	}

	// HTTP
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		log.WithError(err).Warn("Invalid trusted proxies")
	}
	healthChecks := map[string]routes.HealthCheck{"database": repos.ping}
	if redisCache != nil {
		healthChecks["redis"] = redisCache.Ping
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	routes.Setup(router, &routes.Dependencies{
		Auth:           authService,
		Limiter:        limiter,
		RateLimit:      cfg.Security.RateLimitPerMinute,
		Logger:         log,
		AuthHandler:    handlers.NewAuthHandler(authService, log),
		RideHandler:    handlers.NewRideHandler(rideService, log),
		UserHandler:    handlers.NewUserHandler(userService, log),
		MessageHandler: handlers.NewMessageHandler(messageService, log),
		AdminHandler:   handlers.NewAdminHandler(adminService, log),
		WSHandler:      wsHandler,
		UploadsDir:     uploadsDir,
		HealthChecks:   healthChecks,
	})

	server := &http.Server{
		Addr:              cfg.App.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"address":     server.Addr,
			"environment": cfg.App.Environment,
			"database":    cfg.Database.Driver,
		}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
}

// openRepositories connects MongoDB (retrying forever in production) and
// runs migrations, or builds the in-memory store.
func openRepositories(ctx context.Context, cfg *config.Config, redisCache *cache.RedisCache, log *logger.Logger) (*repositories, error) {
	if cfg.Database.InMemory() {
		log.Warn("Using in-memory storage, data is lost on restart")
		return &repositories{
			users:    memory.NewUserRepository(),
			rides:    memory.NewRideRepository(),
			messages: memory.NewMessageRepository(),
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	}

	db, err := database.Connect(ctx, cfg.Database.MongoConfig(cfg.App.IsProduction()), log)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db.Database, log).Up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	var userCache mongodb.Cache
	if redisCache != nil {
		userCache = redisCache
	}

	return &repositories{
		users:    mongodb.NewUserRepository(db.Database, userCache),
		rides:    mongodb.NewRideRepository(db.Database),
		messages: mongodb.NewMessageRepository(db.Database),
		ping:     db.Ping,
		close: func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Warn("Failed to close MongoDB")
			}
		},
	}, nil
}

// openStorage returns the document store and, for local storage, the
// directory to serve under /uploads.
func openStorage(ctx context.Context, cfg *config.Config) (storage.StorageProvider, string, error) {
	if cfg.Storage.Provider == config.StorageProviderAWS {
		s3, err := storage.NewAWSS3Storage(ctx, &storage.AWSS3Config{
			Region:          cfg.Storage.AWS.Region,
			Bucket:          cfg.Storage.AWS.Bucket,
			AccessKeyID:     cfg.Storage.AWS.AccessKeyID,
			SecretAccessKey: cfg.Storage.AWS.SecretAccessKey,
			CDNDomain:       cfg.Storage.AWS.CDNDomain,
		})
		if err != nil {
			return nil, "", err
		}
		return s3, "", nil
	}

	local, err := storage.NewLocalStorage(cfg.Storage.Local.BasePath, cfg.Storage.Local.BaseURL)
	if err != nil {
		return nil, "", err
	}
	return local, cfg.Storage.Local.BasePath, nil
}
