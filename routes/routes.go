package routes

import (
	"context"
	"net/http"
	"time"

	handlers "ridehail/internal/handlers/shared"
	"ridehail/internal/middleware"
	"ridehail/pkg/logger"
	"ridehail/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// Dependencies carries everything the route tables need.
type Dependencies struct {
	Auth      middleware.TokenValidator
	Limiter   middleware.RateCounter
	RateLimit int
	Logger    *logger.Logger

	AuthHandler    *handlers.AuthHandler
	RideHandler    *handlers.RideHandler
	UserHandler    *handlers.UserHandler
	MessageHandler *handlers.MessageHandler
	AdminHandler   *handlers.AdminHandler
	WSHandler      *websocket.Handler

	// UploadsDir is served under /uploads when set
	UploadsDir string

	HealthChecks map[string]HealthCheck
}

type HealthCheck func(ctx context.Context) error

const healthTimeout = 2 * time.Second

// Setup registers /health and the /api tree on r.
func Setup(r *gin.Engine, deps *Dependencies) {
	r.GET("/health", healthHandler(deps.HealthChecks))
	if deps.UploadsDir != "" {
		r.Static("/uploads", deps.UploadsDir)
	}

	api := r.Group("/api")
	auth := middleware.AuthRequired(deps.Auth)
	poll := middleware.RateLimitMiddleware(deps.Limiter, deps.RateLimit, deps.Logger)

	SetupAuthRoutes(api, deps.AuthHandler, auth)
	SetupRideRoutes(api, deps.RideHandler, auth, poll)
	SetupUserRoutes(api, deps.UserHandler, auth)
	SetupMessageRoutes(api, deps.MessageHandler, auth, poll)
	SetupAdminRoutes(api, deps.AdminHandler, auth)

	if deps.WSHandler != nil {
		api.GET("/ws", auth, deps.WSHandler.HandleWebSocket)
	}
}

func SetupAuthRoutes(r *gin.RouterGroup, authHandler *handlers.AuthHandler, auth gin.HandlerFunc) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/validate", auth, authHandler.Validate)
	}
}

func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, auth, poll gin.HandlerFunc) {
	rides := r.Group("/rides")
	rides.Use(auth)
	{
		rides.POST("/request", middleware.PassengerRequired(), rideHandler.RequestRide)
		rides.POST("/estimate", rideHandler.EstimateRide)

		// Lifecycle
		rides.POST("/accept/:rideId", middleware.DriverRequired(), rideHandler.AcceptRide)
		rides.POST("/start/:rideId", middleware.DriverRequired(), rideHandler.StartRide)
		rides.POST("/complete/:rideId", middleware.DriverRequired(), rideHandler.CompleteRide)
		rides.POST("/cancel/:rideId", rideHandler.CancelRide)
		rides.PATCH("/:rideId/location", middleware.DriverRequired(), rideHandler.UpdateRideLocation)

		// Polling
		rides.GET("/available", middleware.DriverRequired(), poll, rideHandler.GetAvailableRides)
		rides.GET("/current", poll, rideHandler.GetCurrentRide)
		rides.GET("/status/:rideId", poll, rideHandler.GetRide)

		rides.GET("/nearby-drivers", rideHandler.GetNearbyDrivers)
		rides.GET("/history", rideHandler.GetRideHistory)
		rides.GET("/driver", middleware.DriverRequired(), rideHandler.GetRideHistory)
		rides.GET("/:rideId", rideHandler.GetRide)
	}
}

func SetupUserRoutes(r *gin.RouterGroup, userHandler *handlers.UserHandler, auth gin.HandlerFunc) {
	users := r.Group("/users")
	users.Use(auth)
	{
		users.GET("", middleware.AdminRequired(), userHandler.ListUsers)
		users.GET("/me", userHandler.GetMe)
		users.PATCH("/location", middleware.DriverRequired(), userHandler.UpdateLocation)
		users.PATCH("/availability", middleware.DriverRequired(), userHandler.SetAvailability)
		users.POST("/documents", middleware.DriverRequired(), userHandler.UploadDocument)
	}
}

func SetupMessageRoutes(r *gin.RouterGroup, messageHandler *handlers.MessageHandler, auth, poll gin.HandlerFunc) {
	messages := r.Group("/messages")
	messages.Use(auth)
	{
		messages.POST("", messageHandler.SendMessage)
		messages.GET("/ride/:rideId", poll, messageHandler.GetRideMessages)
		messages.GET("/unread", poll, messageHandler.GetUnreadMessages)
		messages.PATCH("/:messageId/read", messageHandler.MarkAsRead)
	}

	support := messages.Group("/support")
	{
		support.POST("", messageHandler.SendSupportMessage)
		support.GET("", poll, messageHandler.GetSupportThread)
		support.GET("/conversations", middleware.AdminRequired(), messageHandler.GetSupportConversations)
		support.GET("/user/:userId", middleware.AdminRequired(), messageHandler.GetSupportThreadForUser)
		support.POST("/reply", middleware.AdminRequired(), messageHandler.ReplySupport)
	}
}

func SetupAdminRoutes(r *gin.RouterGroup, adminHandler *handlers.AdminHandler, auth gin.HandlerFunc) {
	admin := r.Group("/admin")
	admin.Use(auth, middleware.AdminRequired())
	{
		admin.GET("/pending-drivers", adminHandler.GetPendingDrivers)
		admin.POST("/approve-driver/:id", adminHandler.ApproveDriver)
		admin.POST("/reject-driver/:id", adminHandler.RejectDriver)
		admin.GET("/stats", adminHandler.GetDashboardStats)
	}
}

// healthHandler reports 503 with the failing dependencies when any check
// errors.
func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
