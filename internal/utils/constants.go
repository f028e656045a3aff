package utils

import "time"

// Application Constants
const (
	AppName    = "RideHail"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Authentication
	JWTAccessTokenTTL = 24 * time.Hour
	PasswordMinLength = 6
	PasswordMaxLength = 128

	// Rides
	MaxRideDistanceMeters    = 100000.0
	MaxRideDurationSeconds   = 7200.0
	DefaultSearchRadiusM     = 10000.0
	MaxSearchRadiusM         = 50000.0
	DefaultNearbyDriverLimit = 20

	// Pricing
	DefaultBasePrice      = 2.0
	DefaultPricePerKm     = 2.0
	DefaultPricePerMinute = 0.25

	// Polling cadence expected from clients
	RidePollInterval           = 3 * time.Second
	AvailableRidesPollInterval = 5 * time.Second

	// File Upload
	MaxDocumentSize = 10 * 1024 * 1024 // 10MB

	// Rate Limiting
	DefaultRateLimit = 120

	// Chat
	MaxMessageLength = 1000

	// Cache TTLs
	AvailableDriversCacheTTL = 10 * time.Second
	UserCacheTTL             = 5 * time.Minute
)

// Context keys set by the auth middleware
const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextRequestID = "request_id"
)

// Error codes returned next to the human readable message
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeDriverNotApproved  = "DRIVER_NOT_APPROVED"
	CodeDistanceTooLong    = "DISTANCE_TOO_LONG"
	CodeDurationTooLong    = "DURATION_TOO_LONG"
	CodeRideUnavailable    = "RIDE_UNAVAILABLE"
	CodeInvalidTransition  = "INVALID_RIDE_STATUS"
	CodeActiveRideExists   = "ACTIVE_RIDE_EXISTS"
	CodeDriverBusy         = "DRIVER_BUSY"
)

// Error Messages
const (
	ErrInvalidCredentials = "invalid credentials"
	ErrUserNotFound       = "user not found"
	ErrUserExists         = "user already exists"
	ErrInvalidToken       = "invalid token"
	ErrInternalServer     = "internal server error"
	ErrUnauthorized       = "unauthorized"
	ErrForbidden          = "forbidden"
	ErrValidationFailed   = "validation failed"
	ErrRideNotFound       = "ride not found"
	ErrRideUnavailable    = "ride not found or already accepted"
	ErrMessageNotFound    = "message not found"
)

// Cache Keys
const (
	CacheKeyUser             = "user:%s"
	CacheKeyAvailableDrivers = "drivers:available:count"
	CacheKeyRateLimit        = "ratelimit:%s:%s"
)

// Pub/sub channels and broker names
const (
	ChannelRideEvents  = "ride_events"
	ExchangeRideEvents = "ride_events"
)

// WebSocket rooms
const (
	RoomUserPrefix = "user_"
	RoomDrivers    = "drivers"
	RoomAdmins     = "admins"
)

var AllowedDocumentTypes = []string{"pdf", "jpg", "jpeg", "png"}
