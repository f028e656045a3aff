package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Logger is an immutable set of fields over a shared logrus logger. Every
// With* call returns a copy.
type Logger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

type Config struct {
	Level   LogLevel
	Format  string // json or text
	Output  string // stdout, stderr or a file path
	AppName string
	Version string
}

type contextKey string

// RequestIDKey carries the request id on a request context.
const RequestIDKey contextKey = "request_id"

func NewLogger(config *Config) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(string(config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if config.Format == "json" {
		base.SetFormatter(&ServiceFormatter{AppName: config.AppName, Version: config.Version})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out, err := openOutput(config.Output)
	if err != nil {
		return nil, err
	}
	base.SetOutput(out)

	return &Logger{logger: base, fields: logrus.Fields{}}, nil
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	return os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{logger: base, fields: logrus.Fields{}}
}

func (l *Logger) with(fields logrus.Fields) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{logger: l.logger, fields: merged}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(logrus.Fields{key: value})
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(fields)
}

// WithContext adds the request id when ctx carries one.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		return l.WithField("request_id", requestID)
	}
	return l
}

func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) WithUserID(userID primitive.ObjectID) *Logger {
	return l.WithField("user_id", userID.Hex())
}

func (l *Logger) WithRideID(rideID primitive.ObjectID) *Logger {
	return l.WithField("ride_id", rideID.Hex())
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

func (l *Logger) entry() *logrus.Entry {
	return l.logger.WithFields(l.fields)
}

func (l *Logger) Debug(msg string) { l.entry().Debug(msg) }
func (l *Logger) Info(msg string)  { l.entry().Info(msg) }
func (l *Logger) Warn(msg string)  { l.entry().Warn(msg) }
func (l *Logger) Error(msg string) { l.entry().Error(msg) }
func (l *Logger) Fatal(msg string) { l.entry().Fatal(msg) }

// record writes a typed audit entry; details never override the base keys.
func (l *Logger) record(level logrus.Level, kind string, base logrus.Fields, details map[string]interface{}, msg string) {
	fields := make(logrus.Fields, len(base)+len(details)+1)
	for k, v := range details {
		fields[k] = v
	}
	for k, v := range base {
		fields[k] = v
	}
	fields["type"] = kind
	l.with(fields).entry().Log(level, msg)
}

func (l *Logger) LogUserAction(userID primitive.ObjectID, action string, details map[string]interface{}) {
	l.record(logrus.InfoLevel, "user_action", logrus.Fields{"user_id": userID.Hex(), "action": action}, details, "User action performed")
}

func (l *Logger) LogRideEvent(rideID primitive.ObjectID, event string, details map[string]interface{}) {
	l.record(logrus.InfoLevel, "ride_event", logrus.Fields{"ride_id": rideID.Hex(), "event": event}, details, "Ride event occurred")
}

// LogAdminAction records moderation decisions at warn level.
func (l *Logger) LogAdminAction(adminID primitive.ObjectID, action string, targetID primitive.ObjectID) {
	l.record(logrus.WarnLevel, "admin_action", logrus.Fields{
		"admin_id":  adminID.Hex(),
		"action":    action,
		"target_id": targetID.Hex(),
	}, nil, "Admin action performed")
}

// LogAPIRequest logs 5xx at error and 4xx at warn.
func (l *Logger) LogAPIRequest(method, endpoint string, statusCode int, duration time.Duration, userID *primitive.ObjectID) {
	base := logrus.Fields{
		"method":      method,
		"endpoint":    endpoint,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}
	if userID != nil {
		base["user_id"] = userID.Hex()
	}

	switch {
	case statusCode >= 500:
		l.record(logrus.ErrorLevel, "api_request", base, nil, "API request failed")
	case statusCode >= 400:
		l.record(logrus.WarnLevel, "api_request", base, nil, "API request rejected")
	default:
		l.record(logrus.InfoLevel, "api_request", base, nil, "API request processed")
	}
}

func (l *Logger) LogSecurityEvent(eventType string, severity string, details map[string]interface{}) {
	level := logrus.WarnLevel
	if severity == "high" || severity == "critical" {
		level = logrus.ErrorLevel
	}
	l.record(level, "security_event", logrus.Fields{"event_type": eventType, "severity": severity}, details, "Security event detected")
}

func (l *Logger) SetOutput(output io.Writer) {
	l.logger.SetOutput(output)
}
