package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newBufferLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	log, err := NewLogger(&Config{Level: DebugLevel, Format: "json", AppName: "ridehail", Version: "test"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	return log, buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	log, buf := newBufferLogger(t)
	child := log.WithField("component", "rides")
	_ = child

	log.Info("parent")
	entry := decodeLine(t, buf)
	if _, ok := entry["component"]; ok {
		t.Fatalf("parent logger picked up child field: %v", entry)
	}
}

func TestRideEventFields(t *testing.T) {
	log, buf := newBufferLogger(t)
	rideID := primitive.NewObjectID()

	log.LogRideEvent(rideID, "ride_accepted", map[string]interface{}{"driver_id": "abc"})

	entry := decodeLine(t, buf)
	if entry["ride_id"] != rideID.Hex() {
		t.Fatalf("expected ride_id %s, got %v", rideID.Hex(), entry["ride_id"])
	}
	if entry["event"] != "ride_accepted" || entry["type"] != "ride_event" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["app"] != "ridehail" || entry["version"] != "test" {
		t.Fatalf("formatter did not stamp service info: %v", entry)
	}
}

func TestWithContextExtractsRequestID(t *testing.T) {
	log, buf := newBufferLogger(t)
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")

	log.WithContext(ctx).Warn("hello")

	entry := decodeLine(t, buf)
	if entry["request_id"] != "req-1" {
		t.Fatalf("expected request_id req-1, got %v", entry["request_id"])
	}
	if entry["level"] != "warning" {
		t.Fatalf("expected warning level, got %v", entry["level"])
	}
}

func TestRecordKeepsBaseKeys(t *testing.T) {
	log, buf := newBufferLogger(t)
	userID := primitive.NewObjectID()

	log.LogUserAction(userID, "login", map[string]interface{}{"user_id": "spoofed", "type": "other", "ip": "10.0.0.1"})

	entry := decodeLine(t, buf)
	if entry["user_id"] != userID.Hex() || entry["type"] != "user_action" || entry["ip"] != "10.0.0.1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestSecurityEventLevel(t *testing.T) {
	log, buf := newBufferLogger(t)

	log.LogSecurityEvent("token_reuse", "critical", nil)
	if entry := decodeLine(t, buf); entry["level"] != "error" {
		t.Fatalf("critical event logged at %v", entry["level"])
	}
}
