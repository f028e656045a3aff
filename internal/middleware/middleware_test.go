package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "middleware-test-secret"

type secretValidator struct{}

func (secretValidator) ValidateToken(token string) (*utils.JWTClaims, error) {
	return utils.ValidateToken(token, testSecret)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	protected := r.Group("/api", AuthRequired(secretValidator{}))
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.MustGet(utils.ContextUserID).(primitive.ObjectID).Hex()})
	})
	protected.GET("/admin", AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func token(t *testing.T, id primitive.ObjectID, role models.UserRole) string {
	t.Helper()
	tok, err := utils.GenerateToken(id, string(role), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorBody {
	t.Helper()
	var body utils.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestAuthRequired(t *testing.T) {
	router := newAuthRouter()
	userID := primitive.NewObjectID()
	valid := token(t, userID, models.UserRolePassenger)
	foreign, err := utils.GenerateToken(userID, "passenger", "other-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"missing token", "/api/me", nil, http.StatusUnauthorized},
		{"not a bearer token", "/api/me", map[string]string{"Authorization": valid}, http.StatusUnauthorized},
		{"wrong signature", "/api/me", map[string]string{"Authorization": "Bearer " + foreign}, http.StatusUnauthorized},
		{"valid token", "/api/me", map[string]string{"Authorization": "Bearer " + valid}, http.StatusOK},
		{"query token without upgrade", "/api/me?token=" + valid, nil, http.StatusUnauthorized},
		{"query token on websocket upgrade", "/api/me?token=" + valid, map[string]string{"Upgrade": "websocket", "Connection": "Upgrade"}, http.StatusOK},
		{"wrong role", "/api/admin", map[string]string{"Authorization": "Bearer " + valid}, http.StatusForbidden},
		{"admin role", "/api/admin", map[string]string{"Authorization": "Bearer " + token(t, userID, models.UserRoleAdmin)}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			switch w.Code {
			case http.StatusUnauthorized:
				if body := decodeError(t, w); body.Code != utils.CodeUnauthorized || body.Message == "" {
					t.Fatalf("unexpected error body: %+v", body)
				}
			case http.StatusForbidden:
				if body := decodeError(t, w); body.Code != utils.CodeForbidden {
					t.Fatalf("unexpected error body: %+v", body)
				}
			}
		})
	}
}

type countingLimiter struct {
	counts map[string]int64
}

func (l *countingLimiter) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	l.counts[key]++
	return l.counts[key], nil
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int64{}}
	r := gin.New()
	r.GET("/poll", RateLimitMiddleware(limiter, 2, logger.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/poll", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence: %v", codes)
	}

	open := gin.New()
	open.GET("/poll", RateLimitMiddleware(nil, 1, logger.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/poll", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("requests without a limiter must pass, got %d", w.Code)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(utils.ContextRequestID))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Request-ID") == "" || w.Body.String() != w.Header().Get("X-Request-ID") {
		t.Fatalf("request id not propagated: header=%q body=%q", w.Header().Get("X-Request-ID"), w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" {
		t.Fatalf("incoming request id not kept: %q", w.Body.String())
	}
}
