package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ridehail/pkg/logger"
)

// Context keys the auth middleware populates before the upgrade.
const (
	ContextUserIDKey   = "user_id"
	ContextUserRoleKey = "user_role"
)

type Config struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	PongTimeout       time.Duration
	MaxMessageSize    int64
	EnableCompression bool
	AllowedOrigins    []string
}

type Handler struct {
	hub      *Hub
	config   *Config
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHandler(hub *Hub, config *Config, log *logger.Logger) *Handler {
	h := &Handler{
		hub:    hub,
		config: config,
		log:    log.WithComponent("websocket"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:    config.ReadBufferSize,
		WriteBufferSize:   config.WriteBufferSize,
		HandshakeTimeout:  config.HandshakeTimeout,
		EnableCompression: config.EnableCompression,
		CheckOrigin:       h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized", "code": "UNAUTHORIZED"})
		return
	}
	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized", "code": "UNAUTHORIZED"})
		return
	}
	role := c.GetString(ContextUserRoleKey)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).WithUserID(userObjectID).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, userObjectID, role, h.config)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Handler) SendUserNotification(userID primitive.ObjectID, notificationType string, data interface{}) int {
	return h.hub.SendToUser(userID, Message{
		Type:      notificationType,
		Timestamp: getCurrentTimestamp(),
		Data:      data,
	})
}

func (h *Handler) SendRoomNotification(roomID, notificationType string, data interface{}) int {
	return h.hub.SendToRoom(roomID, Message{
		Type:      notificationType,
		Timestamp: getCurrentTimestamp(),
		Data:      data,
	})
}
