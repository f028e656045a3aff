package config

import (
	"fmt"
	"time"

	"ridehail/pkg/websocket"
)

// WebSocketConfig tunes the /api/ws event stream. Clients only ever send
// pings, so inbound frames are kept small.
type WebSocketConfig struct {
	ReadBufferSize    int           `yaml:"read_buffer_size"`
	WriteBufferSize   int           `yaml:"write_buffer_size"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout"`
	MaxMessageSize    int64         `yaml:"max_message_size"`
	EnableCompression bool          `yaml:"enable_compression"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

func loadWebSocketConfig() *WebSocketConfig {
	pongTimeout := getEnvAsDuration("WEBSOCKET_PONG_TIMEOUT", 60*time.Second)
	return &WebSocketConfig{
		ReadBufferSize:   getEnvAsInt("WEBSOCKET_READ_BUFFER_SIZE", 512),
		WriteBufferSize:  getEnvAsInt("WEBSOCKET_WRITE_BUFFER_SIZE", 1024),
		HandshakeTimeout: getEnvAsDuration("WEBSOCKET_HANDSHAKE_TIMEOUT", 10*time.Second),
		// pings must land before the peer's read deadline
		PingInterval:      getEnvAsDuration("WEBSOCKET_PING_INTERVAL", pongTimeout*9/10),
		PongTimeout:       pongTimeout,
		MaxMessageSize:    int64(getEnvAsInt("WEBSOCKET_MAX_MESSAGE_SIZE", 512)),
		EnableCompression: getEnvAsBool("WEBSOCKET_ENABLE_COMPRESSION", false),
		AllowedOrigins:    getEnvAsSlice("WEBSOCKET_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func (w *WebSocketConfig) validate() error {
	if w.PongTimeout <= 0 || w.PingInterval <= 0 {
		return fmt.Errorf("WEBSOCKET_PING_INTERVAL and WEBSOCKET_PONG_TIMEOUT must be positive")
	}
	if w.PingInterval >= w.PongTimeout {
		return fmt.Errorf("WEBSOCKET_PING_INTERVAL (%s) must be shorter than WEBSOCKET_PONG_TIMEOUT (%s)", w.PingInterval, w.PongTimeout)
	}
	if w.MaxMessageSize <= 0 {
		return fmt.Errorf("WEBSOCKET_MAX_MESSAGE_SIZE must be positive")
	}
	return nil
}

// HandlerConfig is the websocket handler's view of this config.
func (w *WebSocketConfig) HandlerConfig() *websocket.Config {
	return &websocket.Config{
		ReadBufferSize:    w.ReadBufferSize,
		WriteBufferSize:   w.WriteBufferSize,
		HandshakeTimeout:  w.HandshakeTimeout,
		PingInterval:      w.PingInterval,
		PongTimeout:       w.PongTimeout,
		MaxMessageSize:    w.MaxMessageSize,
		EnableCompression: w.EnableCompression,
		AllowedOrigins:    w.AllowedOrigins,
	}
}
