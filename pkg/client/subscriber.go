package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ridehail/internal/models"

	"github.com/gorilla/websocket"
)

// Subscriber receives ride and message events over the server's websocket.
// Events are hints: handlers should refetch the resource they name.
type Subscriber struct {
	client       *Client
	dialer       *websocket.Dialer
	PingInterval time.Duration
}

func NewSubscriber(c *Client) *Subscriber {
	return &Subscriber{
		client:       c,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		PingInterval: 30 * time.Second,
	}
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (s *Subscriber) endpoint() (string, error) {
	u, err := url.Parse(s.client.BaseURL())
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	return u.String(), nil
}

// Listen blocks, calling handle for every event, until ctx is cancelled or
// the connection fails.
func (s *Subscriber) Listen(ctx context.Context, handle func(*models.EventNotification)) error {
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.client.Token())
	conn, resp, err := s.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteJSON(frame{Type: "ping"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil || f.Type == "pong" || len(f.Data) == 0 {
			continue
		}
		var event models.EventNotification
		if err := json.Unmarshal(f.Data, &event); err != nil {
			continue
		}
		handle(&event)
	}
}
