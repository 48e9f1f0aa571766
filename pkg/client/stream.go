package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-orbit/pkg/server"
)

// Watch opens the telemetry websocket and calls fn for each frame until ctx
// is cancelled, fn returns false or the connection drops.
func (c *MissionClient) Watch(ctx context.Context, fn func(server.StreamMessage) bool) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/telemetry"

	dialer := websocket.Dialer{HandshakeTimeout: c.http.Timeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("telemetry stream dial failed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var msg server.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("telemetry stream: %w", err)
		}
		if !fn(msg) {
			return nil
		}
	}
}
