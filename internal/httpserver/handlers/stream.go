package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
)

const streamTypeSnapshot = "snapshot"

type streamMessage struct {
	Type      string            `json:"type"`
	Owner     string            `json:"owner"`
	Bookmarks []domain.Bookmark `json:"bookmarks"`
	Timestamp time.Time         `json:"timestamp"`
}

// Stream pushes a snapshot of the view over a websocket after every
// change. The socket is closed when the session ends.
func Stream(d deps.Deps) http.HandlerFunc {
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	writeTimeout := d.StreamWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := d.Client.Session()
		if err != nil {
			writeError(w, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: d.StreamAllowedOrigins,
		})
		if err != nil {
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer conn.CloseNow()

		updates, cancel := sess.Watch()
		defer cancel()

		// Client messages are ignored; CloseRead notices the client leaving.
		ctx := conn.CloseRead(r.Context())

		d.Logger.Debug("stream client connected", logger.String("owner", sess.Owner()))
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "session ended")
					return
				}
				msg := streamMessage{
					Type:      streamTypeSnapshot,
					Owner:     sess.Owner(),
					Bookmarks: snap,
					Timestamp: now(),
				}
				if err := writeMessage(ctx, conn, msg, writeTimeout); err != nil {
					d.Logger.Debug("stream write failed", logger.Error(err))
					return
				}
			case <-ctx.Done():
				d.Logger.Debug("stream client disconnected", logger.String("owner", sess.Owner()))
				return
			}
		}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg streamMessage, timeout time.Duration) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
