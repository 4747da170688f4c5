package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/processor"
)

const wsWriteTimeout = 5 * time.Second

// Stream upgrades to a WebSocket and pushes every live event addressed to
// the path's user until either side closes. A text "ping" is answered with
// "pong"; protocol pings are answered by the library.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.WSOriginPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", "err", err, "user_id", userID)
		return
	}
	defer conn.CloseNow()

	listener := h.hub.Subscribe(func(evt processor.NotificationEvent) bool {
		return evt.UserID == userID
	}, h.cfg.WSBuffer)
	defer func() {
		listener.Close()
		if n := listener.Dropped(); n > 0 {
			h.logger.Warn("websocket listener dropped events", "user_id", userID, "dropped", n)
		}
	}()

	h.logger.Info("websocket connected", "user_id", userID)
	defer h.logger.Info("websocket disconnected", "user_id", userID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.readLoop(ctx, cancel, conn)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case evt, ok := <-listener.C():
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "")
				return
			}
			if err := writeJSON(ctx, conn, evt); err != nil {
				return
			}
		}
	}
}

// readLoop consumes client frames so control frames get processed. It
// cancels ctx when the connection ends.
func (h *NotificationHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ == websocket.MessageText && string(data) == "ping" {
			wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, []byte("pong"))
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
