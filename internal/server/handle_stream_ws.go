package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/playperu/manhunt/internal/notify"
)

// handleStreamWS pushes a person's notifications over a WebSocket. Messages
// from the client are discarded.
func handleStreamWS(logger *slog.Logger, broker *notify.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := personFrom(r)

		ch := broker.Subscribe(p)
		defer broker.Unsubscribe(p, ch)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket stream ended", "person_id", p, "error", ctx.Err())
				return
			case data := <-ch:
				if err := writeEvent(ctx, conn, data); err != nil {
					logger.Debug("websocket write failed", "person_id", p, "error", err)
					return
				}
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
