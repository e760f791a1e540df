package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients are authenticated by token, not by origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// latestBox is a one-slot mailbox: a newer frame replaces one the writer has
// not picked up yet.
type latestBox struct {
	mu sync.Mutex
	ch chan any
}

func newLatestBox() *latestBox {
	return &latestBox{ch: make(chan any, 1)}
}

func (b *latestBox) offer(frame any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.ch:
	default:
	}
	b.ch <- frame
}

func (b *latestBox) frames() <-chan any {
	return b.ch
}

// writeLoop owns all writes on conn until ctx is done or a write fails. It
// closes conn on return.
func writeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	outbox <-chan any,
	replies <-chan any,
	log *zap.Logger,
) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		case v := <-outbox:
			err = write(v)
		case v := <-replies:
			err = write(v)
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

// readLoop keeps the read deadline alive through pongs and hands every data
// frame to handle until the connection fails or closes.
func readLoop(conn *websocket.Conn, log *zap.Logger, handle func(data []byte)) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(data)
	}
}
