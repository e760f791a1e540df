package handlers

import (
	"context"
	"nearme-service/internal/api/dto"
	"nearme-service/internal/domain"
	"nearme-service/internal/platform/obs"
	"nearme-service/internal/ports"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LiveChats streams the caller's chat list over WebSocket, one "chats" frame
// per change.
func (h *ChatHandler) LiveChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	h.stream(w, r, "watch chats", func(ctx context.Context, box *latestBox) (ports.Subscription, error) {
		return h.Source.WatchUserChats(ctx, userID, func(chats []domain.Chat, err error) {
			if err != nil {
				box.offer(dto.NewChatError("failed to load chats"))
				return
			}
			box.offer(dto.NewChatListMessage(chats))
		})
	})
}

// LiveMessages streams one chat's messages over WebSocket, one "messages"
// frame per change.
func (h *ChatHandler) LiveMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	chatID := chi.URLParam(r, "chatID")

	h.stream(w, r, "watch messages", func(ctx context.Context, box *latestBox) (ports.Subscription, error) {
		return h.Source.WatchMessages(ctx, userID, chatID, func(msgs []domain.Message, err error) {
			if err != nil {
				box.offer(dto.NewChatError("failed to load messages"))
				return
			}
			box.offer(dto.NewMessageListMessage(chatID, msgs))
		})
	})
}

// stream subscribes before upgrading, so access errors still get a plain
// HTTP status. Client frames are read only to track pongs and close.
func (h *ChatHandler) stream(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	watch func(ctx context.Context, box *latestBox) (ports.Subscription, error),
) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log := zap.L().With(zap.String("req_id", obs.RequestID(r.Context())))

	box := newLatestBox()
	sub, err := watch(ctx, box)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	defer sub.Unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeLoop(ctx, conn, box.frames(), nil, log)
		cancel()
	}()

	readLoop(conn, log, func([]byte) {})

	cancel()
	<-writerDone
}
