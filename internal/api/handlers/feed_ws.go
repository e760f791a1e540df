package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"nearme-service/internal/api/dto"
	"nearme-service/internal/domain"
	"nearme-service/internal/feed"
	"nearme-service/internal/platform/obs"
	"nearme-service/internal/ports"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FeedHandler serves live proximity feed sessions over WebSocket.
type FeedHandler struct {
	Source    ports.PostSnapshotSource
	Locations ports.LocationStore
	RadiusKm  float64
	Limit     int
	Log       *zap.Logger
}

// Live upgrades the request and runs one feed.Session until the client
// disconnects. Every view change is pushed as a "feed" frame; frames the
// client has not consumed yet are replaced by newer ones.
func (h *FeedHandler) Live(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	radiusKm := h.RadiusKm
	if raw := strings.TrimSpace(r.URL.Query().Get("radius_km")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			writeError(w, r, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
		radiusKm = v
	}

	log := h.Log
	if log == nil {
		log = zap.L()
	}
	log = log.With(zap.String("user_id", userID), zap.String("req_id", obs.RequestID(r.Context())))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	obs.LiveSessions.Inc()
	defer obs.LiveSessions.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := feed.NewSession(userID, h.Source, h.Locations, feed.SessionConfig{
		RadiusKm: radiusKm,
		Limit:    h.Limit,
	}, log)
	defer session.Close()

	outbox := newLatestBox()
	replies := make(chan any, 4)

	offer := func(v feed.View) { outbox.offer(dto.NewFeedMessage(v)) }
	reply := func(msg string) {
		select {
		case replies <- dto.NewFeedError(msg):
		default:
			log.Debug("dropping feed error reply", zap.String("error", msg))
		}
	}

	session.OnChange(offer)
	offer(session.View())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeLoop(ctx, conn, outbox.frames(), replies, log)
		cancel()
	}()

	if err := session.Start(ctx); err != nil {
		log.Error("start feed session failed", zap.Error(err))
		reply(feed.ErrLoadPosts)
	}

	readFeedMessages(ctx, conn, session, reply, log)

	cancel()
	<-writerDone
	log.Debug("live feed closed")
}

func readFeedMessages(
	ctx context.Context,
	conn *websocket.Conn,
	session *feed.Session,
	reply func(string),
	log *zap.Logger,
) {
	readLoop(conn, log, func(data []byte) {
		var msg dto.FeedClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			reply("invalid json message")
			return
		}
		if err := validate.Struct(&msg); err != nil {
			reply(validationMessage(err))
			return
		}
		if err := dispatch(ctx, session, msg); err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				reply(publicMessage(err))
				return
			}
			log.Warn("feed message failed", zap.String("type", msg.Type), zap.Error(err))
			reply("internal server error")
		}
	})
}

func dispatch(ctx context.Context, session *feed.Session, msg dto.FeedClientMessage) error {
	switch msg.Type {
	case dto.FeedMsgLocation:
		if msg.Lat == nil || msg.Lon == nil {
			return fmt.Errorf("location: %w: lat and lon are required", domain.ErrInvalidInput)
		}
		return session.UpdateLocation(ctx, domain.LocationFix{
			Coordinates:    domain.Coordinates{Lat: *msg.Lat, Lon: *msg.Lon},
			AccuracyMeters: msg.Accuracy,
		})
	case dto.FeedMsgLocationError:
		session.ReportLocationError(msg.Message)
	case dto.FeedMsgRefresh:
		return session.Refresh(ctx)
	case dto.FeedMsgRadius:
		if msg.RadiusKm <= 0 {
			return fmt.Errorf("radius: %w: radius_km must be positive", domain.ErrInvalidInput)
		}
		session.SetRadius(msg.RadiusKm)
	}
	return nil
}
