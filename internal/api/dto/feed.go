package dto

import "nearme-service/internal/feed"

// Client -> server message types on the live feed socket.
const (
	FeedMsgLocation      = "location"
	FeedMsgLocationError = "location_error"
	FeedMsgRefresh       = "refresh"
	FeedMsgRadius        = "radius"
)

// Server -> client message types.
const (
	FeedMsgFeed  = "feed"
	FeedMsgError = "error"
)

type FeedClientMessage struct {
	Type     string   `json:"type" validate:"required,oneof=location location_error refresh radius"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Accuracy float64  `json:"accuracy,omitempty" validate:"gte=0"`
	Message  string   `json:"message,omitempty"`
	RadiusKm float64  `json:"radius_km,omitempty"`
}

type FeedServerMessage struct {
	Type          string         `json:"type"`
	Status        string         `json:"status,omitempty"`
	State         string         `json:"state,omitempty"`
	Posts         []PostResponse `json:"posts"`
	Error         string         `json:"error,omitempty"`
	CurrentUserID string         `json:"current_user_id,omitempty"`
}

func NewFeedMessage(v feed.View) FeedServerMessage {
	return FeedServerMessage{
		Type:          FeedMsgFeed,
		Status:        v.Status.String(),
		State:         v.State.String(),
		Posts:         NewPostResponses(v.Posts),
		Error:         v.Error,
		CurrentUserID: v.CurrentUserID,
	}
}

func NewFeedError(msg string) FeedServerMessage {
	return FeedServerMessage{Type: FeedMsgError, Posts: []PostResponse{}, Error: msg}
}
