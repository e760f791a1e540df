package handlers

import (
	"errors"
	"nearme-service/internal/api/dto"
	"nearme-service/internal/domain"
	"nearme-service/internal/feed"
	"nearme-service/internal/ports"
	"nearme-service/internal/services"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PostHandler struct {
	Posts     *services.PostService
	Locations ports.LocationStore
	RadiusKm  float64
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	loc := domain.Coordinates{Lat: *req.Lat, Lon: *req.Lon}
	post, err := h.Posts.CreatePost(r.Context(), userID, req.Content, loc)
	if err != nil {
		writeServiceError(w, r, "create post", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, dto.NewPostResponse(*post))
}

// Nearby ranks recent posts around the caller. Coordinates come from the
// lat/lon query parameters, or from the caller's last stored fix when both
// are omitted.
func (h *PostHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	radiusKm := h.RadiusKm
	if raw := strings.TrimSpace(q.Get("radius_km")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			writeError(w, r, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
		radiusKm = v
	}
	if radiusKm <= 0 {
		radiusKm = feed.DefaultRadiusKm
	}

	observer, found, err := h.observer(r, userID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !found {
		writeError(w, r, http.StatusUnprocessableEntity, feed.ErrLocationUnavailable)
		return
	}

	posts, err := h.Posts.NearbyPosts(r.Context(), observer, radiusKm)
	if err != nil {
		writeServiceError(w, r, "nearby posts", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.NearbyPostResponse{
		Observer: dto.LocationDTO{Lat: observer.Lat, Lon: observer.Lon},
		RadiusKm: radiusKm,
		Posts:    dto.NewPostResponses(posts),
	})
}

// observer resolves the ranking origin for Nearby. Explicit coordinates are
// persisted as the caller's latest fix.
func (h *PostHandler) observer(r *http.Request, userID string) (domain.Coordinates, bool, error) {
	q := r.URL.Query()
	rawLat, rawLon := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))

	if rawLat == "" && rawLon == "" {
		if h.Locations == nil {
			return domain.Coordinates{}, false, nil
		}
		fix, err := h.Locations.GetObserverLocation(r.Context(), userID)
		if err != nil {
			zap.L().Warn("load stored location failed", zap.String("user_id", userID), zap.Error(err))
			return domain.Coordinates{}, false, nil
		}
		if fix == nil {
			return domain.Coordinates{}, false, nil
		}
		return fix.Coordinates, true, nil
	}

	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return domain.Coordinates{}, false, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return domain.Coordinates{}, false, errors.New("lon must be a number")
	}
	c := domain.Coordinates{Lat: lat, Lon: lon}
	if !c.Valid() {
		return domain.Coordinates{}, false, errors.New("lat/lon out of range")
	}

	if h.Locations != nil {
		fix := domain.LocationFix{Coordinates: c, At: time.Now()}
		if err := h.Locations.SetObserverLocation(r.Context(), userID, fix); err != nil {
			zap.L().Warn("persist location failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return c, true, nil
}

func (h *PostHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	authorID := chi.URLParam(r, "userID")
	posts, err := h.Posts.ListUserPosts(r.Context(), authorID)
	if err != nil {
		writeServiceError(w, r, "list user posts", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ListPostResponse{Posts: dto.NewPostResponses(posts)})
}
