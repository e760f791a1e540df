package api

import (
	"nearme-service/internal/api/handlers"
	"nearme-service/internal/platform/auth"
	"nearme-service/internal/ports"
	"nearme-service/internal/services"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Users     *services.UserService
	Posts     *services.PostService
	Chats     *services.ChatService
	Source    ports.PostSnapshotSource
	Locations ports.LocationStore
	Issuer    *auth.Issuer
	RadiusKm  float64
	FeedLimit int
	Log       *zap.Logger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	authHandler := &handlers.AuthHandler{Users: d.Users, Issuer: d.Issuer}
	postHandler := &handlers.PostHandler{
		Posts:     d.Posts,
		Locations: d.Locations,
		RadiusKm:  d.RadiusKm,
	}
	chatHandler := &handlers.ChatHandler{Chats: d.Chats, Source: d.Chats}
	feedHandler := &handlers.FeedHandler{
		Source:    d.Source,
		Locations: d.Locations,
		RadiusKm:  d.RadiusKm,
		Limit:     d.FeedLimit,
		Log:       d.Log,
	}

	mux := chi.NewRouter()

	// Request ID must be first so every log line carries it.
	mux.Use(requestID)
	mux.Use(requestLogger)
	mux.Use(recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	mux.Get("/health", handlers.Health)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Post("/auth/anonymous", authHandler.SignInAnonymously)

	mux.Group(func(r chi.Router) {
		r.Use(authenticate(d.Issuer))

		r.Get("/me", authHandler.Me)
		r.Put("/me/display-name", authHandler.UpdateDisplayName)

		r.Post("/posts", postHandler.Create)
		r.Get("/posts/nearby", postHandler.Nearby)
		r.Get("/users/{userID}/posts", postHandler.ListByUser)

		r.Get("/feed/live", feedHandler.Live)

		r.Post("/chats", chatHandler.Create)
		r.Get("/chats", chatHandler.List)
		r.Get("/chats/live", chatHandler.LiveChats)
		r.Get("/chats/with/{userID}", chatHandler.WithUser)
		r.Get("/chats/{chatID}/messages", chatHandler.Messages)
		r.Get("/chats/{chatID}/live", chatHandler.LiveMessages)
		r.Post("/chats/{chatID}/messages", chatHandler.Send)
		r.Post("/chats/{chatID}/read", chatHandler.MarkRead)
	})

	return mux
}
