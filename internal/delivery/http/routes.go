package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vogiaan1904/pelotond/pkg/logger"
)

// Router returns the chi router serving every HTTP route of the relay.
func (h *HTTPHandler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.HTTPLogger(h.l))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(h.authn.Middleware)

		r.Post("/api/users/login", h.Login)
		r.Post("/api/users/logout", h.Logout)

		r.Get("/relay/worlds", h.GetWorlds)
		r.Get("/relay/worlds/{worldID}", h.GetWorld)
		r.Post("/relay/worlds/{worldID}/attributes", h.PostAttribute)
		r.Put("/relay/worlds/{worldID}/state", h.PutState)

		r.Post("/api/profiles/{playerID}/activities/0/rideon", h.RideOn)

		r.Post("/api/segment-results", h.PostSegmentResult)
		r.Get("/api/segment-results/{resultID}", h.GetSegmentResult)
		r.Get("/api/segments/{segmentID}/leaderboard", h.GetLeaderboard)

		r.Post("/api/events/{eventID}/signup", h.EventSignup)
		r.Delete("/api/events/{eventID}/signup", h.EventUnsignup)

		r.Route("/api/private_event", func(r chi.Router) {
			r.Post("/", h.CreatePrivateEvent)
			r.Get("/feed", h.ListPrivateEvents)
			r.Get("/{eventID}", h.GetPrivateEvent)
			r.Put("/{eventID}", h.EditPrivateEvent)
			r.Delete("/{eventID}", h.DeletePrivateEvent)
			r.Put("/{eventID}/accept", h.AcceptInvite)
			r.Put("/{eventID}/reject", h.RejectInvite)
		})

		r.Get("/api/notifications", h.ListNotifications)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}
