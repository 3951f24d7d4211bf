package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the public HTTP surface. Account routes are present
// only when h.Users is set; anonymous-only store backends simply have no
// account surface.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.Health)

	// Share links point here; serving the status payload keeps the link
	// navigable without a rendered UI.
	r.Get("/view/{id}", h.SecretMeta)

	r.Route("/api", func(r chi.Router) {
		if h.Users != nil {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
		}

		r.Route("/secrets", func(r chi.Router) {
			if h.Users != nil {
				r.With(authMiddleware(h.Users, false)).Post("/", h.CreateSecret)
				r.With(authMiddleware(h.Users, true)).Get("/", h.ListSecrets)
			} else {
				r.Post("/", h.CreateSecret)
			}

			r.Get("/{id}", h.SecretMeta)
			r.Post("/{id}/disclose", h.DiscloseSecret)

			if h.Users != nil {
				r.Group(func(r chi.Router) {
					r.Use(authMiddleware(h.Users, true))
					r.Delete("/{id}", h.DeleteSecret)
					r.Post("/{id}/expire", h.AccelerateExpiry)
					r.Post("/{id}/expiry", h.ExtendExpiry)
				})
			}
		})
	})

	return r
}
