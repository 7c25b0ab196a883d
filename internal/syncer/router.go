package syncer

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a chi router with all sync endpoints. When token is
// non-empty, /api/v1 routes require it as a bearer token; /health stays
// open for probes.
func NewRouter(handler *Handler, token string, ws http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	// middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// basic cors
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS", "DELETE", "PUT"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// health check
	r.Get("/health", handler.Health)

	if ws != nil {
		r.Get("/ws", ws)
	}

	// api v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth(token))

		// sync endpoints
		r.Post("/sync", handler.TriggerSync)
		r.Get("/sync/status", handler.Status)

		// auth endpoints
		r.Get("/auth/status", handler.AuthStatus)
		r.Post("/auth/qr", handler.StartQR)
		r.Delete("/auth/qr", handler.CancelQR)
	})

	return r
}

// bearerAuth rejects requests without the configured token.
// An empty token disables the check.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				respondError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
