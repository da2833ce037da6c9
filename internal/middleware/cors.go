package middleware

import (
	"net/http"

	"poolops-backend/internal/config"

	"github.com/rs/cors"
)

// NewCORS builds the cross-origin policy for the dashboard frontend. The
// gateway webhook is exempt from all of this in practice: it posts
// server-to-server with its own signature header, never from a browser.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	origins := cfg.Server.CorsAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   cfg.Server.CorsAllowedMethods,
		AllowedHeaders:   cfg.Server.CorsAllowedHeaders,
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler
}
