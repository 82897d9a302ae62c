package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"hrkpi/internal/transport/http/shared"
)

func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, shared.TotalCountHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
