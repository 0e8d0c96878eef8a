package middleware

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/kerjalabs/attendance-backend-go/internal/handler/http/response"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/jwt"
)

// AuthRequired rejects requests whose verified token is missing or does not
// carry a complete identity. Stream tokens only authenticate the SSE
// endpoints, never the regular API.
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}

		if token == nil {
			response.Unauthorized(w, "Missing or invalid token")
			return
		}

		if tokenType, ok := claims["type"].(string); ok && tokenType == "stream" {
			response.Unauthorized(w, "Stream tokens cannot authenticate API requests")
			return
		}

		if _, err := jwt.FromContext(r.Context()); err != nil {
			response.Unauthorized(w, "Token is missing required identity claims")
			return
		}

		next.ServeHTTP(w, r)
	})
}
