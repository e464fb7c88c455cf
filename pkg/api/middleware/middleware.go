package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cbodonnell/partyhub/pkg/auth"
	authproviders "github.com/cbodonnell/partyhub/pkg/auth/providers"
	"github.com/cbodonnell/partyhub/pkg/log"
)

const (
	// DisplayNameHeader carries the caller's chosen display name
	DisplayNameHeader = "X-Display-Name"
	// MaxDisplayNameLength is the longest display name kept, in runes
	MaxDisplayNameLength = 32
)

// NewAuthMiddleware verifies the caller's token and stores an auth.Identity in the request context.
func NewAuthMiddleware(authProvider authproviders.AuthProvider) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearerToken, err := parseBearerToken(r)
			if err != nil {
				log.Error("failed to parse bearer token: %v", err)
				http.Error(w, "failed to parse bearer token", http.StatusUnauthorized)
				return
			}

			token, err := authProvider.VerifyToken(r.Context(), bearerToken)
			if err != nil {
				log.Error("failed to verify ID token: %v", err)
				http.Error(w, "failed to verify ID token", http.StatusUnauthorized)
				return
			}

			identity := auth.Identity{
				UID:  token.UID,
				Name: displayName(r, token.Name),
			}
			ctx := auth.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewCORSMiddleware answers preflight requests and sets the allowed origin on every response.
func NewCORSMiddleware(allowOrigins []string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowOrigins))
	for _, origin := range allowOrigins {
		allowed[origin] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowed["*"]:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+DisplayNameHeader)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseBearerToken parses the bearer token from the Authorization header.
// Browsers cannot set headers on websocket requests, so the token query parameter is accepted too.
func parseBearerToken(r *http.Request) (string, error) {
	// Get the Authorization header value
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("authorization header is missing")
	}

	// Check if the Authorization header has the Bearer scheme
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	// Return the token part
	return parts[1], nil
}

func displayName(r *http.Request, fallback string) string {
	name := strings.TrimSpace(r.Header.Get(DisplayNameHeader))
	if name == "" {
		name = strings.TrimSpace(r.FormValue("name"))
	}
	if name == "" {
		name = fallback
	}
	if runes := []rune(name); len(runes) > MaxDisplayNameLength {
		name = string(runes[:MaxDisplayNameLength])
	}
	return name
}
