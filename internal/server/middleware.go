package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/hyperjump/vaultsync/internal/config"
)

type ctxKey int

const vaultKeyCtx ctxKey = iota

var allowedHeaders = strings.Join([]string{
	"Content-Type", HeaderAPIKey, HeaderVaultKey, HeaderOpenAIAPIKey,
}, ", ")

// cors answers preflight requests and tags responses for allowed origins.
func (s *Server) cors(next http.Handler) http.Handler {
	origins := s.config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{config.DefaultOrigin}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origins, origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(origins []string, origin string) bool {
	for _, o := range origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// authenticate checks the api key against the configured keys and requires a vault key.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if keys := s.config.Server.APIKeys; len(keys) > 0 && !contains(keys, r.Header.Get(HeaderAPIKey)) {
			s.respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		vaultKey := strings.TrimSpace(r.Header.Get(HeaderVaultKey))
		if vaultKey == "" {
			s.respondError(w, http.StatusUnauthorized, "vault key is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), vaultKeyCtx, vaultKey)))
	})
}

func vaultKeyFrom(ctx context.Context) string {
	v, _ := ctx.Value(vaultKeyCtx).(string)
	return v
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
