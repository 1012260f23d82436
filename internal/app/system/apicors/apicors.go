// Package apicors provides CORS middleware for the bearer-key API.
//
// No cookies are involved, so credentials are never allowed and by default
// any origin may call the API.
package apicors

import (
	"net/http"
	"strings"
)

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Authorization, Content-Type, Accept"
	maxAge       = "86400"
)

// Middleware returns CORS middleware that allows any origin.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			preflight(w, r, next)
		})
	}
}

// MiddlewareWithOrigins returns CORS middleware that only echoes origins in
// allowedOrigins. With no origins it behaves like Middleware.
//
// Usage:
//
//	r.Use(apicors.MiddlewareWithOrigins(appCfg.CORSOrigins...))
func MiddlewareWithOrigins(allowedOrigins ...string) func(http.Handler) http.Handler {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			originSet[o] = struct{}{}
		}
	}
	if len(originSet) == 0 {
		return Middleware()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Unlisted origins get no CORS headers and the browser blocks them.
			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := originSet[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}
			preflight(w, r, next)
		})
	}
}

func preflight(w http.ResponseWriter, r *http.Request, next http.Handler) {
	w.Header().Set("Access-Control-Allow-Methods", allowMethods)
	w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
	w.Header().Set("Access-Control-Max-Age", maxAge)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	next.ServeHTTP(w, r)
}
