package server

import (
	"net/http"
)

// securityHeaders are set on every response. The websocket upgrader writes
// its own handshake response, so /api/live never carries them.
var securityHeaders = [][2]string{
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	// Google sign-in runs in a popup that has to post back to the opener
	{"Cross-Origin-Opener-Policy", "same-origin-allow-popups"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}
