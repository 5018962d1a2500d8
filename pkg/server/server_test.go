package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Create a map-based filesystem for testing
	testFS := fstest.MapFS{
		"index.html":     {Data: []byte("<html>index</html>")},
		"assets/main.js": {Data: []byte("console.log('hello');")},
	}
	mux := http.NewServeMux()
	mux.Handle("/", srv.webHandler(testFS, http.FileServer(http.FS(testFS))))

	t.Run("Serve Existing File", func(t *testing.T) {
		w := doRequest(t, mux, "GET", "/assets/main.js", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "console.log('hello');", w.Body.String())
		assert.Empty(t, w.Header().Get("Cache-Control"))
	})

	t.Run("Serve Index on Root", func(t *testing.T) {
		w := doRequest(t, mux, "GET", "/", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "<html>index</html>", w.Body.String())
	})

	t.Run("Serve Index on Unknown Route", func(t *testing.T) {
		w := doRequest(t, mux, "GET", "/settings", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "<html>index</html>", w.Body.String())
	})

	t.Run("Well Known Not Found", func(t *testing.T) {
		w := doRequest(t, mux, "GET", "/.well-known/security.txt", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Cache Duration", func(t *testing.T) {
		srv.webCacheDuration = time.Hour
		defer func() { srv.webCacheDuration = 0 }()
		w := doRequest(t, mux, "GET", "/assets/main.js", nil)
		assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	})
}

func TestSetupHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.setupHandler()

	t.Run("Embedded Dashboard", func(t *testing.T) {
		w := doRequest(t, h, "GET", "/", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "<title>Voltify</title>")
	})

	t.Run("Headers", func(t *testing.T) {
		w := doRequest(t, h, "GET", "/healthz", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
		assert.Equal(t, "voltify", w.Header().Get("Server"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		for _, kv := range securityHeaders {
			assert.Equal(t, kv[1], w.Header().Get(kv[0]), kv[0])
		}
		assert.Equal(t, "same-origin-allow-popups", w.Header().Get("Cross-Origin-Opener-Policy"))
	})

	t.Run("Gzip", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/app.js", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	})

	t.Run("Unknown API Route", func(t *testing.T) {
		w := doRequest(t, h, "GET", "/api/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Wrong Method", func(t *testing.T) {
		w := doRequest(t, h, "PUT", "/api/settings", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestDevProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from dev server " + r.URL.Path))
	}))
	defer upstream.Close()

	srv, _, _ := newTestServer(t)
	srv.devProxy = upstream.URL

	w := doRequest(t, srv.setupHandler(), "GET", "/src/main.ts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from dev server /src/main.ts", w.Body.String())
}
