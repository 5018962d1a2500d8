package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/websocket"
	"github.com/levenlabs/go-lflag"
	"github.com/voltify/voltify/pkg/advisor"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/simulator"
	"github.com/voltify/voltify/pkg/storage"
	"github.com/voltify/voltify/pkg/types"
	"github.com/voltify/voltify/web"
	"golang.org/x/sync/errgroup"
)

const (
	authTokenCookie = "auth_token"
	// firebaseIssuerPrefix is followed by the Firebase project ID.
	firebaseIssuerPrefix = "https://securetoken.google.com/"
)

type contextKey string

const (
	userContextKey           contextKey = "user"
	userToRegisterContextKey contextKey = "userToRegister"
)

// tokenVerifier is a function that validates a Firebase ID Token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Server handles the HTTP API for the Voltify dashboard. It ties together
// storage, the advisor and the live consumption feeds.
type Server struct {
	storage   storage.Database
	advisor   advisor.Advisor
	simulator *simulator.Map

	listenAddr string
	devProxy   string
	httpServer *http.Server

	firebaseProjectID string
	firebaseAPIKey    string
	verifyToken       tokenVerifier
	bypassAuth        bool
	serverName        string
	webCacheDuration  time.Duration
	location          *time.Location
	upgrader          websocket.Upgrader

	localUserMu    sync.Mutex
	localUserReady bool
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(db storage.Database, adv advisor.Advisor, sim *simulator.Map) *Server {
	srv := &Server{
		storage:    db,
		advisor:    adv,
		simulator:  sim,
		serverName: "voltify",
		location:   time.Local,
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	devProxy := lflag.String("dev-proxy", "", "Address of the dev server (e.g. http://localhost:5173)")
	firebaseProjectID := lflag.String("firebase-project-id", "", "Firebase project whose ID tokens are accepted")
	firebaseAPIKey := lflag.String("firebase-api-key", "", "Firebase web API key handed to the dashboard")
	timezone := lflag.String("timezone", "Local", "Timezone used to bucket history into days")
	webCacheDuration := lflag.Duration("web-cache-duration", 0, "Duration to cache web files (e.g. 1h, 5m). 0 means no cache.")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.devProxy = *devProxy
		srv.firebaseProjectID = *firebaseProjectID
		srv.firebaseAPIKey = *firebaseAPIKey
		srv.webCacheDuration = *webCacheDuration

		loc, err := time.LoadLocation(*timezone)
		if err != nil {
			log.Ctx(context.Background()).Error("invalid timezone", slog.String("timezone", *timezone), slog.Any("error", err))
			os.Exit(1)
		}
		srv.location = loc

		if srv.firebaseProjectID != "" {
			provider, err := oidc.NewProvider(context.Background(), firebaseIssuerPrefix+srv.firebaseProjectID)
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize Firebase OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.verifyToken = provider.Verifier(&oidc.Config{ClientID: srv.firebaseProjectID}).Verify
		}

		if srv.devProxy != "" && srv.firebaseProjectID == "" {
			srv.bypassAuth = true
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	apiMux.HandleFunc("POST /api/auth/login", s.handleLogin)
	apiMux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	apiMux.HandleFunc("POST /api/auth/register", s.handleRegister)
	apiMux.HandleFunc("GET /api/settings", s.handleGetSettings)
	apiMux.HandleFunc("POST /api/settings", s.handleUpdateSettings)
	apiMux.HandleFunc("GET /api/appliances", s.handleListAppliances)
	apiMux.HandleFunc("POST /api/appliances", s.handleAddAppliance)
	apiMux.HandleFunc("DELETE /api/appliances/{id}", s.handleDeleteAppliance)
	apiMux.HandleFunc("GET /api/appliances/breakdown", s.handleApplianceBreakdown)
	apiMux.HandleFunc("GET /api/palette", s.handlePalette)
	apiMux.HandleFunc("GET /api/stats", s.handleStats)
	apiMux.HandleFunc("GET /api/consumption", s.handleConsumption)
	apiMux.HandleFunc("POST /api/autocutoff", s.handleAutoCutoff)
	apiMux.HandleFunc("GET /api/history/power", s.handleHistoryPower)
	apiMux.HandleFunc("GET /api/history/alerts", s.handleHistoryAlerts)
	apiMux.HandleFunc("GET /api/history/cost", s.handleHistoryCost)
	apiMux.HandleFunc("POST /api/suggestions", s.handleSuggestions)
	apiMux.HandleFunc("GET /api/suggestions/latest", s.handleLatestSuggestions)
	apiMux.HandleFunc("GET /api/tips", s.handleTips)
	apiMux.HandleFunc("POST /api/feedback", s.handleSubmitFeedback)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))

	// serve the web frontend, either from the embedded filesystem or from the dev server
	if s.devProxy != "" {
		u, err := url.Parse(s.devProxy)
		if err != nil {
			panic(fmt.Errorf("invalid dev-proxy url (%s): %w", s.devProxy, err))
		}
		mux.Handle("/", httputil.NewSingleHostReverseProxy(u))
	} else {
		distFS, err := fs.Sub(web.DistFS, "dist")
		if err != nil {
			panic(fmt.Errorf("failed to get web dist fs: %w", err))
		}
		fileServer := http.FileServer(http.FS(distFS))
		mux.Handle("/", s.webHandler(distFS, fileServer))
	}
	mux.HandleFunc("/healthz", s.handleHealthz)

	// the websocket needs the raw connection so it skips gzip
	root := http.NewServeMux()
	root.Handle("GET /api/live", s.securityHeadersMiddleware(s.authMiddleware(http.HandlerFunc(s.handleLive))))
	root.Handle("/", gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
	return s.revisionMiddleware(root)
}

func (s *Server) getUser(r *http.Request) types.User {
	if user, ok := r.Context().Value(userContextKey).(types.User); ok {
		return user
	}
	return types.User{}
}

// Run starts the HTTP server and the simulator and blocks until the context
// is canceled or either of them fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	s.httpServer.BaseContext = s.baseContext(gctx)
	g.Go(func() error {
		return s.simulator.Run(gctx)
	})
	g.Go(func() error {
		return s.serve(gctx)
	})
	return g.Wait()
}

// baseContext ties request contexts to ctx. Live connections are hijacked so
// Shutdown won't wait on them, they watch the request context instead.
func (s *Server) baseContext(ctx context.Context) func(net.Listener) context.Context {
	return func(net.Listener) context.Context {
		return ctx
	}
}

func (s *Server) serve(ctx context.Context) error {
	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) webHandler(dir fs.FS, h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Default to serving index.html for unknown paths (SPA)
		if r.URL.Path != "/" {
			f, err := dir.Open(strings.TrimPrefix(r.URL.Path, "/"))
			if err == nil {
				f.Close()
			} else if errors.Is(err, fs.ErrNotExist) {
				if strings.HasPrefix(r.URL.Path, "/.well-known/") {
					// we don't write JSON here because we don't know what file type is expected
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				r.URL.Path = "/"
			} else {
				log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to open file", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}
		if s.webCacheDuration > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.webCacheDuration.Seconds())))
		}

		h.ServeHTTP(w, r)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loc() *time.Location {
	if s.location == nil {
		return time.Local
	}
	return s.location
}
