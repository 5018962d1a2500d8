package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/voltify/voltify/pkg/energy"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/storage"
	"github.com/voltify/voltify/pkg/types"
)

// identity is what we take from a verified Firebase ID token.
type identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
	Expiry  time.Time
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.WithAttrs(r.Context(), slog.String("reqPath", r.URL.Path))

		allowNoLogin := r.URL.Path == "/api/auth/login" || r.URL.Path == "/api/auth/status"
		ignoreUserNotFound := allowNoLogin || r.URL.Path == "/api/auth/logout" || r.URL.Path == "/api/auth/register"

		if s.bypassAuth {
			user, err := s.ensureLocalUser(ctx)
			if err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to set up local user", slog.Any("error", err))
				writeJSONError(w, "user lookup failed", http.StatusInternalServerError)
				return
			}
			ctx = context.WithValue(ctx, userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authCookie, err := r.Cookie(authTokenCookie)
		if err != nil && !errors.Is(err, http.ErrNoCookie) {
			log.Ctx(ctx).ErrorContext(ctx, "failed to get auth cookie", slog.Any("error", err))
			writeJSONError(w, "missing auth cookie", http.StatusBadRequest)
			return
		}
		if authCookie == nil {
			if allowNoLogin {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			log.Ctx(ctx).WarnContext(ctx, "no auth cookie found")
			writeJSONError(w, "missing auth cookie", http.StatusUnauthorized)
			return
		}

		ident, err := s.authenticateToken(ctx, authCookie.Value)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "auth token validation failed", slog.Any("error", err))
			s.clearCookie(w)
			writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
			return
		}
		ctx = log.WithAttrs(ctx, slog.String("authUserID", ident.Subject))

		user, err := s.storage.GetUser(ctx, ident.Subject)
		switch {
		case err == nil:
			ctx = context.WithValue(ctx, userContextKey, user)
		case errors.Is(err, storage.ErrUserNotFound) && ignoreUserNotFound:
			log.Ctx(ctx).InfoContext(ctx, "user not found, will register", slog.String("email", ident.Email))
			ctx = context.WithValue(ctx, userToRegisterContextKey, types.User{
				ID:          ident.Subject,
				Email:       ident.Email,
				DisplayName: ident.Name,
				PhotoURL:    ident.Picture,
			})
		case errors.Is(err, storage.ErrUserNotFound):
			log.Ctx(ctx).WarnContext(ctx, "unregistered user", slog.String("email", ident.Email))
			writeJSONError(w, "user not registered", http.StatusForbidden)
			return
		default:
			log.Ctx(ctx).ErrorContext(ctx, "user lookup failed", slog.Any("error", err))
			writeJSONError(w, "user lookup failed", http.StatusInternalServerError)
			return
		}

		log.Ctx(ctx).DebugContext(ctx, "authenticated request", slog.String("email", ident.Email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensureLocalUser registers the local user the first time auth is bypassed.
func (s *Server) ensureLocalUser(ctx context.Context) (types.User, error) {
	s.localUserMu.Lock()
	defer s.localUserMu.Unlock()

	local := types.User{
		ID:          types.UserIDLocal,
		DisplayName: "Local User",
	}
	if s.localUserReady {
		return local, nil
	}
	user, _, err := s.registerUser(ctx, local)
	if err != nil {
		return types.User{}, err
	}
	s.localUserReady = true
	return user, nil
}

// registerUser seeds default settings and appliances and then creates the
// profile, so a profile only exists once its defaults do. Seeding writes are
// keyed by deterministic IDs and a failed attempt can be retried. An existing
// profile gets the non-empty fields of user merged in instead, and created is
// false.
func (s *Server) registerUser(ctx context.Context, user types.User) (types.User, bool, error) {
	existing, err := s.storage.GetUser(ctx, user.ID)
	switch {
	case err == nil:
		merged, err := s.mergeExistingUser(ctx, existing, user)
		return merged, false, err
	case !errors.Is(err, storage.ErrUserNotFound):
		return types.User{}, false, fmt.Errorf("failed to get existing user: %w", err)
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if err := s.seedUser(ctx, user.ID, now); err != nil {
		return types.User{}, false, err
	}

	err = s.storage.CreateUser(ctx, user)
	if errors.Is(err, storage.ErrUserExists) {
		// registered concurrently
		existing, err := s.storage.GetUser(ctx, user.ID)
		if err != nil {
			return types.User{}, false, fmt.Errorf("failed to get existing user: %w", err)
		}
		merged, err := s.mergeExistingUser(ctx, existing, user)
		return merged, false, err
	}
	if err != nil {
		return types.User{}, false, fmt.Errorf("failed to create user: %w", err)
	}

	log.Ctx(ctx).InfoContext(ctx, "registered user", slog.String("userID", user.ID))
	return user, true, nil
}

func (s *Server) mergeExistingUser(ctx context.Context, existing, update types.User) (types.User, error) {
	merged := mergeUser(existing, update)
	if merged != existing {
		if err := s.storage.UpdateUser(ctx, merged); err != nil {
			return types.User{}, fmt.Errorf("failed to update user: %w", err)
		}
	}
	return merged, nil
}

// seedUser writes default settings and appliances for a user that has no
// profile yet.
func (s *Server) seedUser(ctx context.Context, userID string, now time.Time) error {
	if _, version, err := s.storage.GetSettings(ctx, userID); err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	} else if version == 0 {
		if err := s.storage.SetSettings(ctx, userID, types.DefaultSettings(), types.CurrentSettingsVersion); err != nil {
			return fmt.Errorf("failed to save default settings: %w", err)
		}
	}

	for i, a := range energy.DefaultAppliances() {
		a.ID = defaultApplianceID(userID, i)
		// keep the defaults in their listed order
		a.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		if err := s.storage.AddAppliance(ctx, userID, a); err != nil {
			return fmt.Errorf("failed to add default appliance: %w", err)
		}
	}
	return nil
}

// defaultApplianceID is stable per user and position so reseeding overwrites
// rather than duplicates.
func defaultApplianceID(userID string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("voltify:"+userID+":default-appliance:"+strconv.Itoa(i))).String()
}

func mergeUser(existing, update types.User) types.User {
	if update.DisplayName != "" {
		existing.DisplayName = update.DisplayName
	}
	if update.Email != "" {
		existing.Email = update.Email
	}
	if update.PhotoURL != "" {
		existing.PhotoURL = update.PhotoURL
	}
	return existing
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		DisplayName string `json:"displayName"`
	}
	// the body is optional
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user := s.getUser(r)
	if user.ID == "" {
		var ok bool
		user, ok = ctx.Value(userToRegisterContextKey).(types.User)
		if !ok {
			writeJSONError(w, "missing authentication", http.StatusUnauthorized)
			return
		}
	}
	if req.DisplayName != "" {
		if len([]rune(req.DisplayName)) < 2 {
			writeJSONError(w, "display name must be at least 2 characters", http.StatusBadRequest)
			return
		}
		user.DisplayName = req.DisplayName
	}

	registered, created, err := s.registerUser(ctx, user)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to register user", slog.Any("error", err))
		writeJSONError(w, "failed to register", http.StatusInternalServerError)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, registered)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// since we failed to read, don't return JSON error
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	ident, err := s.authenticateToken(r.Context(), req.Token)
	if err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to validate id token", slog.Any("error", err))
		writeJSONError(w, "invalid id token", http.StatusUnauthorized)
		return
	}

	if ident.Email == "" {
		log.Ctx(r.Context()).WarnContext(r.Context(), "invalid email in id token")
		writeJSONError(w, "invalid oidc claims", http.StatusUnauthorized)
		return
	}

	log.Ctx(r.Context()).InfoContext(r.Context(), "login token validated successfully", slog.String("email", ident.Email), slog.String("subject", ident.Subject))

	registered := true
	if _, err := s.storage.GetUser(r.Context(), ident.Subject); err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			log.Ctx(r.Context()).ErrorContext(r.Context(), "user lookup failed", slog.Any("error", err))
			writeJSONError(w, "user lookup failed", http.StatusInternalServerError)
			return
		}
		registered = false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    req.Token,
		Expires:  ident.Expiry,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, struct {
		Registered bool `json:"registered"`
	}{Registered: registered})
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearCookie(w)
	w.WriteHeader(http.StatusOK)
}

type authStatusResponse struct {
	LoggedIn          bool   `json:"loggedIn"`
	Registered        bool   `json:"registered"`
	UserID            string `json:"userID,omitempty"`
	Email             string `json:"email"`
	DisplayName       string `json:"displayName"`
	PhotoURL          string `json:"photoURL,omitempty"`
	AuthRequired      bool   `json:"authRequired"`
	FirebaseProjectID string `json:"firebaseProjectID,omitempty"`
	FirebaseAPIKey    string `json:"firebaseAPIKey,omitempty"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	resp := authStatusResponse{
		AuthRequired:      !s.bypassAuth,
		FirebaseProjectID: s.firebaseProjectID,
		FirebaseAPIKey:    s.firebaseAPIKey,
	}

	user := s.getUser(r)
	if user.ID != "" {
		resp.LoggedIn = true
		resp.Registered = true
	} else if userToRegister, ok := r.Context().Value(userToRegisterContextKey).(types.User); ok {
		user = userToRegister
		resp.LoggedIn = true
	}
	resp.UserID = user.ID
	resp.Email = user.Email
	resp.DisplayName = user.DisplayName
	resp.PhotoURL = user.PhotoURL

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) authenticateToken(ctx context.Context, token string) (identity, error) {
	if s.verifyToken == nil {
		return identity{}, errors.New("no firebase project configured")
	}
	idToken, err := s.verifyToken(ctx, token)
	if err != nil {
		return identity{}, fmt.Errorf("firebase verifier failed: %w", err)
	}
	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return identity{}, fmt.Errorf("failed to parse claims: %w", err)
	}
	if idToken.Subject == "" {
		return identity{}, errors.New("id token has no subject")
	}
	return identity{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
		Expiry:  idToken.Expiry,
	}, nil
}
