package server

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
	"github.com/voltify/voltify/pkg/advisor/advisormock"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/simulator"
	"github.com/voltify/voltify/pkg/storage/storagemock"
	"github.com/voltify/voltify/pkg/types"
)

const testProjectID = "voltify-test"

func TestMain(m *testing.M) {
	log.SetDefaultLogLevel(slog.LevelError)
	os.Exit(m.Run())
}

// newTestServer returns a server that attributes every request to the
// already registered local user.
func newTestServer(t *testing.T) (*Server, *storagemock.MockDatabase, *advisormock.MockAdvisor) {
	t.Helper()
	db := &storagemock.MockDatabase{}
	adv := &advisormock.MockAdvisor{}
	t.Cleanup(func() {
		db.AssertExpectations(t)
		adv.AssertExpectations(t)
	})
	srv := &Server{
		storage:        db,
		advisor:        adv,
		simulator:      simulator.NewMap(nil, nil),
		serverName:     "voltify",
		location:       time.UTC,
		bypassAuth:     true,
		localUserReady: true,
	}
	return srv, db, adv
}

func doRequest(t *testing.T, h http.Handler, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewBuffer(buf)
	}
	req := httptest.NewRequest(method, url, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[struct {
		Error string `json:"error"`
	}](t, w).Error
}

func currentSettings() types.Settings {
	return types.DefaultSettings()
}

type testSigner struct {
	key    *rsa.PrivateKey
	issuer string
}

// setupOIDCTest wires a verifier that accepts tokens signed by the returned
// signer, the same way a Firebase project would.
func setupOIDCTest(t *testing.T, srv *Server) *testSigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer := firebaseIssuerPrefix + testProjectID
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	verifier := oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: testProjectID})

	srv.firebaseProjectID = testProjectID
	srv.verifyToken = verifier.Verify
	srv.bypassAuth = false
	return &testSigner{key: key, issuer: issuer}
}

type testClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
	Expiry  time.Time
}

func (s *testSigner) token(t *testing.T, c testClaims) string {
	t.Helper()
	if c.Expiry.IsZero() {
		c.Expiry = time.Now().Add(time.Hour)
	}
	payload, err := json.Marshal(map[string]any{
		"iss":     s.issuer,
		"aud":     testProjectID,
		"sub":     c.Subject,
		"iat":     time.Now().Add(-time.Minute).Unix(),
		"exp":     c.Expiry.Unix(),
		"email":   c.Email,
		"name":    c.Name,
		"picture": c.Picture,
	})
	require.NoError(t, err)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: s.key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)
	obj, err := signer.Sign(payload)
	require.NoError(t, err)
	raw, err := obj.CompactSerialize()
	require.NoError(t, err)
	return raw
}
