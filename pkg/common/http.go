package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version is the trimmed contents of the embedded VERSION file.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent is sent on every outbound request made through HTTPClient.
func UserAgent() string {
	return "Voltify/" + Version()
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// don't mutate the caller's request
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(req)
}

// HTTPClient returns a client that stamps the Voltify user agent on requests.
// A zero timeout means no client-side timeout, which streaming callers need.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &userAgentTransport{
			next:      http.DefaultTransport,
			userAgent: UserAgent(),
		},
		Timeout: timeout,
	}
}
