package security

import (
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector() *Detector {
	return NewDetector(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"dashboard read", http.MethodGet, "/dashboard/kpis?filter_type=week", "curl/8.0", false},
		{"path traversal", http.MethodGet, "/transactions/../../etc/passwd", "", true},
		{"admin probe", http.MethodGet, "/wp-admin/setup.php", "", true},
		{"scanner agent", http.MethodGet, "/healthz", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
		{"long url", http.MethodGet, "/transactions?search=" + strings.Repeat("a", 2100), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			assert.Equal(t, tt.want, newTestDetector().DetectSuspiciousRequest(r))
		})
	}
}

func TestDetectorMiddlewarePassesThrough(t *testing.T) {
	d := newTestDetector()
	handler := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.env", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.EqualValues(t, 1, d.GetMetrics().SuspiciousRequests)
}

func TestExtractClientIP(t *testing.T) {
	d := newTestDetector()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.1.2.3")
	assert.Equal(t, "198.51.100.7", d.ExtractClientIP(r))

	// untrusted peers cannot spoof their address
	r.RemoteAddr = "203.0.113.9:4000"
	assert.Equal(t, "203.0.113.9", d.ExtractClientIP(r))

	require.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))
	assert.Equal(t, "198.51.100.7", d.ExtractClientIP(r))

	assert.Error(t, d.AddTrustedProxy("not-a-cidr"))
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rr, r)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
}
