// ABOUTME: Tests for server construction, probes, metrics and the serve/shutdown lifecycle
// ABOUTME: Uses real stores under t.TempDir and a loopback listener

package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/folio/internal/config"
	"github.com/2389/folio/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Storage: config.StorageConfig{
			DocumentsDir:    filepath.Join(dir, "data"),
			CredentialsPath: filepath.Join(dir, "users.yml"),
		},
		Database: config.DatabaseConfig{Path: MemoryDatabase},
		Auth: config.AuthConfig{
			Mode:                 config.AuthModeRequired,
			SessionSecret:        "0123456789abcdef0123456789abcdef",
			BcryptCost:           4,
			SessionTTL:           time.Hour,
			SessionSweepInterval: time.Minute,
		},
		Documents: config.DocumentsConfig{
			ExtensionPolicy:    config.ExtensionPolicyStrict,
			RenderCacheEntries: 16,
			RenderCacheTTL:     time.Minute,
		},
		RateLimit: config.RateLimitConfig{LoginPerMinute: 10, Burst: 5},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNew_CreatesDocumentsDir(t *testing.T) {
	cfg := testConfig(t)
	newTestServer(t, cfg)

	info, err := os.Stat(cfg.Storage.DocumentsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNew_RejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Documents.ExtensionPolicy = "loose"

	_, err := New(cfg, testLogger())
	assert.Error(t, err)
}

func TestHealthProbes(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)
	h := s.Handler()

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = get(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	require.NoError(t, os.RemoveAll(cfg.Storage.DocumentsDir))
	rec = get(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMarkdownViewsUseRenderCache(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)
	h := s.Handler()

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.DocumentsDir, "about.md"), []byte("# Title"), 0644))

	for range 2 {
		rec := get(t, h, "/about.md")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<h1>Title</h1>")
	}
	assert.Equal(t, 1, s.renders.Len())
}

func TestSessionCookieSecureOnTailnet(t *testing.T) {
	sessionCookie := func(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
		t.Helper()
		for _, c := range rec.Result().Cookies() {
			if c.Name == session.CookieName {
				return c
			}
		}
		t.Fatal("no session cookie set")
		return nil
	}

	t.Run("plain listener", func(t *testing.T) {
		s := newTestServer(t, testConfig(t))
		assert.False(t, sessionCookie(t, get(t, s.Handler(), "/")).Secure)
	})

	t.Run("tailscale", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Tailscale.Enabled = true
		cfg.Tailscale.Hostname = "folio"
		s := newTestServer(t, cfg)

		cookie := sessionCookie(t, get(t, s.Handler(), "/"))
		assert.True(t, cookie.Secure)
		assert.True(t, cookie.HttpOnly)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	h := s.Handler()

	get(t, h, "/")
	rec := get(t, h, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `folio_http_requests_total{method="GET",route="/",status_code="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	s := newTestServer(t, cfg)

	rec := get(t, s.Handler(), "/metrics")
	// Falls through to the document route and redirects with a not-found message
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRateLimiterOptional(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.LoginPerMinute = 0
	s := newTestServer(t, cfg)
	assert.Nil(t, s.limiter)

	s = newTestServer(t, testConfig(t))
	assert.NotNil(t, s.limiter)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "sessions.db")
	s := newTestServer(t, cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln)
	}()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	_, err = os.Stat(cfg.Database.Path)
	assert.NoError(t, err, "sqlite session database should exist")

	// A second shutdown is a no-op
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")

	_, err := resolveTailscaleAuthKey("")
	assert.Error(t, err)

	key, err := resolveTailscaleAuthKey("tskey-configured")
	require.NoError(t, err)
	assert.Equal(t, "tskey-configured", key)

	t.Setenv("TS_AUTHKEY", "tskey-env")
	key, err = resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)
}

func TestResolveTailscaleStateDir(t *testing.T) {
	dir, err := resolveTailscaleStateDir("/var/lib/folio/ts")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/folio/ts", dir)

	t.Setenv("HOME", "/home/tester")
	dir, err = resolveTailscaleStateDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", ".local", "share", "folio", "tailscale"), dir)
}

func TestAppendCloseError(t *testing.T) {
	var errs []error
	errs = appendCloseError(errs, "ok", nil)
	assert.Empty(t, errs)

	errs = appendCloseError(errs, "store close", io.ErrClosedPipe)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], io.ErrClosedPipe)
	assert.Contains(t, errs[0].Error(), "store close")
}
