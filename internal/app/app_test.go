package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidgate/internal/config"
	"vidgate/internal/shared/testutil"
	"vidgate/internal/store"
	api "vidgate/pkg/contracts/api/v1"
	"vidgate/pkg/contracts/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.EngineDir = t.TempDir()
	cfg.Server.ShutdownTimeout = 2 * time.Second
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.EngineDir, "engine.bin"), []byte("ENGINE"), 0o600))
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, records ...domain.LicenseRecord) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	app, err := NewApplication(context.Background(), cfg, logger, nil,
		WithStore(store.NewMemory(records...)),
		WithClock(testutil.Clock()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { app.Stop(context.Background()) })
	return app
}

func serve(app *Application, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplication(t *testing.T) {
	t.Run("wires services", func(t *testing.T) {
		app := newTestApp(t, testConfig(t))

		require.NotNil(t, app.Services)
		assert.NotNil(t, app.Services.Authority)
		assert.NotNil(t, app.Services.Issuer)
		assert.NotNil(t, app.Router)
		assert.Equal(t, ":8080", app.Server.Addr)
		assert.False(t, app.Services.Authority.Optimistic())
	})

	t.Run("optimistic over a versioned store", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Server.Concurrency = config.ConcurrencyOptimistic
		app := newTestApp(t, cfg)
		assert.True(t, app.Services.Authority.Optimistic())
	})

	t.Run("optimistic over an unversioned store fails", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Server.Concurrency = config.ConcurrencyOptimistic
		logger, _ := testutil.NewTestLogger(t)

		_, err := NewApplication(context.Background(), cfg, logger, nil,
			WithStore(store.Unconfigured{Reason: "test"}))
		assert.Error(t, err)
	})

	t.Run("signed tokens need a long secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Token.Mode = config.TokenSigned
		cfg.Token.Secret = "short"
		logger, _ := testutil.NewTestLogger(t)

		_, err := NewApplication(context.Background(), cfg, logger, nil)
		assert.ErrorContains(t, err, "token issuer")
	})

	t.Run("nil config", func(t *testing.T) {
		logger, _ := testutil.NewTestLogger(t)
		_, err := NewApplication(context.Background(), nil, logger, nil)
		assert.Error(t, err)
	})
}

func TestApplication_HealthRoutes(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rec := serve(app, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(app, http.MethodGet, "/api/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ready", health.Status)
	assert.Equal(t, "ok", health.Checks["license_store"])

	rec = serve(app, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"api_version":"v1"`)
}

func TestApplication_ReadinessWithoutStoreCredentials(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := testutil.NewTestLogger(t)
	app, err := NewApplication(context.Background(), cfg, logger, nil,
		WithStore(store.Unconfigured{Reason: "document service url or master key not set"}))
	require.NoError(t, err)

	rec := serve(app, http.MethodGet, "/api/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrCodeServerError)

	rec = serve(app, http.MethodPost, "/api/license/validate", `{"licenseKey":"ABC-1","deviceId":"dev1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestApplication_UnknownRoutes(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rec := serve(app, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/nope")

	rec = serve(app, http.MethodGet, "/api/license/validate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestApplication_EngineBehindSession(t *testing.T) {
	app := newTestApp(t, testConfig(t), testutil.UnactivatedLicense("ABC-1", 30))

	t.Run("no cookie", func(t *testing.T) {
		rec := serve(app, http.MethodGet, "/engine/engine.bin", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), domain.ErrCodeNoSession)
	})

	t.Run("forged cookie", func(t *testing.T) {
		rec := serve(app, http.MethodGet, "/engine/engine.bin", "",
			&http.Cookie{Name: config.DefaultCookieName, Value: "garbage"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), domain.ErrCodeNotAuthenticated)
	})

	t.Run("cookie from validate", func(t *testing.T) {
		rec := serve(app, http.MethodPost, "/api/license/validate", `{"licenseKey":"ABC-1","deviceId":"dev1"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var session *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == config.DefaultCookieName {
				session = c
			}
		}
		require.NotNil(t, session)

		rec = serve(app, http.MethodGet, "/engine/engine.bin", "", session)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ENGINE", rec.Body.String())

		rec = serve(app, http.MethodGet, "/engine/", "", session)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestApplication_SignedTokens(t *testing.T) {
	cfg := testConfig(t)
	cfg.Token.Mode = config.TokenSigned
	cfg.Token.Secret = strings.Repeat("s", config.MinSigningSecretLen)
	app := newTestApp(t, cfg, testutil.ActiveLicense("ABC-1", "dev1", 48*time.Hour))

	rec := serve(app, http.MethodPost, "/api/license/check-session", `{"licenseKey":"ABC-1","deviceId":"dev1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = serve(app, http.MethodGet, "/engine/engine.bin", "", cookies[0])
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_RunAndStop(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	app.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- app.Run(ctx)
	}()

	require.Eventually(t, func() bool { return app.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + app.Addr().String() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Application did not shutdown within timeout")
	}

	assert.NoError(t, app.Stop(context.Background()), "second stop is a no-op")
}

func TestApplication_StartFailsOnBusyPort(t *testing.T) {
	first := newTestApp(t, testConfig(t))
	first.Server.Addr = "127.0.0.1:0"
	require.NoError(t, first.Start(context.Background()))

	second := newTestApp(t, testConfig(t))
	second.Server.Addr = first.Addr().String()
	assert.Error(t, second.Start(context.Background()))

	require.NoError(t, first.Stop(context.Background()))
}
