package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/config"
)

func TestNewServerOpensInitialContext(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.RateLimit.Enabled = false

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
	})

	snap := srv.tabs.Snapshot()
	require.Len(t, snap.Tabs, 1)
	assert.Equal(t, config.Default().Server.InitFixture, snap.Tabs[0].FixtureKey)
	assert.Equal(t, snap.Tabs[0].ID, snap.ActiveID)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestNewServerRejectsMissingCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Fixtures.Catalog = t.TempDir() + "/missing.toml"

	_, err := NewServer(cfg)
	assert.Error(t, err)
}
