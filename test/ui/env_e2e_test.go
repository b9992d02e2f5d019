//go:build e2e

package ui

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/vizcheck/internal/browser"
	"github.com/ternarybob/vizcheck/internal/common"
	"github.com/ternarybob/vizcheck/internal/interfaces"
	"github.com/ternarybob/vizcheck/internal/pageobject"
	"github.com/ternarybob/vizcheck/internal/server"
)

// environment is a real browser pointed at the fixture app, or at
// VIZCHECK_TARGET_BASE_URL when set
type environment struct {
	config  *common.Config
	session interfaces.Session
	page    *pageobject.Visualize
}

func setupEnvironment(t *testing.T, driver string, renderDelay time.Duration) *environment {
	t.Helper()

	config, err := common.LoadFromFiles()
	require.NoError(t, err)
	config.Browser.Driver = driver
	config.Fixture.RenderDelay = renderDelay.String()
	config.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")
	config.Results.Dir = t.TempDir()
	if dir := os.Getenv("TEST_RESULTS_DIR"); dir != "" {
		config.Results.Dir = dir
	}

	logger := common.InitLogger(config)

	baseURL := config.Target.BaseURL
	if baseURL == "" {
		srv, err := server.New(config, logger)
		require.NoError(t, err)
		baseURL, err = srv.Start()
		require.NoError(t, err)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		})
	}

	session, err := browser.New(config, logger)
	if err != nil {
		t.Skipf("%s browser unavailable: %v", driver, err)
	}
	t.Cleanup(func() { _ = session.Close() })

	policy, err := config.RetryPolicy()
	require.NoError(t, err)

	return &environment{
		config:  config,
		session: session,
		page:    pageobject.New(session, baseURL, logger, policy),
	}
}
