package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/speech-bubbles/config"
	"github.com/otherjamesbrown/speech-bubbles/pkg/cache"
	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/preview"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
)

func createServeTestDeps(cfg *config.CLIConfig) *ServeCommandDeps {
	return &ServeCommandDeps{
		Config: cfg,
		Logger: logging.NewNopLogger(),
		LoadConfig: func() (*config.CLIConfig, error) {
			return cfg, nil
		},
		LoadSettings: settings.Load,
		ConnectRedis: func(ctx context.Context, opts cache.RedisOptions) (*cache.Redis, error) {
			return nil, errors.New("dial tcp " + opts.Addr + ": connection refused")
		},
	}
}

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand(nil)
	assert.Equal(t, "serve", cmd.Use)
	for _, flagName := range []string{"addr", "root", "redis", "cache-ttl"} {
		assert.NotNil(t, cmd.Flags().Lookup(flagName), "serve command missing flag: %s", flagName)
	}
}

func TestRunServe_ServesUntilCancelled(t *testing.T) {
	cfg := mockConfig(t)
	root := t.TempDir()
	writeNote(t, root, "standup.md", standupNote)

	deps := createServeTestDeps(cfg)
	ready := make(chan *preview.Server, 1)
	deps.Ready = func(srv *preview.Server) { ready <- srv }

	cmd := NewServeCommand(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--addr", "127.0.0.1:0", "--root", root})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var srv *preview.Server
	select {
	case srv = <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes/standup", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "speech-bubbles-bubble")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Contains(t, rec.Body.String(), `"cache":"memory"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, root, cfg.NotesRoot)
	assert.Equal(t, "Serving "+root+" at http://127.0.0.1:0/notes\n", out.String())
}

func TestRunServe_InvalidSettings(t *testing.T) {
	NewServeCommand(nil)
	cfg := mockConfig(t)
	require.NoError(t, os.WriteFile(cfg.SettingsPath, []byte("bubble_radius: [1"), 0600))

	err := runServe(context.Background(), createServeTestDeps(cfg), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading settings")
}

func TestRunServe_RedisUnavailable(t *testing.T) {
	NewServeCommand(nil)
	cfg := mockConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"

	err := runServe(context.Background(), createServeTestDeps(cfg), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestOpenCache_Memory(t *testing.T) {
	cfg := mockConfig(t)
	c, closeFn, err := openCache(context.Background(), createServeTestDeps(cfg), cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, "memory", c.Name())
}
