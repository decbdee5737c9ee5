package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/speech-bubbles/config"
	"github.com/otherjamesbrown/speech-bubbles/pkg/cache"
	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/observability"
	"github.com/otherjamesbrown/speech-bubbles/pkg/preview"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
)

// ServeCommandDeps holds the dependencies for the serve command.
type ServeCommandDeps struct {
	Config       *config.CLIConfig
	Logger       logging.Logger
	LoadConfig   func() (*config.CLIConfig, error)
	LoadSettings func(path string) (settings.Settings, error)
	ConnectRedis func(ctx context.Context, opts cache.RedisOptions) (*cache.Redis, error)

	// Ready, when set, is called with the server before it starts serving.
	Ready func(*preview.Server)
}

// DefaultServeDeps returns the default dependencies for production use.
func DefaultServeDeps() *ServeCommandDeps {
	return &ServeCommandDeps{
		LoadConfig:   config.LoadConfig,
		LoadSettings: settings.Load,
		ConnectRedis: cache.ConnectRedis,
	}
}

// Serve command flags.
var (
	serveAddr     string
	serveRoot     string
	serveRedis    string
	serveCacheTTL time.Duration
)

// NewServeCommand creates the serve command.
func NewServeCommand(deps *ServeCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultServeDeps()
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live preview of transcript notes",
		Long: `Start a local preview server for a directory of notes.

Routes:
  GET /notes             List notes under the root
  GET /notes/<path>      Render a note (?format=page|html|terminal|json|yaml, ?force=true)
  GET /ws                Live reload events (websocket)
  GET /metrics           Prometheus metrics
  GET /healthz           Health check
  GET /version           Build information

Pages reload in the browser when their note changes. Rendered output is
cached in memory, or in Redis when redis_addr is configured.

Examples:
  speech-bubbles serve --root ~/vault
  speech-bubbles serve --addr :8080 --redis localhost:6379`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), deps, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, localhost:8765)")
	cmd.Flags().StringVar(&serveRoot, "root", "", "Notes directory (default from config)")
	cmd.Flags().StringVar(&serveRedis, "redis", "", "Redis address for the render cache")
	cmd.Flags().DurationVar(&serveCacheTTL, "cache-ttl", 0, "How long rendered notes stay cached")

	return cmd
}

func runServe(ctx context.Context, deps *ServeCommandDeps, out io.Writer) error {
	cfg := deps.Config
	if cfg == nil {
		loaded, err := deps.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		cfg = loaded
	}

	// Override with command-line flags.
	if serveAddr != "" {
		cfg.ServeAddr = serveAddr
	}
	if serveRoot != "" {
		cfg.NotesRoot = serveRoot
	}
	if serveRedis != "" {
		cfg.RedisAddr = serveRedis
	}
	if serveCacheTTL > 0 {
		cfg.CacheTTL = serveCacheTTL
	}

	root, err := config.ExpandPath(cfg.NotesRoot)
	if err != nil {
		return fmt.Errorf("resolving notes root: %w", err)
	}
	settingsPath, err := cfg.ResolveSettingsPath()
	if err != nil {
		return fmt.Errorf("resolving settings path: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.MustGlobal()
	}
	loadSettings := deps.LoadSettings
	if loadSettings == nil {
		loadSettings = settings.Load
	}

	// Fail fast on a broken settings file rather than on the first request.
	if _, err := loadSettings(settingsPath); err != nil {
		return fmt.Errorf("loading settings from %s: %w", settingsPath, err)
	}

	renderCache, closeCache, err := openCache(ctx, deps, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := preview.NewServer(preview.Options{
		Root: root,
		Addr: cfg.ServeAddr,
		Settings: func() (settings.Settings, error) {
			s, err := loadSettings(settingsPath)
			if err == nil && cfg.Debug {
				s.DebugLogging = true
			}
			return s, err
		},
		Cache:    renderCache,
		Metrics:  observability.NewRenderMetrics(reg),
		Gatherer: reg,
		Tracer:   observability.NewTracer(),
		Logger:   logger,
		Timeout:  cfg.Timeout,
	})
	if deps.Ready != nil {
		deps.Ready(srv)
	}

	fmt.Fprintf(out, "Serving %s at http://%s/notes\n", root, cfg.ServeAddr)
	return srv.Run(ctx)
}

// openCache connects to Redis when configured, otherwise returns an
// in-process cache.
func openCache(ctx context.Context, deps *ServeCommandDeps, cfg *config.CLIConfig, logger logging.Logger) (cache.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.CacheTTL), func() {}, nil
	}

	connect := deps.ConnectRedis
	if connect == nil {
		connect = cache.ConnectRedis
	}
	rc, err := connect(ctx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using Redis render cache", logging.F("addr", cfg.RedisAddr))
	return rc, func() {
		if err := rc.Close(); err != nil {
			logger.Warn("Closing Redis cache", logging.Err(err))
		}
	}, nil
}
