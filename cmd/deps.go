// Package cmd provides CLI commands for the speech-bubbles tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/speech-bubbles/config"
	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/note"
	"github.com/otherjamesbrown/speech-bubbles/pkg/observability"
	"github.com/otherjamesbrown/speech-bubbles/pkg/renderpass"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
)

// NoteCommandDeps holds the dependencies shared by commands that read and
// render notes (render, parse, view).
type NoteCommandDeps struct {
	Config       *config.CLIConfig
	Logger       logging.Logger
	Metrics      *observability.RenderMetrics
	Tracer       *observability.Tracer
	LoadConfig   func() (*config.CLIConfig, error)
	LoadSettings func(path string) (settings.Settings, error)
}

// DefaultNoteDeps returns the default dependencies for production use.
func DefaultNoteDeps() *NoteCommandDeps {
	return &NoteCommandDeps{
		LoadConfig:   config.LoadConfig,
		LoadSettings: settings.Load,
	}
}

// session is the loaded state a note command works with.
type session struct {
	cfg          *config.CLIConfig
	settings     settings.Settings
	settingsPath string
	logger       logging.Logger
	tracer       *observability.Tracer
}

func (d *NoteCommandDeps) open() (*session, error) {
	cfg := d.Config
	if cfg == nil {
		loaded, err := d.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
		cfg = loaded
	}

	path, err := cfg.ResolveSettingsPath()
	if err != nil {
		return nil, fmt.Errorf("resolving settings path: %w", err)
	}
	if d.LoadSettings == nil {
		d.LoadSettings = settings.Load
	}
	s, err := d.LoadSettings(path)
	if err != nil {
		return nil, fmt.Errorf("loading settings from %s: %w", path, err)
	}
	if cfg.Debug {
		s.DebugLogging = true
	}

	logger := d.Logger
	if logger == nil {
		logger = logging.MustGlobal()
	}
	tracer := d.Tracer
	if tracer == nil {
		tracer = observability.NewTracer()
	}

	return &session{
		cfg:          cfg,
		settings:     s,
		settingsPath: path,
		logger:       logger,
		tracer:       tracer,
	}, nil
}

// run loads the note at path and runs one render pass over it.
func (s *session) run(ctx context.Context, path string, recorder *observability.MetricsRecorder, force bool) (*renderpass.Result, error) {
	doc, err := note.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	opts := []renderpass.Option{
		renderpass.WithLogger(s.logger),
		renderpass.WithTracer(s.tracer),
		renderpass.WithMetrics(recorder),
	}
	if force {
		opts = append(opts, renderpass.WithForce())
	}
	return renderpass.Run(ctx, doc, s.settings, opts...)
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
