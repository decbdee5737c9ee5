package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/speech-bubbles/config"
	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
)

const standupNote = `---
tags: [transcript]
---
Standup notes.

--- 2024-01-15 ---
[[Frodo]] [9:05]: Ring status?
[[me]]: On it
`

const scratchNote = `# Scratch

[[Frodo]]: not a transcript
`

// mockConfig returns a config whose settings file lives in a temp dir.
func mockConfig(t *testing.T) *config.CLIConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SettingsPath = filepath.Join(t.TempDir(), "settings.yaml")
	return cfg
}

// createNoteTestDeps creates test dependencies for note commands.
func createNoteTestDeps(cfg *config.CLIConfig) *NoteCommandDeps {
	return &NoteCommandDeps{
		Config: cfg,
		Logger: logging.NewNopLogger(),
		LoadConfig: func() (*config.CLIConfig, error) {
			return cfg, nil
		},
		LoadSettings: settings.Load,
	}
}

func writeNote(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// findSubcommand finds a subcommand by name.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, subCmd := range cmd.Commands() {
		if subCmd.Name() == name {
			return subCmd
		}
	}
	return nil
}

func TestNoteDeps_Open(t *testing.T) {
	cfg := mockConfig(t)
	s := settings.Default()
	s.OwnerName = "Frodo"
	require.NoError(t, settings.Save(cfg.SettingsPath, s))

	sess, err := createNoteTestDeps(cfg).open()
	require.NoError(t, err)
	assert.Equal(t, "Frodo", sess.settings.OwnerName)
	assert.Equal(t, cfg.SettingsPath, sess.settingsPath)
	assert.False(t, sess.settings.DebugLogging)
}

func TestNoteDeps_OpenDebugEnablesDiagnostics(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Debug = true

	sess, err := createNoteTestDeps(cfg).open()
	require.NoError(t, err)
	assert.True(t, sess.settings.DebugLogging)
}

func TestNoteDeps_OpenInvalidSettings(t *testing.T) {
	cfg := mockConfig(t)
	require.NoError(t, os.WriteFile(cfg.SettingsPath, []byte("owner_name: [unclosed"), 0600))

	_, err := createNoteTestDeps(cfg).open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading settings")
}

func TestNoteDeps_OpenUsesLoadConfig(t *testing.T) {
	cfg := mockConfig(t)
	deps := createNoteTestDeps(cfg)
	deps.Config = nil
	deps.LoadSettings = nil

	sess, err := deps.open()
	require.NoError(t, err)
	assert.Same(t, cfg, sess.cfg)
	assert.NotNil(t, deps.LoadSettings)
}
