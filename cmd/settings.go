package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/speech-bubbles/config"
	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
)

// SettingsCommandDeps holds the dependencies for settings commands.
type SettingsCommandDeps struct {
	Config       *config.CLIConfig
	LoadConfig   func() (*config.CLIConfig, error)
	LoadSettings func(path string) (settings.Settings, error)
	SaveSettings func(path string, s settings.Settings) error
}

// DefaultSettingsDeps returns the default dependencies for production use.
func DefaultSettingsDeps() *SettingsCommandDeps {
	return &SettingsCommandDeps{
		LoadConfig:   config.LoadConfig,
		LoadSettings: settings.Load,
		SaveSettings: settings.Save,
	}
}

// settingSetters maps setting keys to the function applying a value.
var settingSetters = map[string]func(s *settings.Settings, value string) error{
	"owner-name": func(s *settings.Settings, value string) error {
		s.OwnerName = strings.TrimSpace(value)
		return nil
	},
	"owner-aliases": func(s *settings.Settings, value string) error {
		s.OwnerAliases = settings.ParseAliases(value)
		return nil
	},
	"owner-color": func(s *settings.Settings, value string) error {
		value = strings.TrimSpace(value)
		if value == "" {
			s.OwnerBubbleColor = nil
			return nil
		}
		if !isHexColor(value) {
			return fmt.Errorf("%w: owner-color must be a hex color like #34C759", pferrors.ErrValidation)
		}
		s.OwnerBubbleColor = &value
		return nil
	},
	"bubble-max-width": func(s *settings.Settings, value string) error {
		n, err := parseRange(value, settings.MinBubbleMaxWidth, settings.MaxBubbleMaxWidth)
		if err != nil {
			return fmt.Errorf("bubble-max-width: %w", err)
		}
		s.BubbleMaxWidth = n
		return nil
	},
	"bubble-radius": func(s *settings.Settings, value string) error {
		n, err := parseRange(value, settings.MinBubbleRadius, settings.MaxBubbleRadius)
		if err != nil {
			return fmt.Errorf("bubble-radius: %w", err)
		}
		s.BubbleRadius = n
		return nil
	},
	"show-speaker-names": boolSetter(func(s *settings.Settings, v bool) { s.ShowSpeakerNames = v }),
	"compact-mode":       boolSetter(func(s *settings.Settings, v bool) { s.CompactMode = v }),
	"debug-logging":      boolSetter(func(s *settings.Settings, v bool) { s.DebugLogging = v }),
}

// Settings init flags.
var settingsOverwrite bool

// NewSettingsCommand creates the settings command with its subcommands.
func NewSettingsCommand(deps *SettingsCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultSettingsDeps()
	}

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage speech bubble settings",
		Long: `View and change the settings that style rendered bubbles.

Settings live in a YAML, TOML or JSON file chosen by extension. The path
comes from --settings, settings_path in the config file, or defaults to
settings.yaml in the config directory.`,
	}

	cmd.AddCommand(newSettingsShowCommand(deps))
	cmd.AddCommand(newSettingsInitCommand(deps))
	cmd.AddCommand(newSettingsSetCommand(deps))
	cmd.AddCommand(newSettingsPathCommand(deps))

	return cmd
}

func newSettingsShowCommand(deps *SettingsCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := deps.resolve()
			if err != nil {
				return err
			}
			s, err := deps.LoadSettings(path)
			if err != nil {
				return fmt.Errorf("loading settings from %s: %w", path, err)
			}
			return outputSettings(cmd.OutOrStdout(), cfg.OutputFormat, path, s)
		},
	}
}

func newSettingsInitCommand(deps *SettingsCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a settings file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := deps.resolve()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if _, err := os.Stat(path); err == nil && !settingsOverwrite {
				fmt.Fprintf(out, "Settings file already exists: %s\n", path)
				fmt.Fprintln(out, "Use --overwrite to replace it with defaults.")
				return nil
			}

			if err := deps.SaveSettings(path, settings.Default()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created settings file: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&settingsOverwrite, "overwrite", false, "Replace an existing settings file")
	return cmd
}

func newSettingsSetCommand(deps *SettingsCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a settings value",
		Long: `Set a settings value and save the file.

Available keys:
  owner-name          Your name in transcripts; your bubbles go on the right
  owner-aliases       Other names for you, comma separated
  owner-color         Hex color for your bubbles ("" restores the default blue)
  bubble-max-width    Maximum bubble width in percent (10-100)
  bubble-radius       Bubble corner radius in pixels (0-30)
  show-speaker-names  Show names above bubbles (true/false)
  compact-mode        Tighter spacing (true/false)
  debug-logging       Log render pass diagnostics (true/false)

Examples:
  speech-bubbles settings set owner-name "John Smith"
  speech-bubbles settings set owner-aliases "John, JS, Johnny"
  speech-bubbles settings set owner-color "#34C759"
  speech-bubbles settings set owner-color ""`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.ReplaceAll(strings.ToLower(args[0]), "_", "-")
			set, ok := settingSetters[key]
			if !ok {
				return fmt.Errorf("%w: unknown settings key %q (one of %s)",
					pferrors.ErrValidation, args[0], strings.Join(settingKeys(), ", "))
			}

			_, path, err := deps.resolve()
			if err != nil {
				return err
			}
			s, err := deps.LoadSettings(path)
			if err != nil {
				return fmt.Errorf("loading settings from %s: %w", path, err)
			}
			if err := set(&s, args[1]); err != nil {
				return err
			}
			if err := deps.SaveSettings(path, s); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, args[1])
			return nil
		},
	}
}

func newSettingsPathCommand(deps *SettingsCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := deps.resolve()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func (d *SettingsCommandDeps) resolve() (*config.CLIConfig, string, error) {
	cfg := d.Config
	if cfg == nil {
		loaded, err := d.LoadConfig()
		if err != nil {
			return nil, "", fmt.Errorf("loading configuration: %w", err)
		}
		cfg = loaded
	}
	path, err := cfg.ResolveSettingsPath()
	if err != nil {
		return nil, "", fmt.Errorf("resolving settings path: %w", err)
	}
	return cfg, path, nil
}

func outputSettings(w io.Writer, format config.OutputFormat, path string, s settings.Settings) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(w, s)
	case config.OutputFormatYAML:
		return outputYAML(w, s)
	}

	fmt.Fprintln(w, "Current settings:")
	fmt.Fprintf(w, "  Settings file:      %s\n", path)
	fmt.Fprintf(w, "  Owner name:         %s\n", valueOrDefault(s.OwnerName, "(not set)"))
	fmt.Fprintf(w, "  Owner aliases:      %s\n", valueOrDefault(strings.Join(s.OwnerAliases, ", "), "(none)"))
	fmt.Fprintf(w, "  Owner color:        %s\n", valueOrDefault(s.OwnerColor(), "(default)"))
	fmt.Fprintf(w, "  Bubble max width:   %d%%\n", s.BubbleMaxWidth)
	fmt.Fprintf(w, "  Bubble radius:      %dpx\n", s.BubbleRadius)
	fmt.Fprintf(w, "  Show speaker names: %t\n", s.ShowSpeakerNames)
	fmt.Fprintf(w, "  Compact mode:       %t\n", s.CompactMode)
	fmt.Fprintf(w, "  Debug logging:      %t\n", s.DebugLogging)
	return nil
}

func settingKeys() []string {
	keys := make([]string, 0, len(settingSetters))
	for k := range settingSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boolSetter(apply func(s *settings.Settings, v bool)) func(*settings.Settings, string) error {
	return func(s *settings.Settings, value string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %q is not true or false", pferrors.ErrValidation, value)
		}
		apply(s, v)
		return nil
	}
}

func parseRange(value string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", pferrors.ErrValidation, value)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %d is outside %d-%d", pferrors.ErrValidation, n, lo, hi)
	}
	return n, nil
}

func isHexColor(value string) bool {
	if !strings.HasPrefix(value, "#") || len(value) != 7 {
		return false
	}
	_, err := strconv.ParseUint(value[1:], 16, 32)
	return err == nil
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
