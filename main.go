// Package main provides the speech-bubbles CLI entry point.
// speech-bubbles renders markdown chat transcripts as speech bubbles.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/speech-bubbles/cmd"
	"github.com/otherjamesbrown/speech-bubbles/config"
	"github.com/otherjamesbrown/speech-bubbles/pkg/buildinfo"
	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
)

// serviceName identifies the CLI in logs and version output.
const serviceName = "speech-bubbles"

// Global flags and state.
var (
	cfgFile      string
	settingsFile string
	outputFormat string
	debug        bool

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "speech-bubbles",
	Short: "Render chat transcripts in markdown notes as speech bubbles",
	Long: `speech-bubbles turns transcript notes into chat-style speech bubbles.

A transcript is a markdown note tagged 'transcript' in its frontmatter whose
lines look like:

  --- 2024-01-15 ---
  [[Alice]] [9:05]: Morning all
  [[me]]: Morning!

Each speaker gets a stable color for the note, your own lines go on the
right, and per-note speaker colors, icons and sides can be set in the
frontmatter under 'speech-bubbles'.

COMMON WORKFLOWS:
  Read a transcript:   speech-bubbles render standup.md
  Live edit:           speech-bubbles view standup.md --watch
  Browser preview:     speech-bubbles serve --root ~/vault
  Check parsing:       speech-bubbles parse standup.md --output json
  Personalize:         speech-bubbles settings set owner-name "John Smith"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		// Load configuration, including .env files and the environment.
		var err error
		if cfgFile != "" {
			cfg, err = config.LoadConfigFrom(cfgFile)
		} else {
			cfg, err = config.LoadConfig()
		}
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		// Override with command-line flags.
		if settingsFile != "" {
			cfg.SettingsPath = settingsFile
		}
		if outputFormat != "" {
			cfg.OutputFormat = config.OutputFormat(outputFormat)
		}
		if debug {
			cfg.Debug = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		setupLogging(cfg, os.Stderr)
		return nil
	},
}

// setupLogging installs the global logger described by the configuration.
func setupLogging(c *config.CLIConfig, w io.Writer) {
	level := logging.ParseLevel(c.LogLevel)
	if c.Debug {
		level = logging.LevelDebug
	}
	logging.SetGlobal(logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: serviceName,
		JSONFormat:  c.LogFormat == config.LogFormatJSON,
		Output:      w,
	}))
}

// currentConfig hands the config loaded by the root command to subcommands.
func currentConfig() (*config.CLIConfig, error) {
	if cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig()
}

// Version command flags.
var versionAll bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the speech-bubbles CLI.

Use --all to also query the preview server at serve_addr.
Use --output json for machine-readable output.

Examples:
  speech-bubbles version
  speech-bubbles version --all
  speech-bubbles version --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		info := buildinfo.Get(serviceName)
		asJSON := cfg != nil && cfg.OutputFormat == config.OutputFormatJSON

		if !versionAll {
			if asJSON {
				return writeJSON(out, info)
			}
			fmt.Fprintf(out, "speech-bubbles version %s\n", info.Version)
			fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
			fmt.Fprintf(out, "  platform:   %s (%s)\n", info.Platform, info.GoVersion)
			return nil
		}

		addr := config.DefaultServeAddr
		if cfg != nil && cfg.ServeAddr != "" {
			addr = cfg.ServeAddr
		}
		infos := []buildinfo.Info{info}
		server, err := fetchServerVersion(cmd.Context(), "http://"+addr)
		if err != nil {
			server = buildinfo.Info{ServiceName: serviceName + " serve", Version: "unreachable", Commit: "-", BuildTime: "-"}
		}
		infos = append(infos, server)

		if asJSON {
			return writeJSON(out, infos)
		}
		fmt.Fprintf(out, "%-25s %-12s %-10s %s\n", "SERVICE", "VERSION", "COMMIT", "BUILT")
		for _, i := range infos {
			commit, built := i.Commit, i.BuildTime
			if len(commit) > 10 {
				commit = commit[:10]
			}
			if len(built) > 20 {
				built = built[:20]
			}
			fmt.Fprintf(out, "%-25s %-12s %-10s %s\n", i.ServiceName, i.Version, commit, built)
		}
		return nil
	},
}

// fetchServerVersion reads /version from a running preview server.
func fetchServerVersion(ctx context.Context, baseURL string) (buildinfo.Info, error) {
	var info buildinfo.Info
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/version", nil)
	if err != nil {
		return info, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("version endpoint returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("decoding version: %w", err)
	}
	info.ServiceName += " serve"
	return info, nil
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the speech-bubbles CLI configuration.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current CLI configuration values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if c.OutputFormat == config.OutputFormatJSON {
			return writeJSON(cmd.OutOrStdout(), c)
		}

		configPath := cfgFile
		if configPath == "" {
			configPath, _ = config.ConfigPath()
		}
		settingsPath, _ := c.ResolveSettingsPath()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:    %s\n", configPath)
		fmt.Fprintf(out, "  Settings file:  %s\n", settingsPath)
		fmt.Fprintf(out, "  Output format:  %s\n", c.OutputFormat)
		fmt.Fprintf(out, "  Log level:      %s\n", c.LogLevel)
		fmt.Fprintf(out, "  Log format:     %s\n", c.LogFormat)
		fmt.Fprintf(out, "  Serve address:  %s\n", c.ServeAddr)
		fmt.Fprintf(out, "  Notes root:     %s\n", c.NotesRoot)
		fmt.Fprintf(out, "  Redis address:  %s\n", valueOrDefault(c.RedisAddr, "(not set, in-memory cache)"))
		fmt.Fprintf(out, "  Cache TTL:      %s\n", c.CacheTTL)
		fmt.Fprintf(out, "  Timeout:        %s\n", c.Timeout)
		fmt.Fprintf(out, "  Debug:          %t\n", c.Debug)
		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := targetConfigPath()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		// Check if config already exists.
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'speech-bubbles config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfigTo(defaultCfg, configPath); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Output format:  %s\n", defaultCfg.OutputFormat)
		fmt.Fprintf(out, "  Serve address:  %s\n", defaultCfg.ServeAddr)
		fmt.Fprintf(out, "  Cache TTL:      %s\n", defaultCfg.CacheTTL)
		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  settings_path   - Bubble settings file (.yaml, .toml or .json, supports ~)
  output_format   - Default render format (terminal, html, page, json, yaml)
  log_level       - Log level (debug, info, warn, error)
  log_format      - Log format (console, json)
  serve_addr      - Preview server listen address (host:port)
  notes_root      - Directory served by the preview server (supports ~)
  redis_addr      - Redis address for the render cache ("" for in-memory)
  redis_password  - Redis password
  cache_ttl       - How long rendered notes stay cached (e.g., 10m)
  timeout         - Render timeout in the preview server (e.g., 30s)
  debug           - Enable debug mode (true/false)

Examples:
  speech-bubbles config set output_format page
  speech-bubbles config set notes_root ~/vault
  speech-bubbles config set redis_addr localhost:6379
  speech-bubbles config set cache_ttl 1h`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		configPath, err := targetConfigPath()
		if err != nil {
			return err
		}

		// Load current config, starting from defaults when none exists.
		currentCfg, err := config.LoadConfigFrom(configPath)
		if err != nil {
			currentCfg = config.DefaultConfig()
		}

		if err := setConfigValue(currentCfg, key, value); err != nil {
			return err
		}
		if err := currentCfg.Validate(); err != nil {
			return err
		}

		if err := config.SaveConfigTo(currentCfg, configPath); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// setConfigValue applies one config set key.
func setConfigValue(c *config.CLIConfig, key, value string) error {
	switch key {
	case "settings_path":
		if _, err := config.ExpandPath(value); err != nil {
			return fmt.Errorf("invalid settings path: %w", err)
		}
		c.SettingsPath = value
	case "output_format":
		format := config.OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be terminal, html, page, json, or yaml)", value)
		}
		c.OutputFormat = format
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	case "serve_addr":
		c.ServeAddr = value
	case "notes_root":
		c.NotesRoot = value
	case "redis_addr":
		c.RedisAddr = value
	case "redis_password":
		c.RedisPassword = value
	case "cache_ttl", "timeout":
		duration, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", key, err)
		}
		if key == "cache_ttl" {
			c.CacheTTL = duration
		} else {
			c.Timeout = duration
		}
	case "debug":
		switch value {
		case "true", "1":
			c.Debug = true
		case "false", "0":
			c.Debug = false
		default:
			return fmt.Errorf("invalid debug value: %s (must be true or false)", value)
		}
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func targetConfigPath() (string, error) {
	if cfgFile != "" {
		return config.ExpandPath(cfgFile)
	}
	configPath, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("getting config path: %w", err)
	}
	return configPath, nil
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for speech-bubbles.

To load completions:

Bash:
  $ source <(speech-bubbles completion bash)

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ speech-bubbles completion zsh > "${fpath[1]}/_speech-bubbles"

Fish:
  $ speech-bubbles completion fish | source

PowerShell:
  PS> speech-bubbles completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.speech-bubbles/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "bubble settings file (.yaml, .toml or .json)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "", "output format: terminal, html, page, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add command groups for organized help output.
	rootCmd.AddGroup(
		&cobra.Group{ID: "transcripts", Title: "Transcripts:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	noteDeps := cmd.DefaultNoteDeps()
	noteDeps.LoadConfig = currentConfig

	// Transcripts
	renderCmd := cmd.NewRenderCommand(noteDeps)
	renderCmd.GroupID = "transcripts"
	rootCmd.AddCommand(renderCmd)

	viewCmd := cmd.NewViewCommand(noteDeps)
	viewCmd.GroupID = "transcripts"
	rootCmd.AddCommand(viewCmd)

	parseCmd := cmd.NewParseCommand(noteDeps)
	parseCmd.GroupID = "transcripts"
	rootCmd.AddCommand(parseCmd)

	serveDeps := cmd.DefaultServeDeps()
	serveDeps.LoadConfig = currentConfig
	serveCmd := cmd.NewServeCommand(serveDeps)
	serveCmd.GroupID = "transcripts"
	rootCmd.AddCommand(serveCmd)

	// Setup
	settingsDeps := cmd.DefaultSettingsDeps()
	settingsDeps.LoadConfig = currentConfig
	settingsCmd := cmd.NewSettingsCommand(settingsDeps)
	settingsCmd.GroupID = "setup"
	rootCmd.AddCommand(settingsCmd)

	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().BoolVar(&versionAll, "all", false, "Also query the preview server version")
	rootCmd.AddCommand(versionCmd)

	// Config subcommands.
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func main() {
	// Cancel the command context on interrupt so servers and watchers shut
	// down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// reportError prints a command error with a suggested next step.
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	code := pferrors.CodeOf(err)
	if code == pferrors.ErrCodeRenderFailed {
		return
	}
	fmt.Fprintf(w, "Hint: %s\n", pferrors.GetSuggestedAction(code))
}
