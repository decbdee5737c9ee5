// Package settings provides the persisted speech bubble settings record.
// Settings are stored as a flat record in YAML, TOML or JSON, chosen by file extension.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
)

// Default values.
const (
	DefaultOwnerName        = "me"
	DefaultBubbleMaxWidth   = 75
	DefaultBubbleRadius     = 18
	DefaultShowSpeakerNames = true

	MinBubbleMaxWidth = 10
	MaxBubbleMaxWidth = 100
	MinBubbleRadius   = 0
	MaxBubbleRadius   = 30
)

// Settings holds user-level speech bubble preferences.
type Settings struct {
	// OwnerName identifies "you" in transcripts; owner bubbles render on the right.
	OwnerName string `yaml:"owner_name" toml:"owner_name" json:"owner_name"`

	// OwnerAliases are other names treated as the owner.
	OwnerAliases []string `yaml:"owner_aliases" toml:"owner_aliases" json:"owner_aliases"`

	// DebugLogging enables render pass diagnostics.
	DebugLogging bool `yaml:"debug_logging" toml:"debug_logging" json:"debug_logging"`

	// BubbleMaxWidth is the maximum bubble width as a percentage (10-100).
	BubbleMaxWidth int `yaml:"bubble_max_width" toml:"bubble_max_width" json:"bubble_max_width"`

	// BubbleRadius is the bubble corner radius in pixels (0-30).
	BubbleRadius int `yaml:"bubble_radius" toml:"bubble_radius" json:"bubble_radius"`

	ShowSpeakerNames bool `yaml:"show_speaker_names" toml:"show_speaker_names" json:"show_speaker_names"`
	CompactMode      bool `yaml:"compact_mode" toml:"compact_mode" json:"compact_mode"`

	// OwnerBubbleColor overrides the owner gradient with a hex color. Nil means default.
	OwnerBubbleColor *string `yaml:"owner_bubble_color" toml:"owner_bubble_color,omitempty" json:"owner_bubble_color"`
}

// Default returns Settings with every field at its default.
func Default() Settings {
	return Settings{
		OwnerName:        DefaultOwnerName,
		OwnerAliases:     []string{},
		BubbleMaxWidth:   DefaultBubbleMaxWidth,
		BubbleRadius:     DefaultBubbleRadius,
		ShowSpeakerNames: DefaultShowSpeakerNames,
	}
}

// Normalize clamps numeric fields to their ranges, trims aliases and
// turns a blank owner color into nil.
func (s *Settings) Normalize() {
	s.BubbleMaxWidth = clamp(s.BubbleMaxWidth, MinBubbleMaxWidth, MaxBubbleMaxWidth)
	s.BubbleRadius = clamp(s.BubbleRadius, MinBubbleRadius, MaxBubbleRadius)

	aliases := make([]string, 0, len(s.OwnerAliases))
	for _, a := range s.OwnerAliases {
		if a = strings.TrimSpace(a); a != "" {
			aliases = append(aliases, a)
		}
	}
	s.OwnerAliases = aliases

	if s.OwnerBubbleColor != nil {
		c := strings.TrimSpace(*s.OwnerBubbleColor)
		if c == "" {
			s.OwnerBubbleColor = nil
		} else {
			s.OwnerBubbleColor = &c
		}
	}
}

// OwnerColor returns the custom owner color, or "" when unset.
func (s Settings) OwnerColor() string {
	if s.OwnerBubbleColor == nil {
		return ""
	}
	return *s.OwnerBubbleColor
}

// ParseAliases splits a comma-separated alias list, dropping blanks.
func ParseAliases(value string) []string {
	aliases := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			aliases = append(aliases, part)
		}
	}
	return aliases
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Format is a settings file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatForPath picks the encoding from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", "":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: settings file %q", pferrors.ErrUnsupportedFormat, path)
	}
}

// Load reads settings from path. A missing file yields Default().
// Fields absent from the file keep their defaults.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("reading settings file: %w", err)
	}

	if err := Decode(path, data, &s); err != nil {
		return Default(), err
	}

	s.Normalize()
	return s, nil
}

// Decode unmarshals data into s using the format implied by path.
// Fields not present in data are left untouched.
func Decode(path string, data []byte, s *Settings) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), s); err != nil {
			return fmt.Errorf("parsing settings file: %w", err)
		}
	case FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, s); err != nil {
			return fmt.Errorf("parsing settings file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, s); err != nil {
			return fmt.Errorf("parsing settings file: %w", err)
		}
	}
	return nil
}

// Save writes settings to path, creating parent directories.
func Save(path string, s Settings) error {
	s.Normalize()

	data, err := Encode(path, s)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

// Encode marshals settings using the format implied by path.
func Encode(path string, s Settings) ([]byte, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return nil, fmt.Errorf("encoding settings: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding settings: %w", err)
		}
		return append(data, '\n'), nil
	default:
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encoding settings: %w", err)
		}
		return data, nil
	}
}
