package speakers

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/otherjamesbrown/speech-bubbles/pkg/transcript"
)

// SectionKey is the document metadata key holding speech bubble configuration.
const SectionKey = "speech-bubbles"

// IconType distinguishes literal icons from image references.
type IconType string

const (
	IconEmoji IconType = "emoji"
	IconImage IconType = "image"
)

// Icon is a speaker avatar. For IconImage, Value is the referenced path.
type Icon struct {
	Type  IconType `json:"type" yaml:"type"`
	Value string   `json:"value" yaml:"value"`
}

// SpeakerConfig is per-speaker styling from document metadata.
type SpeakerConfig struct {
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
	Icon  *Icon  `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Sides holds normalized speaker names pinned to either side.
type Sides struct {
	Left  map[string]struct{} `json:"left" yaml:"left"`
	Right map[string]struct{} `json:"right" yaml:"right"`
}

// HasLeft reports whether the normalized name is pinned left.
func (s *Sides) HasLeft(normalized string) bool {
	_, ok := s.Left[normalized]
	return ok
}

// HasRight reports whether the normalized name is pinned right.
func (s *Sides) HasRight(normalized string) bool {
	_, ok := s.Right[normalized]
	return ok
}

// FrontmatterConfig is the typed form of the speech-bubbles metadata section.
type FrontmatterConfig struct {
	SpeakerConfigs map[string]SpeakerConfig
	// Sides is nil when no side configuration is present.
	Sides *Sides
}

var imageIconRegex = regexp.MustCompile(`^\[\[(.+)\]\]$`)

// ParseFrontmatter extracts speaker and side configuration from document
// metadata. Malformed or missing sections yield an empty configuration.
func ParseFrontmatter(meta any) FrontmatterConfig {
	result := FrontmatterConfig{SpeakerConfigs: map[string]SpeakerConfig{}}

	root, ok := asMap(meta)
	if !ok {
		return result
	}
	section, ok := asMap(root[SectionKey])
	if !ok {
		return result
	}

	if speakers, ok := asMap(section["speakers"]); ok {
		result.SpeakerConfigs = parseSpeakers(speakers)
	}
	if sides, ok := asMap(section["sides"]); ok {
		result.Sides = parseSides(sides)
	}
	return result
}

func parseSpeakers(speakers map[string]any) map[string]SpeakerConfig {
	result := make(map[string]SpeakerConfig, len(speakers))

	// Keys that normalize to the same name resolve in sorted order.
	names := make([]string, 0, len(speakers))
	for name := range speakers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var cfg SpeakerConfig
		switch v := speakers[name].(type) {
		case string:
			cfg.Color = v
		default:
			fields, ok := asMap(v)
			if !ok {
				continue
			}
			if color, ok := fields["color"].(string); ok {
				cfg.Color = color
			}
			if icon, ok := fields["icon"].(string); ok && icon != "" {
				cfg.Icon = ParseIcon(icon)
			}
		}

		if cfg.Color == "" && cfg.Icon == nil {
			continue
		}
		result[transcript.NormalizeName(name)] = cfg
	}
	return result
}

// ParseIcon turns an icon string into an Icon. A [[path]] value is an image.
func ParseIcon(icon string) *Icon {
	if m := imageIconRegex.FindStringSubmatch(icon); m != nil {
		return &Icon{Type: IconImage, Value: m[1]}
	}
	return &Icon{Type: IconEmoji, Value: icon}
}

func parseSides(sides map[string]any) *Sides {
	left := nameSet(sides["left"])
	right := nameSet(sides["right"])
	if len(left) == 0 && len(right) == 0 {
		return nil
	}
	return &Sides{Left: left, Right: right}
}

func nameSet(v any) map[string]struct{} {
	set := map[string]struct{}{}
	list, ok := v.([]any)
	if !ok {
		if names, ok := v.([]string); ok {
			for _, name := range names {
				set[transcript.NormalizeName(name)] = struct{}{}
			}
		}
		return set
	}
	for _, item := range list {
		if name, ok := item.(string); ok {
			set[transcript.NormalizeName(name)] = struct{}{}
		}
	}
	return set
}

// asMap accepts both decoded map shapes produced by YAML and JSON decoders.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
