package speakers

import "github.com/otherjamesbrown/speech-bubbles/pkg/settings"

// TranscriptConfig is the resolved configuration for one render pass.
type TranscriptConfig struct {
	Settings       settings.Settings
	SpeakerConfigs map[string]SpeakerConfig
	Sides          *Sides
}

// ResolveConfig combines global settings with a document's metadata.
func ResolveConfig(s settings.Settings, meta any) TranscriptConfig {
	fm := ParseFrontmatter(meta)
	return TranscriptConfig{
		Settings:       s,
		SpeakerConfigs: fm.SpeakerConfigs,
		Sides:          fm.Sides,
	}
}
