// Package speakers decides how each transcript speaker is styled: bubble
// color, side and icon. A Resolver is built per render pass and holds the
// round-robin palette state for that pass only.
package speakers

import "github.com/otherjamesbrown/speech-bubbles/pkg/transcript"

// Side is the horizontal placement of a bubble.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Resolver assigns colors, sides and icons to speakers.
type Resolver struct {
	config     TranscriptConfig
	colorIndex int
	cache      map[string]SpeakerColor
}

// NewResolver creates a resolver with an empty palette cache.
func NewResolver(cfg TranscriptConfig) *Resolver {
	if cfg.SpeakerConfigs == nil {
		cfg.SpeakerConfigs = map[string]SpeakerConfig{}
	}
	return &Resolver{
		config: cfg,
		cache:  map[string]SpeakerColor{},
	}
}

// Config returns the configuration the resolver was built with.
func (r *Resolver) Config() TranscriptConfig {
	return r.config
}

// Color returns the bubble gradient for a speaker.
// An explicit speaker color wins over the owner color, which wins over the palette.
func (r *Resolver) Color(name string) SpeakerColor {
	normalized := transcript.NormalizeName(name)

	if cfg, ok := r.config.SpeakerConfigs[normalized]; ok && cfg.Color != "" {
		return HexToSpeakerColor(cfg.Color)
	}

	if r.IsOwner(name) {
		if custom := r.config.Settings.OwnerColor(); custom != "" {
			return HexToSpeakerColor(custom)
		}
		return OwnerColor
	}

	if color, ok := r.cache[normalized]; ok {
		return color
	}
	color := Palette[r.colorIndex%len(Palette)]
	r.cache[normalized] = color
	r.colorIndex++
	return color
}

// Side returns which side a speaker's bubbles are placed on.
func (r *Resolver) Side(name string) Side {
	normalized := transcript.NormalizeName(name)

	if sides := r.config.Sides; sides != nil {
		if sides.HasRight(normalized) {
			return SideRight
		}
		if sides.HasLeft(normalized) {
			return SideLeft
		}
	}

	if r.IsOwner(name) {
		return SideRight
	}
	return SideLeft
}

// Icon returns the configured icon for a speaker, or nil.
func (r *Resolver) Icon(name string) *Icon {
	if cfg, ok := r.config.SpeakerConfigs[transcript.NormalizeName(name)]; ok {
		return cfg.Icon
	}
	return nil
}

// IsOwner reports whether the speaker is the configured owner.
func (r *Resolver) IsOwner(name string) bool {
	return IsOwner(name, r.config.Settings.OwnerName, r.config.Settings.OwnerAliases)
}

// Reset clears palette assignments so the next speaker gets the first color.
func (r *Resolver) Reset() {
	r.colorIndex = 0
	clear(r.cache)
}
