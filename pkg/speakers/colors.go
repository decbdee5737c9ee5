package speakers

import (
	"fmt"
	"regexp"
	"strconv"
)

// SpeakerColor is a bubble background gradient. End is the base color and
// Start a lighter derivative of it.
type SpeakerColor struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// FallbackColor replaces any hex value that cannot be parsed.
const FallbackColor = "#666666"

// Palette is the round-robin color set for speakers with no explicit color.
var Palette = []SpeakerColor{
	{Start: "#EFEFEF", End: "#E8E8E8"}, // light gray
	{Start: "#E7FAD7", End: "#DCF8C6"}, // light green
	{Start: "#FFFBD6", End: "#FFF9C4"}, // light yellow
	{Start: "#FFDBD0", End: "#FFCCBC"}, // light orange
	{Start: "#EAD2EE", End: "#E1BEE7"}, // light purple
	{Start: "#CAEDFD", End: "#B3E5FC"}, // light blue
	{Start: "#F5F7D5", End: "#F0F4C3"}, // light lime
	{Start: "#FFDCE0", End: "#FFCDD2"}, // light red
	{Start: "#E3DBD9", End: "#D7CCC8"}, // light brown
	{Start: "#DDE4E7", End: "#CFD8DC"}, // blue gray
}

// OwnerColor is the owner's gradient when no custom owner color is set.
var OwnerColor = SpeakerColor{Start: "#4DA2FF", End: "#007AFF"}

var hexColorRegex = regexp.MustCompile(`(?i)^#?([0-9a-f]{2})([0-9a-f]{2})([0-9a-f]{2})$`)

// parseHex splits a 6-digit hex color into channels.
func parseHex(hex string) (r, g, b int, ok bool) {
	m := hexColorRegex.FindStringSubmatch(hex)
	if m == nil {
		return 0, 0, 0, false
	}
	channels := [3]int{}
	for i := range channels {
		v, err := strconv.ParseUint(m[i+1], 16, 8)
		if err != nil {
			return 0, 0, 0, false
		}
		channels[i] = int(v)
	}
	return channels[0], channels[1], channels[2], true
}

// lighten moves a channel 30% of the way toward 255, rounding half up.
func lighten(v int) int {
	return v + ((255-v)*3+5)/10
}

// HexToSpeakerColor builds a gradient from a configured hex color.
// End keeps the value as given.
func HexToSpeakerColor(hex string) SpeakerColor {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return SpeakerColor{Start: FallbackColor, End: FallbackColor}
	}
	return SpeakerColor{
		Start: fmt.Sprintf("#%02X%02X%02X", lighten(r), lighten(g), lighten(b)),
		End:   hex,
	}
}

// DarkenColor returns a darker rgb() variant of hex, used for name labels.
func DarkenColor(hex string) string {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return FallbackColor
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", max(0, r-60), max(0, g-60), max(0, b-60))
}

// DarkenHex is DarkenColor in "#RRGGBB" form, for targets without CSS.
func DarkenHex(hex string) string {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return FallbackColor
	}
	return fmt.Sprintf("#%02X%02X%02X", max(0, r-60), max(0, g-60), max(0, b-60))
}
