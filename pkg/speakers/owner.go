package speakers

import "github.com/otherjamesbrown/speech-bubbles/pkg/transcript"

// IsOwner reports whether name matches the owner name or one of the aliases.
// Comparison is case-insensitive and ignores surrounding whitespace, so an
// empty name matches an empty owner.
func IsOwner(name, owner string, aliases []string) bool {
	normalized := transcript.NormalizeName(name)
	if normalized == transcript.NormalizeName(owner) {
		return true
	}
	for _, alias := range aliases {
		if normalized == transcript.NormalizeName(alias) {
			return true
		}
	}
	return false
}
