package flows

import (
	"strings"
	"unicode"
)

const (
	maxDisplayNameRunes = 64
	fallbackDisplayName = "Agent"
)

// DisplayName derives the passkey display name from an invite's recipient
// label: control characters dropped, whitespace collapsed, at most 64 runes.
// An empty result falls back to "Agent".
func DisplayName(label string) string {
	var b strings.Builder
	b.Grow(len(label))

	runes := 0
	space := false
	for _, r := range label {
		if runes >= maxDisplayNameRunes {
			break
		}
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if space {
			b.WriteByte(' ')
			runes++
			space = false
			if runes >= maxDisplayNameRunes {
				break
			}
		}
		b.WriteRune(r)
		runes++
	}

	name := strings.TrimSpace(b.String())
	if name == "" {
		return fallbackDisplayName
	}
	return name
}
