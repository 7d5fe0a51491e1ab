package routing

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harshite737-crypto/haste/internal/model"
)

// Intent is the routing decision derived from a chat message.
type Intent struct {
	// Media is set for "generate video|image" commands.
	Media bool
	Kind  model.MediaKind
	// Prompt is the message with any command prefix removed.
	Prompt string
}

var prefixes = []struct {
	text string
	kind model.MediaKind
}{
	{"generate video", model.MediaVideo},
	{"generate image", model.MediaImage},
}

// ParseIntent detects a media command at the start of message. Matching is
// case-insensitive and needs a word boundary after the prefix, so "generate
// videos" is plain text. The prompt is the remainder with separators trimmed.
func ParseIntent(message string) Intent {
	msg := strings.TrimSpace(message)
	for _, p := range prefixes {
		if len(msg) < len(p.text) || !strings.EqualFold(msg[:len(p.text)], p.text) {
			continue
		}
		rest := msg[len(p.text):]
		if r, _ := utf8.DecodeRuneInString(rest); rest != "" && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		prompt := strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || r == ':' || r == '-' || r == ','
		})
		return Intent{Media: true, Kind: p.kind, Prompt: strings.TrimSpace(prompt)}
	}
	return Intent{Prompt: msg}
}
