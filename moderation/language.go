package moderation

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Language returns the ISO 639-1 code of the language content is most likely
// written in, or an empty string when content is blank.
func Language(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	return whatlanggo.Detect(content).Lang.Iso6391()
}
