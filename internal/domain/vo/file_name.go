package vo

import (
	"strings"
)

const maxTitleStem = 50

// NewFileName builds the destination file name for a download.
// Characters outside [A-Za-z0-9] become underscores and the stem is
// truncated before the quality and format suffix is appended.
func NewFileName(title, quality, format string) string {
	var b strings.Builder
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	stem := b.String()
	if len(stem) > maxTitleStem {
		stem = stem[:maxTitleStem]
	}
	if stem == "" {
		stem = "video"
	}
	return stem + "_" + sanitizeSuffix(quality) + "." + sanitizeSuffix(format)
}

// sanitizeSuffix keeps quality and format labels from escaping the directory
func sanitizeSuffix(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, s)
}
