package download

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxFilenameLength is the maximum length of a sanitized name, in characters.
const MaxFilenameLength = 100

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFilename turns a page title into a single path component that is
// valid on Linux, macOS and Windows. Characters that are not allowed are
// removed, not replaced. The result is at most MaxFilenameLength characters
// and may be empty.
func SanitizeFilename(name string) string {
	s := norm.NFC.String(strings.TrimSpace(name))

	s = strings.Map(func(r rune) rune {
		if isInvalidRune(r) {
			return -1
		}
		return r
	}, s)

	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, " .")
	if s == "" {
		return ""
	}

	base := s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		base = s[:i]
	}
	if reservedNames[strings.ToUpper(base)] {
		s += "_"
	}

	if r := []rune(s); len(r) > MaxFilenameLength {
		s = string(r[:MaxFilenameLength])
	}
	return s
}

func isInvalidRune(r rune) bool {
	switch r {
	case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
		return true
	}
	return unicode.IsControl(r) || r == unicode.ReplacementChar
}
