// Package sanitize turns machine and state names into portable file names.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// transliterations spell out characters that lose meaning when their accents are stripped.
var transliterations = map[rune]string{ //nolint:gochecknoglobals
	'ä': "ae", 'Ä': "Ae", 'ö': "oe", 'Ö': "Oe",
	'ü': "ue", 'Ü': "Ue", 'ß': "ss",
	'&': "_and_", '+': "_plus_", '@': "_at_",
}

// FileName returns a name made of printable ASCII that is safe on every
// common file system and needs no shell quoting. Accents are stripped, unsafe
// characters become '_' and runs of '_' collapse into one.
//
//	FileName("Crème brûlée / v2") == "Creme_brulee_v2"
func FileName(name string) string {
	if name == "" {
		return ""
	}

	var sb strings.Builder

	for _, r := range name {
		if repl, ok := transliterations[r]; ok {
			sb.WriteString(repl)

			continue
		}

		sb.WriteRune(r)
	}

	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), sb.String())
	if err != nil {
		stripped = sb.String()
	}

	sb.Reset()

	lastUnderscore := false

	for _, r := range stripped {
		if !safe(r) {
			r = '_'
		}

		if r == '_' && lastUnderscore {
			continue
		}

		lastUnderscore = r == '_'

		sb.WriteRune(r)
	}

	return strings.Trim(sb.String(), "-_")
}

func safe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '.', r == '_', r == ',', r == '=':
		return true
	default:
		return false
	}
}
