package cli

import (
	"os"
	"strconv"
	"strings"
	"unicode"
)

const (
	boxTopLeft     = "╒"
	boxBottomLeft  = "└"
	boxTopRight    = "╕"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	ellipsis       = "…"

	bannerPadding = 2
)

// Alignment of the text inside a banner.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// DefaultTerminalWidth is used when COLUMNS is unset or invalid.
const DefaultTerminalWidth = 80

// TerminalWidth reads the terminal width from COLUMNS.
func TerminalWidth() int {
	width, err := strconv.Atoi(os.Getenv("COLUMNS"))
	if err != nil || width <= bannerPadding {
		return DefaultTerminalWidth
	}

	return width
}

// Banner draws s inside a box width characters wide. Lines that do not fit
// are truncated with an ellipsis. An unknown alignment draws nothing.
//
//	╒══════╕
//	│ done │
//	└──────┘
func Banner(s string, width int, alignment Alignment) string {
	if width <= bannerPadding || s == "" {
		return ""
	}

	inner := width - bannerPadding
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	parts := make([]string, 0, len(lines)+2) //nolint:mnd // top and bottom border

	parts = append(parts, boxTopLeft+strings.Repeat(boxTop, inner)+boxTopRight)

	for _, line := range lines {
		line, length := truncate(line, inner)
		diff := inner - length

		switch alignment {
		case AlignLeft:
			line += strings.Repeat(" ", diff)
		case AlignRight:
			line = strings.Repeat(" ", diff) + line
		case AlignCenter:
			left := diff / 2 //nolint:mnd
			line = strings.Repeat(" ", left) + line + strings.Repeat(" ", diff-left)
		default:
			return ""
		}

		parts = append(parts, boxSide+line+boxSide)
	}

	parts = append(parts, boxBottomLeft+strings.Repeat(boxBottom, inner)+boxBottomRight)

	return strings.Join(parts, "\n") + "\n"
}

// truncate shortens s to at most width graphic characters and returns the
// result with its graphic length.
func truncate(s string, width int) (string, int) {
	length := countGraphic(s)
	if length <= width {
		return s, length
	}

	var sb strings.Builder

	count := 0

	for _, r := range s {
		if count == width-1 {
			break
		}

		if unicode.IsGraphic(r) {
			count++
		}

		sb.WriteRune(r)
	}

	return sb.String() + ellipsis, width
}

func countGraphic(s string) int {
	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}
	}

	return count
}
