package telnet

import "regexp"

// ANSI styles used when rendering chat lines.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

var ansiPattern = regexp.MustCompile("\033\\[[0-9;]*m")

// Colorize wraps text in color and a reset.
func Colorize(color, text string) string {
	return color + text + Reset
}

// StripANSI removes SGR escape sequences from s.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
