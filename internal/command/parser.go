package command

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

var mentionPattern = regexp.MustCompile(`@\S+\s*`)

// ParseResult holds the outcome of parsing one text message.
type ParseResult struct {
	// Text is the message with mentions and the bot name removed.
	Text string
	// IsCommand reports whether Text started with the command prefix.
	IsCommand bool
	// Command is the normalized first token after the prefix.
	Command string
	// Args are the whitespace-separated words after the command.
	Args []string
	// RawArgs is the text after the command with inner spacing preserved.
	RawArgs string
}

// Normalize folds full-width characters to their narrow forms and lower-cases s.
func Normalize(s string) string {
	return strings.ToLower(width.Fold.String(strings.TrimSpace(s)))
}

// StripAddressing removes every @mention token and the first occurrence of
// botName from text.
func StripAddressing(text, botName string) string {
	text = mentionPattern.ReplaceAllString(text, "")
	if botName != "" {
		text = strings.Replace(text, botName, "", 1)
	}
	return strings.TrimSpace(text)
}

// Parse strips addressing from text and, when the remainder begins with
// prefix, splits it into a command token and arguments. A full-width form of
// the prefix is accepted.
//
// Postcondition: IsCommand is false and Command empty when text does not start with prefix.
func Parse(text, prefix, botName string) ParseResult {
	clean := StripAddressing(text, botName)
	res := ParseResult{Text: clean}

	body, ok := cutPrefix(clean, prefix)
	if !ok {
		return res
	}
	res.IsCommand = true

	body = strings.TrimLeftFunc(body, unicode.IsSpace)
	if body == "" {
		return res
	}
	cmd, rest := body, ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		cmd, rest = body[:i], body[i:]
	}
	res.Command = Normalize(cmd)
	res.RawArgs = strings.TrimSpace(rest)
	res.Args = strings.Fields(res.RawArgs)
	return res
}

// HasPrefix reports whether text, after leading space, starts with prefix or
// its full-width form.
func HasPrefix(text, prefix string) bool {
	_, ok := cutPrefix(strings.TrimLeftFunc(text, unicode.IsSpace), prefix)
	return ok
}

// cutPrefix removes prefix from s, comparing the leading runes of s after
// width folding.
func cutPrefix(s, prefix string) (string, bool) {
	if prefix == "" {
		return s, false
	}
	if rest, ok := strings.CutPrefix(s, prefix); ok {
		return rest, true
	}
	n := utf8.RuneCountInString(prefix)
	i := 0
	for pos := range s {
		if i == n {
			if width.Fold.String(s[:pos]) == prefix {
				return s[pos:], true
			}
			return s, false
		}
		i++
	}
	if i == n && width.Fold.String(s) == prefix {
		return "", true
	}
	return s, false
}

// SplitFirst splits s into its first whitespace-delimited word and the
// trimmed remainder.
func SplitFirst(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}
