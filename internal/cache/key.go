package cache

import "strings"

var keyEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`)

// Key builds a cache key from a namespace prefix and ordered parts joined by
// ":". Backslashes and colons inside each part are escaped so that distinct
// part lists never produce the same key.
func Key(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyEscaper.Replace(prefix))
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(keyEscaper.Replace(p))
	}
	return b.String()
}
