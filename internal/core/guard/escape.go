package guard

import (
	"html"
	"strings"
)

// EscapeForPrompt makes text inert for template interpolation: HTML special
// characters are entity-escaped and markdown heading/rule delimiters are
// broken up so retrieved content cannot restructure the instruction block.
// Applied to the query and to every chunk field alike.
func EscapeForPrompt(text string) string {
	if text == "" {
		return ""
	}
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "###", `\#\#\#`)
	escaped = strings.ReplaceAll(escaped, "---", `\-\-\-`)
	return escaped
}
