package widget

import (
	"html"
	"strings"
)

var lineBreaks = strings.NewReplacer("\r\n", "<br>", "\n", "<br>", "\r", "<br>")

// Escape encodes the five markup-significant characters of upstream text.
func Escape(s string) string {
	return html.EscapeString(s)
}

// EscapeMultiline escapes s and then turns its line breaks into <br> markers.
// Escaping happens first so the inserted markers survive intact.
func EscapeMultiline(s string) string {
	return lineBreaks.Replace(Escape(s))
}

func escapeOpt(s *string) string {
	if s == nil {
		return ""
	}
	return Escape(*s)
}
