package replace

import "strings"

// Expand builds the replacement text for rec from template.
//
// For regular-expression hits, \0 to \9 insert the matching capture group and
// \\ inserts one backslash. Every other rune, including a trailing lone
// backslash, is copied. Literal hits use the template as is.
func Expand(template string, rec *MatchRecord) string {
	if !rec.Regex {
		return template
	}
	if !strings.ContainsRune(template, '\\') {
		return template
	}
	src := []rune(template)
	var sb strings.Builder
	sb.Grow(len(template))
	for i := 0; i < len(src); i++ {
		ch := src[i]
		if ch != '\\' || i+1 >= len(src) {
			sb.WriteRune(ch)
			continue
		}
		next := src[i+1]
		switch {
		case next >= '0' && next <= '9':
			sb.WriteString(rec.Capture(int(next - '0')))
			i++
		case next == '\\':
			sb.WriteByte('\\')
			i++
		default:
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}
