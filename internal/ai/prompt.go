package ai

import "strings"

// FormatPrompt fills a template's %s placeholders in order and its %N$s
// placeholders by position. %% is a literal percent sign. Placeholders
// without a matching argument become empty and surplus arguments are
// ignored. Any other % sequence is copied as is.
func FormatPrompt(template string, args ...string) string {
	var b strings.Builder
	b.Grow(len(template))
	next := 0

	arg := func(i int) string {
		if i >= 0 && i < len(args) {
			return args[i]
		}
		return ""
	}

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' || i+1 >= len(template) {
			b.WriteByte(c)
			continue
		}

		switch rest := template[i+1:]; {
		case rest[0] == '%':
			b.WriteByte('%')
			i++
		case rest[0] == 's':
			b.WriteString(arg(next))
			next++
			i++
		default:
			n, width := leadingInt(rest)
			if width > 0 && strings.HasPrefix(rest[width:], "$s") {
				b.WriteString(arg(n - 1))
				i += width + 2
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

func leadingInt(s string) (int, int) {
	n, i := 0, 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' && i < 3 {
		n = n*10 + int(s[i]-'0')
		i++
	}
	return n, i
}
