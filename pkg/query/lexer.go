package query

// token is one word of a statement with its byte offset, for error
// reporting.
type token struct {
	text string
	pos  int
}

// tokenize splits a statement on whitespace. Double-quoted substrings form a
// single token even when they contain spaces; the quotes themselves are
// stripped.
func tokenize(s string) []token {
	var out []token
	var cur []rune
	start := -1
	inQuote := false
	flush := func() {
		if start >= 0 {
			out = append(out, token{text: string(cur), pos: start})
		}
		cur = cur[:0]
		start = -1
	}
	for i, r := range s {
		switch {
		case r == '"':
			if inQuote {
				inQuote = false
			} else {
				inQuote = true
				if start < 0 {
					start = i
				}
			}
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inQuote {
				cur = append(cur, r)
			} else {
				flush()
			}
		default:
			if start < 0 {
				start = i
			}
			cur = append(cur, r)
		}
	}
	flush()
	return out
}
