package protocol

import "strings"

// Tokenize splits a command line on whitespace. A double-quoted run is one
// token with the quotes removed, so file names may contain spaces. An
// unterminated quote runs to the end of the line.
func Tokenize(line string) []string {
	var (
		tokens []string
		cur    strings.Builder
		quoted bool
		have   bool
	)
	flush := func() {
		if have {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
		have = false
	}

	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			have = true
		case !quoted && (r == ' ' || r == '\t' || r == '\r' || r == '\n'):
			flush()
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	flush()
	return tokens
}

// splitOption parses the arguments of setoption: "name <Name...> value
// <Value...>". Both parts may span several tokens.
func splitOption(args []string) (name, value string, ok bool) {
	if len(args) < 2 || args[0] != "name" {
		return "", "", false
	}
	i := 1
	for i < len(args) && args[i] != "value" {
		i++
	}
	name = strings.Join(args[1:i], " ")
	if i < len(args) {
		value = strings.Join(args[i+1:], " ")
	}
	return name, value, name != ""
}
