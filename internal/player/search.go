package player

import "strings"

// Tokenize splits a free-text query into search tokens. Double-quoted
// phrases survive as single tokens; everything outside quotes splits on
// whitespace. `foo "bar baz" qux` becomes ["foo", "bar baz", "qux"].
func Tokenize(query string) []string {
	var tokens []string
	for i, part := range strings.Split(query, `"`) {
		if i%2 == 1 {
			if part != "" {
				tokens = append(tokens, part)
			}
			continue
		}
		tokens = append(tokens, strings.Fields(part)...)
	}
	return tokens
}
