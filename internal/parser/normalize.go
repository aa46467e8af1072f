package parser

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// invisible lists characters that render as nothing but split a word for the
// shell. They are dropped before lexing so "su\u200bdo" is read as "sudo".
var invisible = strings.NewReplacer(
	"\u200b", "", // zero width space
	"\u200c", "", // zero width non-joiner
	"\u200d", "", // zero width joiner
	"\u2060", "", // word joiner
	"\ufeff", "", // byte order mark
	"\u00ad", "", // soft hyphen
)

// Normalize folds a raw command into the form the lexer works on.
// Compatibility forms (full-width letters, ligatures) are folded with NFKC,
// invisible characters are removed and CRLF line endings become LF.
func Normalize(cmd string) string {
	cmd = norm.NFKC.String(cmd)
	cmd = invisible.Replace(cmd)
	return strings.ReplaceAll(cmd, "\r\n", "\n")
}
