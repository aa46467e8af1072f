package parser

import (
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	wordToken tokenKind = iota
	controlToken
	redirectToken
)

// token is a lexed shell word or operator.
type token struct {
	kind tokenKind
	// text is the word with quoting removed, or the operator itself.
	text string
	// quotedAt is the offset in text of the first byte that came from a
	// quoted or escaped context, -1 when the word is entirely bare.
	quotedAt int
	// dynamic is set when the word's final value is only known after
	// expansion, globbing or brace expansion.
	dynamic bool
	// substs holds the command text of every substitution inside the word.
	substs []string
}

func (t *token) markQuoted(offset int) {
	if t.quotedAt < 0 {
		t.quotedAt = offset
	}
}

type heredoc struct {
	delim  string
	quoted bool
	strip  bool
	owner  int
}

// lexer splits a command string into words and operators. It never fails:
// anything it cannot make sense of is recorded in issues and lexing goes on.
type lexer struct {
	src       string
	pos       int
	tokens    []token
	issues    []string
	pending   []heredoc
	wantDelim string
	// depth is the nesting level of src, counted like Decompose counts it.
	depth int
	// tooDeep is set when an expansion nested past MaxDepth was not read.
	tooDeep bool
}

// lexed is the result of lexing one piece of command text.
type lexed struct {
	tokens  []token
	issues  []string
	tooDeep bool
}

func lex(src string, depth int) lexed {
	l := &lexer{src: src, depth: depth}
	l.run()
	return lexed{tokens: l.tokens, issues: l.issues, tooDeep: l.tooDeep}
}

func (l *lexer) issue(msg string) {
	for _, m := range l.issues {
		if m == msg {
			return
		}
	}
	l.issues = append(l.issues, msg)
}

func (l *lexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) run() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case ' ', '\t', '\r':
			l.pos++
		case '\\':
			if l.peek(1) == '\n' {
				l.pos += 2
				continue
			}
			l.word()
		case '\n':
			l.pos++
			l.control("\n")
			l.heredocBodies()
		case '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case ';':
			if l.peek(1) == ';' {
				l.pos += 2
				l.control(";;")
			} else {
				l.pos++
				l.control(";")
			}
		case '|':
			switch l.peek(1) {
			case '|':
				l.pos += 2
				l.control("||")
			case '&':
				l.pos += 2
				l.control("|&")
			default:
				l.pos++
				l.control("|")
			}
		case '&':
			switch {
			case l.peek(1) == '&':
				l.pos += 2
				l.control("&&")
			case l.peek(1) == '>' && l.peek(2) == '>':
				l.pos += 3
				l.redirect("&>>")
			case l.peek(1) == '>':
				l.pos += 2
				l.redirect("&>")
			default:
				l.pos++
				l.control("&")
			}
		case '(', ')':
			l.pos++
			l.control(string(c))
		case '<', '>':
			if l.peek(1) == '(' {
				l.word()
				continue
			}
			l.redirectOp()
		default:
			l.word()
		}
	}
	if l.wantDelim != "" {
		l.issue("here-document without delimiter")
	}
}

func (l *lexer) control(op string) {
	if l.wantDelim != "" {
		l.issue("here-document without delimiter")
		l.wantDelim = ""
	}
	l.tokens = append(l.tokens, token{kind: controlToken, text: op, quotedAt: -1})
}

func (l *lexer) redirectOp() {
	c := l.src[l.pos]
	l.pos++
	op := string(c)
	next := l.peek(0)
	switch {
	case c == '<' && next == '<':
		l.pos++
		op = "<<"
		switch l.peek(0) {
		case '<':
			l.pos++
			op = "<<<"
		case '-':
			l.pos++
			op = "<<-"
		}
	case c == '>' && (next == '>' || next == '|' || next == '&'):
		l.pos++
		op += string(next)
	case c == '<' && (next == '>' || next == '&'):
		l.pos++
		op += string(next)
	}
	l.redirect(op)
}

func (l *lexer) redirect(op string) {
	l.tokens = append(l.tokens, token{kind: redirectToken, text: op, quotedAt: -1})
	if op == "<<" || op == "<<-" {
		l.wantDelim = op
	}
}

func (l *lexer) word() {
	var b strings.Builder
	t := token{kind: wordToken, quotedAt: -1}
	brace, bracket := -1, false

loop:
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case ' ', '\t', '\r', '\n', ';', '|', '&', '(', ')':
			break loop
		case '<', '>':
			if l.peek(1) != '(' {
				break loop
			}
			inner, end, ok := l.balanced(l.pos+1, '(', ')')
			b.WriteString(l.src[l.pos:end])
			t.substs = append(t.substs, inner)
			t.dynamic = true
			l.pos = end
			if !ok {
				l.issue("unterminated process substitution")
			}
		case '\\':
			if l.peek(1) == '\n' {
				l.pos += 2
				continue
			}
			if l.pos+1 >= len(l.src) {
				b.WriteByte(c)
				l.pos++
				continue
			}
			t.markQuoted(b.Len())
			b.WriteByte(l.src[l.pos+1])
			l.pos += 2
		case '\'':
			t.markQuoted(b.Len())
			l.single(&b)
		case '"':
			t.markQuoted(b.Len())
			l.double(&b, &t, true)
		case '`':
			l.backtick(&b, &t)
		case '$':
			l.dollar(&b, &t, false)
		case '*', '?':
			t.dynamic = true
			b.WriteByte(c)
			l.pos++
		case '[':
			bracket = true
			b.WriteByte(c)
			l.pos++
		case ']':
			if bracket {
				t.dynamic = true
			}
			b.WriteByte(c)
			l.pos++
		case '{':
			brace = b.Len()
			b.WriteByte(c)
			l.pos++
		case '}':
			if brace >= 0 {
				body := b.String()[brace:]
				if strings.Contains(body, ",") || strings.Contains(body, "..") {
					t.dynamic = true
				}
			}
			b.WriteByte(c)
			l.pos++
		default:
			b.WriteByte(c)
			l.pos++
		}
	}

	t.text = b.String()
	if t.quotedAt < 0 && isDigits(t.text) && (l.peek(0) == '<' || l.peek(0) == '>') && l.peek(1) != '(' {
		// file descriptor of the redirection that follows
		return
	}
	l.tokens = append(l.tokens, t)
	if l.wantDelim != "" {
		l.pending = append(l.pending, heredoc{
			delim:  t.text,
			quoted: t.quotedAt >= 0,
			strip:  l.wantDelim == "<<-",
			owner:  len(l.tokens) - 1,
		})
		l.wantDelim = ""
	}
}

func (l *lexer) single(b *strings.Builder) {
	end := strings.IndexByte(l.src[l.pos+1:], '\'')
	if end < 0 {
		b.WriteString(l.src[l.pos+1:])
		l.pos = len(l.src)
		l.issue("unterminated single quote")
		return
	}
	b.WriteString(l.src[l.pos+1 : l.pos+1+end])
	l.pos += end + 2
}

// double reads a double-quoted span. With closing unset it reads to the end
// of input, which is how here-document bodies are expanded.
func (l *lexer) double(b *strings.Builder, t *token, closing bool) {
	if closing {
		l.pos++
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			if closing {
				l.pos++
				return
			}
			b.WriteByte(c)
			l.pos++
		case '\\':
			switch next := l.peek(1); next {
			case '\n':
				l.pos += 2
			case '$', '`', '"', '\\':
				b.WriteByte(next)
				l.pos += 2
			default:
				b.WriteByte(c)
				l.pos++
			}
		case '`':
			l.backtick(b, t)
		case '$':
			l.dollar(b, t, true)
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	if closing {
		l.issue("unterminated double quote")
	}
}

func (l *lexer) backtick(b *strings.Builder, t *token) {
	start := l.pos
	var inner strings.Builder
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' && l.pos+1 < len(l.src) {
			if next := l.src[l.pos+1]; next == '`' || next == '\\' || next == '$' {
				inner.WriteByte(next)
				l.pos += 2
				continue
			}
		}
		if c == '`' {
			l.pos++
			b.WriteString(l.src[start:l.pos])
			t.substs = append(t.substs, inner.String())
			t.dynamic = true
			return
		}
		inner.WriteByte(c)
		l.pos++
	}
	b.WriteString(l.src[start:])
	t.substs = append(t.substs, inner.String())
	t.dynamic = true
	l.issue("unterminated backtick substitution")
}

func (l *lexer) dollar(b *strings.Builder, t *token, inDouble bool) {
	next := l.peek(1)
	switch {
	case next == '(' && l.peek(2) == '(':
		inner, end, ok := l.balanced(l.pos+1, '(', ')')
		b.WriteString(l.src[l.pos:end])
		l.nested(t, inner)
		t.dynamic = true
		l.pos = end
		if !ok {
			l.issue("unterminated arithmetic expansion")
		}
	case next == '(':
		inner, end, ok := l.balanced(l.pos+1, '(', ')')
		b.WriteString(l.src[l.pos:end])
		t.substs = append(t.substs, inner)
		t.dynamic = true
		l.pos = end
		if !ok {
			l.issue("unterminated command substitution")
		}
	case next == '{':
		inner, end, ok := l.balanced(l.pos+1, '{', '}')
		b.WriteString(l.src[l.pos:end])
		l.nested(t, inner)
		t.dynamic = true
		l.pos = end
		if !ok {
			l.issue("unterminated parameter expansion")
		}
	case next == '\'' && !inDouble:
		t.markQuoted(b.Len())
		l.pos++
		l.ansiC(b)
	case next == '"' && !inDouble:
		t.markQuoted(b.Len())
		l.pos++
		l.double(b, t, true)
	case isNameStart(next) || isSpecialParam(next):
		start := l.pos
		l.pos++
		if isNameStart(next) {
			for l.pos < len(l.src) && isNameByte(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos++
		}
		b.WriteString(l.src[start:l.pos])
		t.dynamic = true
	default:
		b.WriteByte('$')
		l.pos++
	}
}

// nested collects the substitutions found inside ${...} and $((...)).
func (l *lexer) nested(t *token, inner string) {
	if l.depth >= MaxDepth {
		l.tooDeep = true
		return
	}
	out := lex(inner, l.depth+1)
	for _, nt := range out.tokens {
		t.substs = append(t.substs, nt.substs...)
	}
	for _, is := range out.issues {
		l.issue(is)
	}
	if out.tooDeep {
		l.tooDeep = true
	}
}

// balanced returns the text between src[open] and its matching close byte,
// the offset just past the close, and whether the close was found.
func (l *lexer) balanced(open int, openCh, closeCh byte) (string, int, bool) {
	depth := 0
	for i := open; i < len(l.src); {
		switch c := l.src[i]; c {
		case '\\':
			i += 2
			continue
		case '\'':
			end := strings.IndexByte(l.src[i+1:], '\'')
			if end < 0 {
				return l.src[open+1:], len(l.src), false
			}
			i += end + 2
			continue
		case '"':
			end, ok := l.skipDouble(i)
			if !ok {
				return l.src[open+1:], len(l.src), false
			}
			i = end
			continue
		case '`':
			end, ok := l.skipBacktick(i)
			if !ok {
				return l.src[open+1:], len(l.src), false
			}
			i = end
			continue
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return l.src[open+1 : i], i + 1, true
			}
		}
		i++
	}
	return l.src[open+1:], len(l.src), false
}

func (l *lexer) skipDouble(i int) (int, bool) {
	for i++; i < len(l.src); {
		switch l.src[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1, true
		case '$':
			if i+1 < len(l.src) && l.src[i+1] == '(' {
				_, end, ok := l.balanced(i+1, '(', ')')
				if !ok {
					return len(l.src), false
				}
				i = end
				continue
			}
			i++
		case '`':
			end, ok := l.skipBacktick(i)
			if !ok {
				return len(l.src), false
			}
			i = end
		default:
			i++
		}
	}
	return len(l.src), false
}

func (l *lexer) skipBacktick(i int) (int, bool) {
	for j := i + 1; j < len(l.src); j++ {
		switch l.src[j] {
		case '\\':
			j++
		case '`':
			return j + 1, true
		}
	}
	return len(l.src), false
}

// ansiC decodes a $'...' string. l.pos is on the opening quote.
func (l *lexer) ansiC(b *strings.Builder) {
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\'' {
			l.pos++
			return
		}
		if c != '\\' || l.pos+1 >= len(l.src) {
			b.WriteByte(c)
			l.pos++
			continue
		}
		e := l.src[l.pos+1]
		l.pos += 2
		switch e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte(0x07)
		case 'b':
			b.WriteByte(0x08)
		case 'e', 'E':
			b.WriteByte(0x1b)
		case 'f':
			b.WriteByte(0x0c)
		case 'v':
			b.WriteByte(0x0b)
		case '\\', '\'', '"', '?':
			b.WriteByte(e)
		case 'c':
			if l.pos < len(l.src) {
				b.WriteByte(l.src[l.pos] & 0x1f)
				l.pos++
			}
		case 'x':
			if v, n := l.digits(16, 2); n > 0 {
				b.WriteByte(byte(v))
			} else {
				b.WriteString(`\x`)
			}
		case 'u', 'U':
			width := 4
			if e == 'U' {
				width = 8
			}
			if v, n := l.digits(16, width); n > 0 && utf8.ValidRune(rune(v)) {
				b.WriteRune(rune(v))
			} else {
				b.WriteByte('\\')
				b.WriteByte(e)
			}
		case '0', '1', '2', '3', '4', '5', '6', '7':
			l.pos--
			v, _ := l.digits(8, 3)
			b.WriteByte(byte(v))
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	l.issue("unterminated single quote")
}

func (l *lexer) digits(base, max int) (int, int) {
	v, n := 0, 0
	for n < max && l.pos < len(l.src) {
		d := digitValue(l.src[l.pos])
		if d < 0 || d >= base {
			break
		}
		v = v*base + d
		l.pos++
		n++
	}
	return v, n
}

// heredocBodies skips the bodies of here-documents opened on the line just
// ended. Unquoted delimiters expand their body, so substitutions in it run.
func (l *lexer) heredocBodies() {
	pending := l.pending
	l.pending = nil
	for _, h := range pending {
		for l.pos < len(l.src) {
			line, next := l.src[l.pos:], len(l.src)
			if end := strings.IndexByte(line, '\n'); end >= 0 {
				line, next = line[:end], l.pos+end+1
			}
			l.pos = next
			check := line
			if h.strip {
				check = strings.TrimLeft(line, "\t")
			}
			if check == h.delim {
				break
			}
			if !h.quoted {
				l.bodySubstitutions(h.owner, line)
			}
		}
	}
}

func (l *lexer) bodySubstitutions(owner int, line string) {
	body := &lexer{src: line, depth: l.depth}
	var b strings.Builder
	t := token{quotedAt: -1}
	body.double(&b, &t, false)
	l.tokens[owner].substs = append(l.tokens[owner].substs, t.substs...)
	for _, is := range body.issues {
		l.issue(is)
	}
	if body.tooDeep {
		l.tooDeep = true
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func isName(s string) bool {
	if s == "" || !isNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return false
		}
	}
	return true
}

func isSpecialParam(c byte) bool {
	return strings.IndexByte("@*#?$!-0123456789", c) >= 0 && c != 0
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}
