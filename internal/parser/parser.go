// Package parser turns untrusted shell command strings into the simple
// commands they would run.
package parser

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
)

// SubCommand is one executable invocation found in a command string.
type SubCommand struct {
	// Executable is the basename of the command word.
	Executable string
	// Path is the command word as written.
	Path string
	Args []string
	// Env holds the NAME=value assignments that prefix the command.
	Env map[string]string
	// HasSubstitution reports whether any word contained a command or
	// process substitution.
	HasSubstitution bool
	Redirects       []Redirect
	// Depth is the unwrapping depth the command was found at, 0 for the
	// top level.
	Depth int
}

// Redirect is an I/O redirection attached to a command.
type Redirect struct {
	Op     string
	Target string
}

// outputRedirects are the operators that open their target for writing.
var outputRedirects = map[string]bool{
	">": true, ">>": true, ">|": true, "&>": true, "&>>": true, "<>": true,
}

// Writes reports whether the redirection writes to its target.
func (r Redirect) Writes() bool {
	return outputRedirects[r.Op]
}

var envVarPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\+?=`)

// HasFlag returns true if flag appears as an argument before any "--".
func (c SubCommand) HasFlag(flag string) bool {
	for _, arg := range c.Args {
		if arg == "--" {
			return false
		}
		if arg == flag || (strings.HasPrefix(flag, "--") && strings.HasPrefix(arg, flag+"=")) {
			return true
		}
	}
	return false
}

// String renders the command as shell text. Decomposing the result yields
// the same executable, arguments and environment.
func (c SubCommand) String() string {
	names := make([]string, 0, len(c.Env))
	for name := range c.Env {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+1)
	for _, name := range names {
		parts = append(parts, name+"="+shellquote.Join(c.Env[name]))
	}
	words := append([]string{c.Path}, c.Args...)
	parts = append(parts, shellquote.Join(words...))
	return strings.Join(parts, " ")
}

// simpleCommand is the run of tokens between two control operators.
type simpleCommand struct {
	words     []token
	redirects []Redirect
	substs    []string
}

func split(tokens []token) ([]simpleCommand, []string) {
	var (
		out     []simpleCommand
		issues  []string
		cur     simpleCommand
		pending string
	)
	flush := func() {
		if pending != "" {
			issues = append(issues, "redirection "+pending+" without target")
			pending = ""
		}
		if len(cur.words) > 0 || len(cur.substs) > 0 || len(cur.redirects) > 0 {
			out = append(out, cur)
		}
		cur = simpleCommand{}
	}

	for _, t := range tokens {
		switch t.kind {
		case wordToken:
			cur.substs = append(cur.substs, t.substs...)
			if pending != "" {
				cur.redirects = append(cur.redirects, Redirect{Op: pending, Target: t.text})
				pending = ""
				continue
			}
			cur.words = append(cur.words, t)
		case redirectToken:
			if pending != "" {
				issues = append(issues, "redirection "+pending+" without target")
			}
			pending = t.text
		case controlToken:
			flush()
		}
	}
	flush()
	return out, issues
}

// reservedWords introduce or close compound commands; the command they
// prefix is what runs.
var reservedWords = map[string]bool{
	"!": true, "{": true, "}": true, "if": true, "then": true, "else": true,
	"elif": true, "fi": true, "do": true, "done": true, "while": true,
	"until": true, "esac": true,
}

// headerWords start a line that names variables or patterns, not a program.
var headerWords = map[string]bool{
	"for": true, "case": true, "select": true,
}

func bare(t token, word string) bool {
	return t.quotedAt < 0 && t.text == word
}

func stripReserved(words []token) []token {
	for len(words) > 0 && words[0].quotedAt < 0 && reservedWords[words[0].text] {
		words = words[1:]
	}
	return words
}

// parse builds a SubCommand from a simple command. It returns false when
// the simple command runs no program, and an issue when the program cannot
// be known statically.
func parse(sc simpleCommand, depth int) (SubCommand, string, bool) {
	words := stripReserved(sc.words)
	if len(words) > 0 && bare(words[0], "function") {
		// function NAME { BODY
		words = stripReserved(words[min(2, len(words)):])
	}
	if len(words) > 0 && bare(words[0], "coproc") {
		// coproc [NAME { ...; }] CMD
		words = words[1:]
		if len(words) > 1 && words[0].quotedAt < 0 && isName(words[0].text) && bare(words[1], "{") {
			words = words[1:]
		}
		words = stripReserved(words)
	}
	if len(words) > 0 && words[0].quotedAt < 0 && headerWords[words[0].text] {
		return SubCommand{}, "", false
	}

	result := SubCommand{
		Env:             make(map[string]string),
		Args:            make([]string, 0),
		Redirects:       sc.redirects,
		HasSubstitution: len(sc.substs) > 0,
		Depth:           depth,
	}

	idx := 0
	for idx < len(words) {
		w := words[idx]
		loc := envVarPattern.FindStringIndex(w.text)
		if loc == nil || (w.quotedAt >= 0 && w.quotedAt < loc[1]) {
			break
		}
		name := strings.TrimSuffix(w.text[:loc[1]-1], "+")
		result.Env[name] = w.text[loc[1]:]
		idx++
	}

	if idx >= len(words) {
		return SubCommand{}, "", false
	}

	cmd := words[idx]
	result.Path = cmd.text
	result.Executable = path.Base(strings.ReplaceAll(cmd.text, `\`, "/"))
	for _, w := range words[idx+1:] {
		result.Args = append(result.Args, w.text)
	}

	if cmd.dynamic {
		return result, "executable " + quoteIssue(cmd.text) + " is computed at runtime", true
	}
	return result, "", true
}

func quoteIssue(s string) string {
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return "\"" + s + "\""
}
