package parser

import (
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
)

// wrapper describes a program that runs another program given as its
// arguments.
type wrapper struct {
	// valueFlags consume the argument that follows them.
	valueFlags map[string]bool
	// inlineFlags take a command string that is parsed by the shell.
	inlineFlags map[string]bool
	// operands is the number of leading operands before the wrapped program.
	operands int
	// joined wrappers concatenate their arguments and re-parse them, as eval
	// does.
	joined bool
	// dashFlag marks "-" as an option rather than the start of the command.
	dashFlag bool
	// lookupFlags turn the wrapper into a query that runs nothing.
	lookupFlags map[string]bool
	// handler wrappers run only their first operand as shell text, as trap
	// does. "-" as that operand resets the handler and runs nothing.
	handler bool
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, item := range items {
		m[item] = true
	}
	return m
}

var wrappers = map[string]wrapper{
	"eval": {joined: true},
	"exec": {valueFlags: set("-a"), joined: true},
	"env": {
		valueFlags:  set("-u", "--unset", "-C", "--chdir"),
		inlineFlags: set("-S", "--split-string"),
		dashFlag:    true,
	},
	"command": {lookupFlags: set("-v", "-V")},
	"builtin": {},
	"trap":    {lookupFlags: set("-l", "-p", "-P"), handler: true},
	"nohup":   {},
	"nice":    {valueFlags: set("-n", "--adjustment")},
	"time":    {valueFlags: set("-f", "--format", "-o", "--output")},
	"timeout": {valueFlags: set("-s", "--signal", "-k", "--kill-after"), operands: 1},
	"stdbuf":  {valueFlags: set("-i", "-o", "-e", "--input", "--output", "--error")},
	"setsid":  {},
	"flock":   {valueFlags: set("-w", "--wait", "--timeout", "-E", "--conflict-exit-code"), inlineFlags: set("-c", "--command"), operands: 1},
	"watch":   {valueFlags: set("-n", "--interval", "-d", "--differences"), joined: true},
	"xargs": {
		valueFlags: set("-I", "-n", "-P", "-L", "-s", "-d", "-E", "-a",
			"--max-args", "--max-procs", "--max-lines", "--max-chars",
			"--delimiter", "--eof", "--arg-file", "--replace", "--process-slot-var"),
	},
}

// findActions embed a command terminated by ";" or "+".
var findActions = set("-exec", "-execdir", "-ok", "-okdir")

// unwrap returns the command texts that cmd runs on its behalf and whether
// cmd itself should be reported. It may strip an embedded command from
// cmd's arguments.
func unwrap(cmd *SubCommand) ([]string, bool) {
	if Shells[cmd.Executable] {
		return unwrapShell(cmd)
	}
	switch cmd.Executable {
	case "find":
		return unwrapFind(cmd), true
	case "nix":
		return unwrapNix(cmd), true
	}
	w, ok := wrappers[cmd.Executable]
	if !ok {
		return nil, true
	}

	i, payloads, emit, done := w.options(cmd, 0)
	if done {
		return payloads, emit
	}
	if w.operands > 0 {
		if i, payloads, emit, done = w.options(cmd, i+w.operands); done {
			return payloads, emit
		}
	}
	if i >= len(cmd.Args) {
		return nil, true
	}

	rest := cmd.Args[i:]
	if w.handler {
		if rest[0] == "-" {
			return nil, true
		}
		return []string{prefix(cmd.Env, rest[0], nil)}, false
	}
	if w.joined {
		return []string{prefix(cmd.Env, strings.Join(rest, " "), nil)}, false
	}
	return []string{prefix(cmd.Env, "", rest)}, false
}

// options skips the wrapper's options starting at i. It returns the index of
// the first remaining argument, or done with the final answer when an option
// settles what the wrapper runs.
func (w wrapper) options(cmd *SubCommand, i int) (int, []string, bool, bool) {
	args := cmd.Args
	for i < len(args) {
		arg := args[i]
		if arg == "--" {
			return i + 1, nil, false, false
		}
		if arg == "-" && w.dashFlag {
			i++
			continue
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			break
		}
		if w.lookupFlags[arg] {
			return i, nil, true, true
		}
		name, value, attached := strings.Cut(arg, "=")
		if w.inlineFlags[name] {
			switch {
			case attached:
				return i, []string{prefix(cmd.Env, value, args[i+1:])}, false, true
			case i+1 < len(args):
				return i, []string{prefix(cmd.Env, args[i+1], args[i+2:])}, false, true
			}
			return i, nil, true, true
		}
		if w.valueFlags[arg] {
			i++
		}
		i++
	}
	return i, nil, false, false
}

// prefix renders the payload a wrapper hands on: the wrapper's own
// environment, then text, then the quoted words.
func prefix(env map[string]string, text string, words []string) string {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+2)
	for _, name := range names {
		parts = append(parts, name+"="+shellquote.Join(env[name]))
	}
	if text != "" {
		parts = append(parts, text)
	}
	if len(words) > 0 {
		parts = append(parts, shellquote.Join(words...))
	}
	return strings.Join(parts, " ")
}

func unwrapShell(cmd *SubCommand) ([]string, bool) {
	sh := ShellInvocation(cmd.Args)
	if !sh.Inline || !sh.HasCommand {
		return nil, true
	}
	payload := []string{prefix(cmd.Env, sh.Command, nil)}
	if sh.Interactive {
		cmd.Args = []string{"-i"}
		return payload, true
	}
	return payload, false
}

func unwrapFind(cmd *SubCommand) []string {
	var payloads []string
	kept := make([]string, 0, len(cmd.Args))
	for i := 0; i < len(cmd.Args); i++ {
		if !findActions[cmd.Args[i]] {
			kept = append(kept, cmd.Args[i])
			continue
		}
		end := i + 1
		for end < len(cmd.Args) && cmd.Args[end] != ";" && cmd.Args[end] != "+" {
			end++
		}
		if end > i+1 {
			payloads = append(payloads, shellquote.Join(cmd.Args[i+1:end]...))
		}
		i = end
	}
	cmd.Args = kept
	return payloads
}

func unwrapNix(cmd *SubCommand) []string {
	n := NixInvocation(cmd.Args)
	if (n.Subcommand != "shell" && n.Subcommand != "develop") || len(n.Command) == 0 {
		return nil
	}
	cut := len(cmd.Args) - len(n.Command) - 1
	cmd.Args = append([]string(nil), cmd.Args[:cut]...)
	return []string{shellquote.Join(n.Command...)}
}
