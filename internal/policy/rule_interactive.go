package policy

import (
	"regexp"
	"strings"

	"github.com/adrianpk/cmdguard/internal/parser"
)

// informational flags print something and exit without reading input.
var informational = set("--version", "-V", "--help", "-h")

// repl describes how an interpreter is told what to run. Started with none
// of it, the interpreter waits for keyboard input.
type repl struct {
	// code flags supply the program on the command line.
	code map[string]bool
	// valueFlags consume the argument that follows them.
	valueFlags map[string]bool
	// info flags print something and exit, on top of informational.
	info map[string]bool
	// scripts is set when the first operand is a program file.
	scripts bool
	// clustered interpreters accept combined short flags such as -uc.
	clustered bool
}

var pythonREPL = repl{
	code:       set("-c", "-m"),
	valueFlags: set("-W", "-X", "--check-hash-based-pycs"),
	scripts:    true,
	clustered:  true,
}

var repls = map[string]repl{
	"ipython": {code: set("-c", "-m"), scripts: true},
	"node": {
		code:       set("-e", "--eval", "-p", "--print", "--test", "--check", "-c"),
		valueFlags: set("-r", "--require", "--import", "--loader", "--experimental-loader", "-C", "--conditions", "--input-type", "--env-file", "--title"),
		info:       set("-v"),
		scripts:    true,
	},
	"irb":  {valueFlags: set("-r", "-I"), info: set("-v"), scripts: true},
	"ghci": {code: set("-e")},
}

var pythonName = regexp.MustCompile(`^python[0-9.]*$`)

func lookupREPL(executable string) (repl, bool) {
	if pythonName.MatchString(executable) {
		return pythonREPL, true
	}
	r, ok := repls[executable]
	return r, ok
}

// waitsForInput reports whether the interpreter would start an interactive
// session given args.
func (r repl) waitsForInput(args []string) bool {
	forced := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, _, _ := strings.Cut(arg, "=")
		switch {
		case arg == "-":
			return forced
		case arg == "--":
			if i+1 < len(args) && r.scripts {
				return forced
			}
			return true
		case informational[arg] || r.info[arg]:
			return false
		case arg == "-i" || arg == "--interactive":
			forced = true
		case r.code[name]:
			// a code flag without its code reads from the terminal
			if name != arg || i+1 < len(args) {
				return forced
			}
		case r.valueFlags[arg]:
			i++
		case r.clustered && len(arg) > 2 && arg[0] == '-' && arg[1] != '-':
			supplied, consumesNext := r.cluster(arg[1:], &forced, i+1 < len(args))
			if supplied {
				return forced
			}
			if consumesNext {
				i++
			}
		case strings.HasPrefix(arg, "-"):
		default:
			if r.scripts {
				return forced
			}
		}
	}
	return true
}

// cluster reads combined short flags. It reports whether a flag in the
// cluster supplies code and whether the last flag takes the next argument.
// hasNext tells whether an argument follows the cluster.
func (r repl) cluster(flags string, forced *bool, hasNext bool) (bool, bool) {
	for j := 0; j < len(flags); j++ {
		flag := "-" + flags[j:j+1]
		switch {
		case flag == "-i":
			*forced = true
		case r.code[flag]:
			return j < len(flags)-1 || hasNext, false
		case r.valueFlags[flag]:
			// the rest of the cluster is the value
			return false, j == len(flags)-1
		}
	}
	return false, false
}

func isInteractiveREPL(cmd parser.SubCommand) bool {
	r, ok := lookupREPL(cmd.Executable)
	return ok && r.waitsForInput(cmd.Args)
}

func isInteractiveShell(cmd parser.SubCommand) bool {
	if !parser.Shells[cmd.Executable] {
		return false
	}
	for _, arg := range cmd.Args {
		if informational[arg] {
			return false
		}
	}
	sh := parser.ShellInvocation(cmd.Args)
	return sh.Interactive || (!sh.Inline && sh.Script == "")
}

func interactiveRules() []Rule {
	return []Rule{
		{
			ID:       "interactive-editor",
			Category: InteractiveProgram,
			Verdict:  Block,
			Message:  "interactive editors wait for keyboard input",
			Match:    executableIn("vim", "vi", "nvim", "view", "vimdiff", "nano", "emacs", "pico", "ed", "joe", "micro", "helix", "hx"),
			Suggest:  suggest("use the file edit tool, or sed -i for scripted edits"),
		},
		{
			ID:       "interactive-pager",
			Category: InteractiveProgram,
			Verdict:  Block,
			Message:  "pagers wait for keyboard input",
			Match:    executableIn("less", "more", "most", "pg"),
			Suggest:  suggest("use cat, head or tail"),
		},
		{
			ID:       "interactive-man",
			Category: InteractiveProgram,
			Verdict:  Block,
			Message:  "man opens a pager",
			Match:    executableIn("man"),
			Suggest: func(cmd parser.SubCommand) string {
				if pages := positionals(cmd.Args, nil); len(pages) > 0 {
					return "use " + quoteCommand(pages[len(pages)-1], "--help")
				}
				return "use the program's --help output"
			},
		},
		{
			ID:       "interactive-repl",
			Category: InteractiveProgram,
			Verdict:  Block,
			Message:  "interpreter started without a script or inline code opens an interactive session",
			Match:    isInteractiveREPL,
			Suggest: func(cmd parser.SubCommand) string {
				switch {
				case pythonName.MatchString(cmd.Executable) || cmd.Executable == "ipython":
					return "pass a script file or inline code with -c"
				case cmd.Executable == "node":
					return "pass a script file or inline code with -e"
				case cmd.Executable == "ghci":
					return "pass an expression with -e"
				}
				return "pass a script file"
			},
		},
		{
			ID:       "interactive-shell",
			Category: InteractiveProgram,
			Verdict:  Block,
			Message:  "shell started without a script or -c opens an interactive session",
			Match:    isInteractiveShell,
			Suggest: func(cmd parser.SubCommand) string {
				return "run the commands directly or use " + quoteCommand(cmd.Executable, "-c", "'...'")
			},
		},
	}
}
