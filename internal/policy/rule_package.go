package policy

import (
	"path"
	"regexp"
	"strings"

	"github.com/adrianpk/cmdguard/internal/parser"
)

var venvInterpreter = regexp.MustCompile(`^python[23]?(\.[0-9]+)?$`)

// venvDirs are the directory names virtual environments are created under.
var venvDirs = set(".venv", "venv", "env")

// inVirtualEnv reports whether cmd runs a python interpreter from a
// virtual environment's bin directory.
func inVirtualEnv(cmd parser.SubCommand) bool {
	if !venvInterpreter.MatchString(cmd.Executable) {
		return false
	}
	segments := strings.Split(path.Clean(strings.ReplaceAll(cmd.Path, `\`, "/")), "/")
	n := len(segments)
	return n >= 3 && segments[n-2] == "bin" && venvDirs[segments[n-3]]
}

// pipValueFlags are pip's global options that take a value.
var pipValueFlags = set(
	"--python", "--log", "--proxy", "--retries", "--timeout", "--exists-action",
	"--trusted-host", "--cert", "--client-cert", "--cache-dir", "--keyring-provider",
	"--use-feature", "--use-deprecated", "--progress-bar",
)

var (
	isPip       = executableIn("pip", "pip2", "pip3")
	pipInstalls = set("install", "uninstall", "download", "wheel")
)

func pipSubcommand(args []string) string {
	if p := positionals(args, pipValueFlags); len(p) > 0 {
		return p[0]
	}
	return ""
}

// pythonModule returns the module given to python -m, if any.
func pythonModule(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--" || arg == "-" || !strings.HasPrefix(arg, "-"):
			return ""
		case arg == "-m":
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		case pythonREPL.valueFlags[arg]:
			i++
		case len(arg) > 2 && arg[1] != '-':
			for j := 1; j < len(arg); j++ {
				switch arg[j] {
				case 'c':
					return ""
				case 'm':
					if j+1 < len(arg) {
						return arg[j+1:]
					}
					if i+1 < len(args) {
						return args[i+1]
					}
					return ""
				case 'W', 'X':
					if j == len(arg)-1 {
						i++
					}
					j = len(arg)
				}
			}
		}
	}
	return ""
}

// npmReplacements maps npm subcommands to their bun equivalents.
var npmReplacements = map[string]string{
	"install":   "bun install",
	"i":         "bun install",
	"add":       "bun add",
	"ci":        "bun install --frozen-lockfile",
	"test":      "bun test",
	"t":         "bun test",
	"uninstall": "bun remove",
	"remove":    "bun remove",
	"rm":        "bun remove",
	"un":        "bun remove",
	"update":    "bun update",
	"exec":      "bunx",
	"x":         "bunx",
}

func npmSuggestion(cmd parser.SubCommand) string {
	args := positionals(cmd.Args, set("--prefix", "-C", "--workspace", "-w"))
	if cmd.Executable == "npx" {
		return "use " + quoteCommand(append([]string{"bunx"}, cmd.Args...)...)
	}
	if len(args) == 0 {
		return "use bun"
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "run", "run-script":
		return "use " + quoteCommand(append([]string{"bun", "run"}, rest...)...)
	case "start":
		return "use " + quoteCommand("bun", "run", "start")
	}
	if replacement, ok := npmReplacements[sub]; ok {
		return "use " + quoteCommand(append([]string{replacement}, rest...)...)
	}
	return "use the bun equivalent of " + quoteCommand("npm", sub)
}

func packageManagerRules() []Rule {
	return []Rule{
		{
			ID:       "venv-interpreter",
			Category: PackageManager,
			Verdict:  Allow,
			Message:  "runs from a virtual environment",
			Match:    inVirtualEnv,
		},
		{
			ID:       "node-runtime",
			Category: PackageManager,
			Verdict:  Block,
			Message:  "the node runtime is not used in this environment",
			Match:    executableIn("node"),
			Suggest: func(cmd parser.SubCommand) string {
				return "use " + quoteCommand(append([]string{"bun"}, cmd.Args...)...)
			},
		},
		{
			ID:       "npm",
			Category: PackageManager,
			Verdict:  Block,
			Message:  "this package manager is not used in this environment",
			Match:    executableIn("npm", "npx"),
			Suggest:  npmSuggestion,
		},
		{
			ID:       "pip-install",
			Category: PackageManager,
			Verdict:  Block,
			Message:  "installing packages with pip is not allowed",
			Match: func(cmd parser.SubCommand) bool {
				return isPip(cmd) && pipInstalls[pipSubcommand(cmd.Args)]
			},
			Suggest: func(cmd parser.SubCommand) string {
				sub := pipSubcommand(cmd.Args)
				if sub == "install" || sub == "uninstall" {
					return "use " + quoteCommand("uv", "pip", sub) + " or " + quoteCommand("uv", "add")
				}
				return "use uv"
			},
		},
		{
			ID:       "python-pip-module",
			Category: PackageManager,
			Verdict:  Block,
			Message:  "installing packages with pip is not allowed",
			Match: func(cmd parser.SubCommand) bool {
				if !pythonName.MatchString(cmd.Executable) {
					return false
				}
				module := pythonModule(cmd.Args)
				return module == "pip" || module == "ensurepip"
			},
			Suggest: suggest("use uv"),
		},
	}
}
