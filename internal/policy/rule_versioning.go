package policy

import (
	"strings"

	"github.com/adrianpk/cmdguard/internal/parser"
)

// gitValueOptions are global options that take the following argument.
var gitValueOptions = set(
	"-C", "-c", "--git-dir", "--work-tree", "--namespace", "--config-env",
	"--super-prefix", "--list-cmds", "--attr-source",
)

// gitInvocation is a git command line split at its subcommand.
type gitInvocation struct {
	Subcommand string
	Args       []string
	// ConfigKeys are the lower-cased keys set with -c.
	ConfigKeys []string
	// Overrides names global options that point git at other programs.
	Overrides []string
}

func parseGit(args []string) gitInvocation {
	var g gitInvocation
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, attached := strings.Cut(arg, "=")
		switch {
		case arg == "-c":
			if i+1 < len(args) {
				key, _, _ := strings.Cut(args[i+1], "=")
				g.ConfigKeys = append(g.ConfigKeys, strings.ToLower(key))
			}
			i++
		case strings.HasPrefix(arg, "-c") && len(arg) > 2:
			key, _, _ := strings.Cut(arg[2:], "=")
			g.ConfigKeys = append(g.ConfigKeys, strings.ToLower(key))
		case name == "--config-env":
			g.Overrides = append(g.Overrides, name)
			if !attached {
				i++
			}
		case name == "--exec-path" && attached && value != "":
			g.Overrides = append(g.Overrides, name)
		case gitValueOptions[arg]:
			i++
		case strings.HasPrefix(arg, "-"):
		default:
			g.Subcommand = arg
			g.Args = args[i+1:]
			return g
		}
	}
	return g
}

// gitProgramKeys are configuration keys whose value git runs as a program.
var gitProgramKeys = set(
	"core.pager", "core.editor", "core.sshcommand", "core.fsmonitor",
	"core.hookspath", "core.gitproxy", "core.askpass", "diff.external",
	"sequence.editor", "credential.helper", "gpg.program", "gpg.ssh.program",
	"gpg.x509.program", "gpg.openpgp.program", "uploadpack.packobjectshook",
	"ssh.variant", "web.browser", "init.templatedir",
)

// gitProgramSuffixes match keys of the form section.<name>.key.
var gitProgramSuffixes = []string{
	".clean", ".smudge", ".process", ".textconv", ".command", ".cmd",
	".driver", ".helper", ".uploadpack", ".receivepack", ".proxy",
}

func isGitProgramKey(key string) bool {
	if gitProgramKeys[key] || strings.HasPrefix(key, "alias.") || strings.HasPrefix(key, "pager.") {
		return true
	}
	if strings.Count(key, ".") < 2 {
		return false
	}
	for _, suffix := range gitProgramSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

func (g gitInvocation) programOverride() string {
	for _, key := range g.ConfigKeys {
		if isGitProgramKey(key) {
			return key
		}
	}
	if len(g.Overrides) > 0 {
		return g.Overrides[0]
	}
	return ""
}

var gitReadOnly = set("status", "diff", "show", "log")

// gitListingFlags only change how branches and remotes are listed.
var gitListingFlags = map[string]map[string]bool{
	"branch": set("-a", "-r", "-v", "-vv", "-l", "--list", "--all", "--remotes", "--show-current", "--verbose", "--no-color", "--color"),
	"remote": set("-v", "--verbose"),
}

func (g gitInvocation) readOnly() bool {
	// git without a subcommand only prints usage, or the version with
	// --version, and changes nothing.
	if g.Subcommand == "" || gitReadOnly[g.Subcommand] {
		return true
	}
	flags, ok := gitListingFlags[g.Subcommand]
	if !ok {
		return false
	}
	for _, arg := range g.Args {
		if !flags[arg] {
			return false
		}
	}
	return true
}

func isGit(cmd parser.SubCommand) bool {
	return cmd.Executable == "git"
}

func versionControlRules() []Rule {
	return []Rule{
		{
			ID:       "git-config-override",
			Category: VersionControlWrite,
			Verdict:  Block,
			Message:  "overriding git configuration that runs programs is not allowed",
			Match: func(cmd parser.SubCommand) bool {
				return isGit(cmd) && parseGit(cmd.Args).programOverride() != ""
			},
			Suggest: func(cmd parser.SubCommand) string {
				return "drop the " + parseGit(cmd.Args).programOverride() + " override"
			},
		},
		{
			ID:       "git-read-only",
			Category: VersionControlWrite,
			Verdict:  Allow,
			Message:  "read-only git command",
			Match: func(cmd parser.SubCommand) bool {
				return isGit(cmd) && parseGit(cmd.Args).readOnly()
			},
		},
		{
			ID:       "git-write",
			Category: VersionControlWrite,
			Verdict:  Block,
			Message:  "git commands that change the repository are not allowed",
			Match:    isGit,
			Suggest: func(cmd parser.SubCommand) string {
				return "ask the user to run " + quoteCommand("git", parseGit(cmd.Args).Subcommand) + "; read-only status, diff, show and log are allowed"
			},
		},
	}
}
