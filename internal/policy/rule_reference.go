package policy

import (
	"strings"

	"github.com/adrianpk/cmdguard/internal/parser"
)

// pinnedSchemes mark a flake reference whose source is explicit.
var pinnedSchemes = []string{"path:", "github:", "git+https://", "git+ssh://"}

var nixBuilders = set("run", "build", "shell", "develop")

// unsafeFlakeRef reports whether ref is a bare filesystem path.
func unsafeFlakeRef(ref string) bool {
	if !strings.Contains(ref, "/") && !strings.HasPrefix(ref, ".") {
		return false
	}
	for _, scheme := range pinnedSchemes {
		if strings.HasPrefix(ref, scheme) {
			return false
		}
	}
	return true
}

// nixInstallables returns the flake references a nix command builds.
func nixInstallables(args []string) []string {
	n := parser.NixInvocation(args)
	if !nixBuilders[n.Subcommand] || len(n.Operands) == 0 {
		return nil
	}
	if n.Subcommand == "run" {
		// later operands are arguments for the program
		return n.Operands[:1]
	}
	return n.Operands
}

func unsafeNixRef(cmd parser.SubCommand) string {
	if cmd.Executable != "nix" {
		return ""
	}
	for _, ref := range nixInstallables(cmd.Args) {
		if unsafeFlakeRef(ref) {
			return ref
		}
	}
	return ""
}

func referenceRules() []Rule {
	return []Rule{
		{
			ID:       "nix-bare-path",
			Category: UnsafeReference,
			Verdict:  Block,
			Message:  "flake references to bare paths are not allowed",
			Match: func(cmd parser.SubCommand) bool {
				return unsafeNixRef(cmd) != ""
			},
			Suggest: func(cmd parser.SubCommand) string {
				return "use " + quoteCommand("path:"+unsafeNixRef(cmd)) + " or a github: reference"
			},
		},
	}
}
