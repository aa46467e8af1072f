package policy

import (
	"strings"

	"github.com/adrianpk/cmdguard/internal/parser"
)

// DefaultRules returns the built-in rule table in priority order.
func DefaultRules() []Rule {
	var rules []Rule
	rules = append(rules, privilegeRules()...)
	rules = append(rules, interactiveRules()...)
	rules = append(rules, packageManagerRules()...)
	rules = append(rules, versionControlRules()...)
	rules = append(rules, referenceRules()...)
	rules = append(rules, generatedFileRules(DefaultPathPolicy())...)
	return rules
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, item := range items {
		m[item] = true
	}
	return m
}

func executableIn(names ...string) func(parser.SubCommand) bool {
	known := set(names...)
	return func(cmd parser.SubCommand) bool {
		return known[cmd.Executable]
	}
}

// positionals returns the arguments that are not options, skipping the
// values of options listed in valueFlags. Everything after "--" is
// positional.
func positionals(args []string, valueFlags map[string]bool) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append(out, args[i+1:]...)
		case strings.HasPrefix(arg, "-") && arg != "-":
			if valueFlags[arg] {
				i++
			}
		default:
			out = append(out, arg)
		}
	}
	return out
}

func quoteCommand(words ...string) string {
	return "`" + strings.Join(words, " ") + "`"
}

func suggest(text string) func(parser.SubCommand) string {
	return func(parser.SubCommand) string {
		return text
	}
}
