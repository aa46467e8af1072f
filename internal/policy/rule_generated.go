package policy

import "github.com/adrianpk/cmdguard/internal/parser"

// lockFileRedirect returns the first output redirection of cmd that lands
// on a file protected by paths.
func lockFileRedirect(paths *PathPolicy, cmd parser.SubCommand) (string, PathRule, bool) {
	for _, r := range cmd.Redirects {
		if !r.Writes() {
			continue
		}
		if rule, ok := paths.Match(r.Target); ok {
			return r.Target, rule, true
		}
	}
	return "", PathRule{}, false
}

func generatedFileRules(paths *PathPolicy) []Rule {
	return []Rule{
		{
			ID:       "lock-file-redirect",
			Category: GeneratedFileWrite,
			Verdict:  Warn,
			Message:  "output is redirected into a generated lock file",
			Match: func(cmd parser.SubCommand) bool {
				_, _, ok := lockFileRedirect(paths, cmd)
				return ok
			},
			Suggest: func(cmd parser.SubCommand) string {
				target, rule, _ := lockFileRedirect(paths, cmd)
				return target + " should be regenerated with " + quoteCommand(rule.Advice)
			},
		},
	}
}
