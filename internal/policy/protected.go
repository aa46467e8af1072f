package policy

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// ErrInvalidPathPattern is returned when a path rule pattern does not compile.
var ErrInvalidPathPattern = errors.New("invalid path pattern")

// RuleLockFile is the rule ID of path decisions.
const RuleLockFile = "lock-file"

// PathRule protects files by name in any directory.
type PathRule struct {
	// Pattern is matched against the last path segment.
	Pattern string
	// Advice is the command that regenerates the file.
	Advice string
}

// lockFiles are generated by package managers and never edited by hand.
var lockFiles = []PathRule{
	{Pattern: "package-lock.json", Advice: "bun install"},
	{Pattern: "bun.lockb", Advice: "bun install"},
	{Pattern: "yarn.lock", Advice: "yarn install"},
	{Pattern: "pnpm-lock.yaml", Advice: "pnpm install"},
	{Pattern: "poetry.lock", Advice: "poetry lock"},
	{Pattern: "uv.lock", Advice: "uv lock"},
	{Pattern: "Cargo.lock", Advice: "cargo update"},
	{Pattern: "Gemfile.lock", Advice: "bundle install"},
	{Pattern: "flake.lock", Advice: "nix flake update"},
}

type pathMatcher struct {
	rule PathRule
	glob glob.Glob
}

// PathPolicy decides whether a file may be written by an edit tool.
type PathPolicy struct {
	matchers []pathMatcher
}

// NewPathPolicy compiles rules. Patterns use glob syntax and match the
// final path segment only.
func NewPathPolicy(rules []PathRule) (*PathPolicy, error) {
	p := &PathPolicy{matchers: make([]pathMatcher, 0, len(rules))}
	for _, rule := range rules {
		g, err := glob.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPathPattern, rule.Pattern, err)
		}
		p.matchers = append(p.matchers, pathMatcher{rule: rule, glob: g})
	}
	return p, nil
}

var (
	defaultPathPolicy     *PathPolicy
	defaultPathPolicyOnce sync.Once
)

// DefaultPathPolicy returns the policy over the built-in lock file table.
func DefaultPathPolicy() *PathPolicy {
	defaultPathPolicyOnce.Do(func() {
		p, err := NewPathPolicy(lockFiles)
		if err != nil {
			panic(err)
		}
		defaultPathPolicy = p
	})
	return defaultPathPolicy
}

// Rules returns the rules in match order.
func (p *PathPolicy) Rules() []PathRule {
	rules := make([]PathRule, 0, len(p.matchers))
	for _, m := range p.matchers {
		rules = append(rules, m.rule)
	}
	return rules
}

// Match returns the first rule whose pattern matches the file name of target.
// Both / and \ separate segments.
func (p *PathPolicy) Match(target string) (PathRule, bool) {
	if target == "" {
		return PathRule{}, false
	}
	name := path.Base(strings.ReplaceAll(target, `\`, "/"))
	for _, m := range p.matchers {
		if m.glob.Match(name) {
			return m.rule, true
		}
	}
	return PathRule{}, false
}

// Evaluate decides whether target may be edited.
func (p *PathPolicy) Evaluate(target string) Decision {
	rule, ok := p.Match(target)
	if !ok {
		return Decision{Verdict: Allow, Command: target}
	}
	return Decision{
		Verdict:  Block,
		Reason:   lockFileReason(path.Base(strings.ReplaceAll(target, `\`, "/")), rule),
		Rule:     RuleLockFile,
		Category: GeneratedFileWrite,
		Command:  target,
	}
}

func lockFileReason(name string, rule PathRule) string {
	return name + " is generated and must not be edited by hand; run " + quoteCommand(rule.Advice) + " to regenerate it"
}
