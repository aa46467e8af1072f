package policy

import (
	"sort"
	"strings"
	"sync"

	"github.com/adrianpk/cmdguard/internal/parser"
)

// Rule IDs for decisions that come from the shape of the input rather than
// from a rule in the table.
const (
	RuleNestingDepth   = "nesting-depth"
	RuleAmbiguousInput = "ambiguous-input"
)

// Rule is one entry of the classification table.
type Rule struct {
	ID       string
	Category Category
	Verdict  Verdict
	// Message explains the verdict. It is prefixed with the executable.
	Message string
	Match   func(parser.SubCommand) bool
	// Except suppresses a match.
	Except func(parser.SubCommand) bool
	// Suggest returns the alternative to offer, if there is one.
	Suggest func(parser.SubCommand) string
}

func (r Rule) fires(cmd parser.SubCommand) bool {
	if r.Match == nil || !r.Match(cmd) {
		return false
	}
	return r.Except == nil || !r.Except(cmd)
}

func (r Rule) decide(cmd parser.SubCommand) Decision {
	reason := cmd.Executable + ": " + r.Message
	if r.Suggest != nil {
		if s := r.Suggest(cmd); s != "" {
			reason += "; " + s
		}
	}
	return Decision{
		Verdict:  r.Verdict,
		Reason:   reason,
		Rule:     r.ID,
		Category: r.Category,
		Command:  cmd.String(),
	}
}

// Classifier evaluates commands against an ordered rule table. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier over rules. Rules are ordered by
// category; within a category the given order is kept.
func NewClassifier(rules []Rule) *Classifier {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Category < sorted[j].Category
	})
	return &Classifier{rules: sorted}
}

var (
	defaultClassifier     *Classifier
	defaultClassifierOnce sync.Once
)

// DefaultClassifier returns the classifier over the built-in rule table.
func DefaultClassifier() *Classifier {
	defaultClassifierOnce.Do(func() {
		defaultClassifier = NewClassifier(DefaultRules())
	})
	return defaultClassifier
}

// Rules returns the table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// EvaluateSubCommand returns the decision of the first rule that fires for
// cmd, or Allow when none does.
func (c *Classifier) EvaluateSubCommand(cmd parser.SubCommand) Decision {
	for _, rule := range c.rules {
		if rule.fires(cmd) {
			return rule.decide(cmd)
		}
	}
	return Decision{Verdict: Allow, Command: cmd.String()}
}

// Finding is the decision reached for one sub-command.
type Finding struct {
	Command  parser.SubCommand
	Decision Decision
}

// Evaluation is the full account of how a command was classified.
type Evaluation struct {
	Decision Decision
	Findings []Finding
	Issues   []string
	TooDeep  bool
}

// Inspect decomposes command and classifies every sub-command.
func (c *Classifier) Inspect(command string) Evaluation {
	d := parser.Decompose(command)
	eval := Evaluation{Issues: d.Issues, TooDeep: d.TooDeep}

	var decisions []Decision
	if d.TooDeep {
		decisions = append(decisions, Decision{
			Verdict: Block,
			Reason:  "command too deeply nested to verify",
			Rule:    RuleNestingDepth,
			Command: command,
		})
	}
	if d.Ambiguous() {
		decisions = append(decisions, Decision{
			Verdict: Block,
			Reason:  "could not verify command safety: " + strings.Join(d.Issues, "; "),
			Rule:    RuleAmbiguousInput,
			Command: command,
		})
	}

	for _, cmd := range d.Commands {
		decision := c.EvaluateSubCommand(cmd)
		eval.Findings = append(eval.Findings, Finding{Command: cmd, Decision: decision})
		decisions = append(decisions, decision)
	}

	eval.Decision = Aggregate(decisions)
	return eval
}

// Evaluate returns the aggregated decision for command.
func (c *Classifier) Evaluate(command string) Decision {
	return c.Inspect(command).Decision
}
