// Package policy decides whether a shell command or an edit target is
// allowed.
package policy

// Verdict is the outcome of evaluating a command or a path.
type Verdict int

const (
	Allow Verdict = iota
	Warn
	Block
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Warn:
		return "warn"
	case Block:
		return "block"
	}
	return "unknown"
}

// Category groups rules. Categories are evaluated in declaration order.
type Category int

const (
	Uncategorized Category = iota
	PrivilegeEscalation
	InteractiveProgram
	PackageManager
	VersionControlWrite
	UnsafeReference
	GeneratedFileWrite
)

func (c Category) String() string {
	switch c {
	case PrivilegeEscalation:
		return "privilege-escalation"
	case InteractiveProgram:
		return "interactive-program"
	case PackageManager:
		return "package-manager"
	case VersionControlWrite:
		return "version-control-write"
	case UnsafeReference:
		return "unsafe-reference"
	case GeneratedFileWrite:
		return "generated-file-write"
	}
	return "uncategorized"
}

// Decision represents the result of evaluating a command or a path.
type Decision struct {
	Verdict Verdict
	Reason  string
	// Rule is the ID of the rule that decided, empty when nothing matched.
	Rule     string
	Category Category
	// Command is the sub-command or path the decision is about.
	Command string
}

// Allowed reports whether the caller may proceed.
func (d Decision) Allowed() bool {
	return d.Verdict != Block
}

// Aggregate folds per sub-command decisions into one. The most severe
// verdict wins; among equals the first one is kept.
func Aggregate(decisions []Decision) Decision {
	result := Decision{Verdict: Allow}
	for _, d := range decisions {
		if d.Verdict > result.Verdict {
			result = d
		}
	}
	return result
}
