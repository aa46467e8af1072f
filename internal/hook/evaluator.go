// Package hook turns Claude Code tool-use payloads into policy decisions.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/adrianpk/cmdguard/internal/policy"
)

// Exit codes understood by the host.
const (
	ExitAllow = 0
	ExitError = 1
	ExitBlock = 2
)

// Input represents the hook input from Claude Code.
type Input struct {
	HookType      string                 `json:"hook_type"`
	HookEventName string                 `json:"hook_event_name"`
	ToolName      string                 `json:"tool_name"`
	ToolInput     map[string]interface{} `json:"tool_input"`
	SessionID     string                 `json:"session_id"`
	Cwd           string                 `json:"cwd"`
}

// Event returns the hook event name, whichever field carried it.
func (in Input) Event() string {
	if in.HookEventName != "" {
		return in.HookEventName
	}
	return in.HookType
}

// Decode reads one hook payload.
func Decode(r io.Reader) (Input, error) {
	var in Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return Input{}, fmt.Errorf("cannot decode hook input: %w", err)
	}
	return in, nil
}

// Result represents the evaluation result.
type Result struct {
	ID       string
	Tool     string
	Subject  string
	Decision policy.Decision
}

// Allowed reports whether the tool call may proceed.
func (r Result) Allowed() bool {
	return r.Decision.Allowed()
}

type output struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Respond writes r the way the host expects and returns the exit code.
// A blocked call only writes its reason to stderr.
func Respond(r Result, stdout, stderr io.Writer) int {
	if !r.Allowed() {
		fmt.Fprintln(stderr, r.Decision.Reason)
		return ExitBlock
	}
	out := output{Decision: "allow"}
	if r.Decision.Verdict == policy.Warn {
		out.Reason = r.Decision.Reason
	}
	if err := json.NewEncoder(stdout).Encode(out); err != nil {
		fmt.Fprintf(stderr, "cannot write hook output: %v\n", err)
		return ExitError
	}
	return ExitAllow
}

// Evaluator routes tool calls to the policy engine.
type Evaluator struct {
	engine *policy.Engine
	logger *slog.Logger
	newID  func() string
}

// NewEvaluator creates a new hook evaluator. A nil logger discards logs.
func NewEvaluator(engine *policy.Engine, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Evaluator{
		engine: engine,
		logger: logger,
		newID:  func() string { return ulid.Make().String() },
	}
}

// Evaluate processes the hook input and returns a result.
func (e *Evaluator) Evaluate(input Input) Result {
	subject, decision := e.decide(input)
	result := Result{
		ID:       e.newID(),
		Tool:     input.ToolName,
		Subject:  subject,
		Decision: decision,
	}
	e.log(input, result)
	return result
}

func (e *Evaluator) decide(input Input) (string, policy.Decision) {
	switch input.ToolName {
	case "Bash":
		cmd, ok := input.ToolInput["command"].(string)
		if !ok {
			return "", policy.Decision{
				Verdict: policy.Block,
				Reason:  "could not verify command safety: tool input has no command",
				Rule:    policy.RuleAmbiguousInput,
			}
		}
		return cmd, e.engine.EvaluateCommand(cmd)
	case "Write", "Edit", "MultiEdit":
		target, _ := input.ToolInput["file_path"].(string)
		return target, e.engine.EvaluatePath(target)
	case "NotebookEdit":
		target, _ := input.ToolInput["notebook_path"].(string)
		return target, e.engine.EvaluatePath(target)
	}
	return "", policy.Decision{Verdict: policy.Allow}
}

func (e *Evaluator) log(input Input, r Result) {
	level := slog.LevelDebug
	switch r.Decision.Verdict {
	case policy.Block:
		level = slog.LevelWarn
	case policy.Warn:
		level = slog.LevelInfo
	}

	attrs := []any{
		"decision_id", r.ID,
		"verdict", r.Decision.Verdict.String(),
		"tool", r.Tool,
		"event", input.Event(),
	}
	if r.Subject != "" {
		attrs = append(attrs, "subject", r.Subject)
	}
	if r.Decision.Rule != "" {
		attrs = append(attrs, "rule", r.Decision.Rule, "category", r.Decision.Category.String())
	}
	if r.Decision.Reason != "" {
		attrs = append(attrs, "reason", r.Decision.Reason)
	}
	if input.SessionID != "" {
		attrs = append(attrs, "session_id", input.SessionID)
	}
	if input.Cwd != "" {
		attrs = append(attrs, "cwd", input.Cwd)
	}
	e.logger.Log(context.Background(), level, "hook decision", attrs...)
}
