package policy

import "sync"

// Engine is the entry point for hosts: one call before a command runs and
// one before a file is edited.
type Engine struct {
	classifier *Classifier
	paths      *PathPolicy
}

// NewEngine returns an engine over the given tables.
func NewEngine(classifier *Classifier, paths *PathPolicy) *Engine {
	return &Engine{classifier: classifier, paths: paths}
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// DefaultEngine returns the engine over the built-in tables.
func DefaultEngine() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine = NewEngine(DefaultClassifier(), DefaultPathPolicy())
	})
	return defaultEngine
}

// EvaluateCommand decides whether a shell command may run.
func (e *Engine) EvaluateCommand(command string) Decision {
	return e.classifier.Evaluate(command)
}

// InspectCommand classifies a shell command and keeps every per
// sub-command decision.
func (e *Engine) InspectCommand(command string) Evaluation {
	return e.classifier.Inspect(command)
}

// EvaluatePath decides whether a file may be written.
func (e *Engine) EvaluatePath(target string) Decision {
	return e.paths.Evaluate(target)
}

// Rules returns the command rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.classifier.Rules()
}

// PathRules returns the path rules.
func (e *Engine) PathRules() []PathRule {
	return e.paths.Rules()
}
