package script

import "context"

// FeelRuntime evaluates FEEL expressions, used for kpi evaluation.
type FeelRuntime interface {
	UnaryTest(expression string, variableContext map[string]any) (bool, error)
	Evaluate(expression string, variableContext map[string]any) (any, error)
}

// JsRuntime runs the pre and post condition scripts of artifact definitions.
// Variables are exposed as globals for the duration of one run.
type JsRuntime interface {
	RunScript(ctx context.Context, script string, variables map[string]any) (any, error)
}
