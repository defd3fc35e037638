package feel

import (
	"fmt"
	"strconv"

	"github.com/indigo423/kuwaiba-sub029/pkg/script"
	"github.com/pbinitiative/feel"
)

// FeelRuntime evaluates FEEL expressions, it keeps no state between evaluations.
type FeelRuntime struct {
}

var _ script.FeelRuntime = &FeelRuntime{}

func NewFeelRuntime() *FeelRuntime {
	return &FeelRuntime{}
}

func (r *FeelRuntime) Evaluate(expression string, variableContext map[string]any) (any, error) {
	scope := make(map[string]any, len(variableContext))
	for name, value := range variableContext {
		scope[name] = castNumber(value)
	}
	result, err := feel.EvalStringWithScope(expression, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression \"%s\": %w", expression, err)
	}
	return result, nil
}

// UnaryTest evaluates the expression and requires a boolean result.
func (r *FeelRuntime) UnaryTest(expression string, variableContext map[string]any) (bool, error) {
	result, err := r.Evaluate(expression, variableContext)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression \"%s\" evaluated to %v (%T), expected a boolean", expression, result, result)
	}
	return b, nil
}

// castNumber turns go numbers into feel numbers by evaluating their literal
func castNumber(value any) any {
	var literal string
	switch v := value.(type) {
	case int:
		literal = strconv.Itoa(v)
	case int64:
		literal = strconv.FormatInt(v, 10)
	case float64:
		literal = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return value
	}
	result, err := feel.EvalString(literal)
	if err != nil {
		return value
	}
	return result
}
