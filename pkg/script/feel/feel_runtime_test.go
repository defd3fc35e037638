package feel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnaryTestComparesScopeValues(t *testing.T) {
	runtime := NewFeelRuntime()

	ok, err := runtime.UnaryTest("elapsed <= threshold", map[string]any{
		"elapsed":   30,
		"threshold": 3600,
	})
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = runtime.UnaryTest("elapsed <= threshold", map[string]any{
		"elapsed":   7200,
		"threshold": 3600,
	})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestUnaryTestRejectsNonBooleanResult(t *testing.T) {
	runtime := NewFeelRuntime()

	_, err := runtime.UnaryTest(`"level"`, nil)
	assert.Error(t, err)
}
