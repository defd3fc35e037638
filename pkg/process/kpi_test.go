package process

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_threshold_value(t *testing.T) {
	reference := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 3600.0, thresholdValue("PT1H", reference))
	assert.Equal(t, 86400.0, thresholdValue("P1D", reference))
	assert.Equal(t, 31*86400.0, thresholdValue("P1M", reference))
	assert.Equal(t, 12.5, thresholdValue("12.5", reference))
	assert.Equal(t, "gold", thresholdValue("gold", reference))
	assert.Equal(t, "Pending", thresholdValue("Pending", reference))
}

func Test_activity_kpi_without_artifact_is_not_evaluated(t *testing.T) {
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "1", "order", "")
	require.NoError(t, err)

	results, err := engine.EvaluateActivityKpis(t.Context(), pi.Key, "2")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "reservation-time", results[0].Kpi.Name)
	assert.Empty(t, results[0].Level)
	assert.Equal(t, 0, results[0].ComplianceLevel)
}

func Test_activity_kpi_meets_first_threshold(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "1", "order", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", attachment("customer=acme"))
	pi = commit(t, engine, pi.Key, "2", attachment("rack 4"))

	// when
	results, err := engine.EvaluateActivityKpis(t.Context(), pi.Key, "2")

	// then
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fast", results[0].Level)
	assert.Equal(t, 2, results[0].ComplianceLevel)
	assert.Less(t, results[0].Value, 3600.0)

	none, err := engine.EvaluateActivityKpis(t.Context(), pi.Key, "3")
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func Test_process_kpi(t *testing.T) {
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "1", "order", "")
	require.NoError(t, err)

	results, err := engine.EvaluateProcessKpis(t.Context(), pi.Key)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "provisioning-time", results[0].Kpi.Name)
	assert.Equal(t, "on-time", results[0].Level)
	assert.Equal(t, 2, results[0].ComplianceLevel)

	_, err = engine.EvaluateProcessKpis(t.Context(), -1)
	assert.ErrorIs(t, err, ErrProcessInstanceNotFound)
}

type failingFeelRuntime struct{}

func (failingFeelRuntime) Evaluate(expression string, variableContext map[string]any) (any, error) {
	return nil, errors.New("no feel today")
}

func (f failingFeelRuntime) UnaryTest(expression string, variableContext map[string]any) (bool, error) {
	_, err := f.Evaluate(expression, variableContext)
	return false, err
}

func Test_kpi_evaluation_error_is_returned(t *testing.T) {
	engine, _ := newTestEngine(t, WithFeelRuntime(failingFeelRuntime{}))
	pi, err := engine.CreateProcessInstance(t.Context(), "1", "order", "")
	require.NoError(t, err)

	_, err = engine.EvaluateProcessKpis(t.Context(), pi.Key)

	assert.ErrorContains(t, err, "no feel today")
	assert.ErrorContains(t, err, "provisioning-time")
}
