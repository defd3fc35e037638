package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_parse_activity_type_accepts_names_and_codes(t *testing.T) {
	cases := map[string]ActivityType{
		"":            ActivityTypeNormal,
		"normal":      ActivityTypeNormal,
		"START":       ActivityTypeStart,
		"3":           ActivityTypeEnd,
		"Conditional": ActivityTypeConditional,
		"5":           ActivityTypeParallel,
	}
	for in, expected := range cases {
		actual, ok := ParseActivityType(in)
		assert.True(t, ok, in)
		assert.Equal(t, expected, actual, in)
	}
	_, ok := ParseActivityType("gateway")
	assert.False(t, ok)
}

func Test_kind_follows_type(t *testing.T) {
	assert.Equal(t, KindSimple, (&ActivityDefinition{Type: ActivityTypeEnd}).Kind())
	assert.Equal(t, KindConditional, (&ActivityDefinition{Type: ActivityTypeConditional}).Kind())
	assert.Equal(t, KindParallel, (&ActivityDefinition{Type: ActivityTypeParallel}).Kind())
}

func Test_successors_per_variant(t *testing.T) {
	// given
	simple := &ActivityDefinition{Type: ActivityTypeNormal, NextActivityId: "2"}
	conditional := &ActivityDefinition{Type: ActivityTypeConditional, Conditional: &ConditionalBranch{IfTrueActivityId: "3", IfFalseActivityId: "4"}}
	skipped := &ActivityDefinition{Type: ActivityTypeConditional, Conditional: &ConditionalBranch{}}
	fork := &ActivityDefinition{Type: ActivityTypeParallel, Parallel: &ParallelFlow{SequenceFlow: SequenceFlowFork, Paths: []string{"5", "6"}}}
	end := &ActivityDefinition{Type: ActivityTypeEnd}

	// then
	assert.Equal(t, []string{"2"}, simple.Successors())
	assert.Equal(t, []string{"3", "4"}, conditional.Successors())
	assert.Empty(t, skipped.Successors())
	assert.Equal(t, []string{"5", "6"}, fork.Successors())
	assert.Empty(t, end.Successors())
	assert.True(t, fork.IsFork())
	assert.False(t, fork.IsJoin())
	assert.True(t, end.IsEnd())
}

func Test_find_activity_by_artifact_definition(t *testing.T) {
	pd := ProcessDefinition{
		Activities: map[string]*ActivityDefinition{
			"1": {Id: "1", ArtifactDefinition: &ArtifactDefinition{Id: "a1"}},
			"2": {Id: "2"},
		},
	}

	assert.Equal(t, "1", pd.FindActivityByArtifactDefinition("a1").Id)
	assert.Nil(t, pd.FindActivityByArtifactDefinition("a2"))
	assert.Nil(t, pd.Activity(""))
}
