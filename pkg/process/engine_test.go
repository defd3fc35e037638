package process

import (
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine runs an engine on a copy of testdata so imports and deletes do not touch the fixtures.
func newTestEngine(t *testing.T, options ...EngineOption) (*Engine, string) {
	dir := t.TempDir()
	require.NoError(t, os.CopyFS(dir, os.DirFS("testdata")))
	engine, err := NewEngine(t.Context(), append([]EngineOption{WithProcessEnginePath(dir)}, options...)...)
	require.NoError(t, err)
	require.NoError(t, engine.Start(t.Context()))
	return engine, dir
}

func attachment(content string) *runtime.Artifact {
	return &runtime.Artifact{
		ContentType: "text/plain",
		Content:     []byte(content),
	}
}

func decision(value bool) *runtime.Artifact {
	v := "false"
	if value {
		v = "true"
	}
	return &runtime.Artifact{
		ContentType: "text/xml",
		Content:     []byte("<artifact><value>" + v + "</value></artifact>"),
	}
}

func activityIds(activities []*model.ActivityDefinition) []string {
	ids := make([]string, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.Id)
	}
	return ids
}

func commit(t *testing.T, engine *Engine, key int64, activityId string, artifact *runtime.Artifact) runtime.ProcessInstance {
	pi, err := engine.CommitActivity(t.Context(), key, activityId, artifact)
	require.NoError(t, err)
	return pi
}

func Test_create_instance_starts_at_start_activity(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)

	// when
	pi, err := engine.CreateProcessInstance(t.Context(), "1", "order 42", "fiber to the home")

	// then
	require.NoError(t, err)
	assert.NotZero(t, pi.Key)
	assert.Equal(t, "1", pi.CurrentActivityId)
	assert.Equal(t, runtime.ProcessInstanceStateActive, pi.State)
	assert.Contains(t, string(pi.ArtifactsContent), "<processInstance>")

	current, err := engine.GetCurrentActivity(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, "Register order", current.Name)

	stored, err := engine.GetProcessInstance(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, "order 42", stored.Name)
}

func Test_linear_instance_completes_at_end(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "1", "order", "")
	require.NoError(t, err)

	// when
	pi = commit(t, engine, pi.Key, "1", attachment("customer=acme"))
	assert.Equal(t, "2", pi.CurrentActivityId)
	pi = commit(t, engine, pi.Key, "2", attachment("rack 4"))
	assert.Equal(t, "3", pi.CurrentActivityId)
	pi = commit(t, engine, pi.Key, "3", nil)
	assert.Equal(t, "4", pi.CurrentActivityId)
	assert.Equal(t, runtime.ProcessInstanceStateActive, pi.State)
	pi = commit(t, engine, pi.Key, "4", nil)

	// then
	assert.Equal(t, runtime.ProcessInstanceStateCompleted, pi.State)
	next, err := engine.GetNextActivityForProcessInstance(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, "4", next.Id)

	_, err = engine.CommitActivity(t.Context(), pi.Key, "4", nil)
	assert.ErrorIs(t, err, ErrProcessInstanceCompleted)

	path, err := engine.GetProcessInstanceActivitiesPath(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, activityIds(path))
}

func Test_commit_requires_artifact(t *testing.T) {
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "1", "order", "")
	require.NoError(t, err)

	_, err = engine.CommitActivity(t.Context(), pi.Key, "1", nil)

	assert.ErrorIs(t, err, ErrArtifactRequired)
}

func Test_commit_of_other_activity_fails_without_mutation(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "1", "order", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", attachment("customer=acme"))

	// when
	_, err = engine.CommitActivity(t.Context(), pi.Key, "3", attachment("too early"))

	// then
	var notCurrent *ActivityNotCurrentError
	require.True(t, errors.As(err, &notCurrent))
	assert.Equal(t, "3", notCurrent.ActivityId)
	assert.Equal(t, "2", notCurrent.CurrentActivityId)

	after, err := engine.GetProcessInstance(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, pi, after)
	_, err = engine.GetArtifactForActivity(t.Context(), pi.Key, "2")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func Test_conditional_true_leads_to_first_path(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "conditional", "change", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", attachment("swap line card"))

	// when
	_, err = engine.UpdateActivity(t.Context(), pi.Key, "2", *decision(true))
	require.NoError(t, err)
	next, err := engine.GetNextActivityForProcessInstance(t.Context(), pi.Key)

	// then
	assert.NoError(t, err)
	assert.Equal(t, "3", next.Id)

	pi = commit(t, engine, pi.Key, "2", decision(true))
	assert.Equal(t, "3", pi.CurrentActivityId)
}

func Test_conditional_without_value_leads_to_second_path(t *testing.T) {
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "conditional", "change", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", attachment("swap line card"))

	next, err := engine.GetNextActivityForProcessInstance(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, "4", next.Id)

	pi = commit(t, engine, pi.Key, "2", attachment("not xml at all"))
	assert.Equal(t, "4", pi.CurrentActivityId)
}

func Test_conditional_true_into_fork_resolves_to_join(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "gated", "rollout", "")
	require.NoError(t, err)
	budget := attachment("50k")
	budget.SharedInformation = []runtime.StringPair{{Key: "amount", Value: "50000"}}
	pi = commit(t, engine, pi.Key, "1", budget)

	// when
	pi = commit(t, engine, pi.Key, "2", decision(true))

	// then
	assert.Equal(t, "6", pi.CurrentActivityId)
	path, err := engine.GetProcessInstanceActivitiesPath(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, activityIds(path))
}

func Test_fork_returns_join_and_join_returns_first_path(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)

	// when
	join, err := engine.GetNextActivityToParallelActivity(t.Context(), "parallel", "2")

	// then
	require.NoError(t, err)
	assert.Equal(t, "5", join.Id)

	pi, err := engine.CreateProcessInstance(t.Context(), "parallel", "site 17", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", nil)
	assert.Equal(t, "5", pi.CurrentActivityId)

	next, err := engine.GetNextActivityForProcessInstance(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, "6", next.Id)

	_, err = engine.GetNextActivityToParallelActivity(t.Context(), "parallel", "3")
	assert.ErrorIs(t, err, ErrJoinNotFound)
}

func Test_parallel_branches_are_recorded_by_update(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "parallel", "site 17", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", nil)

	// when
	_, err = engine.UpdateActivity(t.Context(), pi.Key, "3", *attachment("power ok"))
	require.NoError(t, err)
	_, err = engine.UpdateActivity(t.Context(), pi.Key, "4", *attachment("rack ok"))
	require.NoError(t, err)

	// then
	path, err := engine.GetProcessInstanceActivitiesPath(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, activityIds(path))
	power, err := engine.GetArtifactForActivity(t.Context(), pi.Key, "3")
	assert.NoError(t, err)
	assert.Equal(t, []byte("power ok"), power.Content)
	_, interrupted := power.SharedValue(InterruptedShareKey)
	assert.False(t, interrupted)

	pi = commit(t, engine, pi.Key, "5", nil)
	assert.Equal(t, "6", pi.CurrentActivityId)
}

func Test_activities_path_is_idempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "conditional", "change", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", attachment("swap line card"))
	pi = commit(t, engine, pi.Key, "2", decision(false))

	first, err := engine.GetProcessInstanceActivitiesPath(t.Context(), pi.Key)
	require.NoError(t, err)
	second, err := engine.GetProcessInstanceActivitiesPath(t.Context(), pi.Key)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"1", "2", "4"}, activityIds(first))
}

func Test_changed_conditional_rewinds_and_interrupts_branch(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "conditional", "change", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", attachment("swap line card"))
	pi = commit(t, engine, pi.Key, "2", decision(true))
	pi = commit(t, engine, pi.Key, "3", attachment("card swapped"))
	assert.Equal(t, "5", pi.CurrentActivityId)

	// when
	pi, err = engine.UpdateActivity(t.Context(), pi.Key, "2", *decision(false))

	// then
	require.NoError(t, err)
	assert.Equal(t, "2", pi.CurrentActivityId)
	change, err := engine.GetArtifactForActivity(t.Context(), pi.Key, "3")
	assert.NoError(t, err)
	marker, ok := change.SharedValue(InterruptedShareKey)
	assert.True(t, ok)
	assert.Equal(t, "true", marker)
	assert.Contains(t, string(pi.ArtifactsContent), InterruptedShareKey)

	pi = commit(t, engine, pi.Key, "2", decision(false))
	assert.Equal(t, "4", pi.CurrentActivityId)
}

func Test_unchanged_conditional_does_not_rewind(t *testing.T) {
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "conditional", "change", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", attachment("swap line card"))
	pi = commit(t, engine, pi.Key, "2", decision(true))

	pi, err = engine.UpdateActivity(t.Context(), pi.Key, "2", *decision(true))

	assert.NoError(t, err)
	assert.Equal(t, "3", pi.CurrentActivityId)
}

func Test_update_of_activity_without_artifact_definition_fails(t *testing.T) {
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "parallel", "site", "")
	require.NoError(t, err)

	_, err = engine.UpdateActivity(t.Context(), pi.Key, "1", *attachment("x"))

	assert.ErrorIs(t, err, ErrNoArtifactDefinition)
}

func Test_conditions_are_checked_on_commit(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "gated", "rollout", "")
	require.NoError(t, err)
	budget := &runtime.Artifact{
		ContentType:       "text/html",
		Content:           []byte("<b>50k</b>"),
		SharedInformation: []runtime.StringPair{{Key: "amount", Value: "50000"}},
	}

	// when
	_, err = engine.CommitActivity(t.Context(), pi.Key, "1", budget)

	// then
	var notMet *ConditionNotMetError
	require.True(t, errors.As(err, &notMet))
	assert.True(t, notMet.Postcondition)
	assert.Equal(t, "budget", notMet.ArtifactDefinitionId)
	current, err := engine.GetCurrentActivity(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, "1", current.Id)
}

func Test_not_found_errors(t *testing.T) {
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "1", "order", "")
	require.NoError(t, err)

	_, err = engine.GetProcessInstance(t.Context(), -1)
	assert.ErrorIs(t, err, ErrProcessInstanceNotFound)

	_, err = engine.GetProcessDefinition(t.Context(), "nope")
	assert.ErrorIs(t, err, ErrProcessDefinitionNotFound)
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "nope", notFound.Id)
	assert.Equal(t, "The process definition nope can not be found", notFound.Error())

	_, err = engine.GetActivityDefinition(t.Context(), "1", "99")
	assert.ErrorIs(t, err, ErrActivityDefinitionNotFound)

	_, err = engine.GetArtifactForActivity(t.Context(), pi.Key, "1")
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	_, err = engine.CreateProcessInstance(t.Context(), "nope", "x", "")
	assert.ErrorIs(t, err, ErrProcessDefinitionNotFound)
}

func Test_disabled_definition_can_not_be_started(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreateProcessInstance(t.Context(), "disabled", "x", "")

	assert.ErrorIs(t, err, ErrProcessDefinitionDisabled)
}

func Test_definition_queries(t *testing.T) {
	engine, _ := newTestEngine(t)

	definitions, err := engine.GetProcessDefinitions(t.Context())
	require.NoError(t, err)
	ids := make([]string, 0, len(definitions))
	for _, pd := range definitions {
		ids = append(ids, pd.Id)
	}
	assert.Equal(t, []string{"1", "conditional", "disabled", "gated", "parallel"}, ids)

	activities, err := engine.GetProcessDefinitionActivities(t.Context(), "gated")
	assert.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "6", "7", "5"}, activityIds(activities))

	actor, err := engine.GetActor(t.Context(), "1", "2")
	assert.NoError(t, err)
	assert.Equal(t, "Engineering", actor.Name)
	actor, err = engine.GetActor(t.Context(), "parallel", "1")
	assert.NoError(t, err)
	assert.Nil(t, actor)

	ad, err := engine.GetArtifactDefinitionForActivity(t.Context(), "1", "1")
	assert.NoError(t, err)
	assert.Equal(t, "order", ad.Id)
	_, err = engine.GetArtifactDefinitionForActivity(t.Context(), "1", "3")
	assert.ErrorIs(t, err, ErrNoArtifactDefinition)
}

func Test_import_and_delete_definition(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	data := definitionDocument(`
		<activityDefinition id="1" type="START"><paths><path>2</path></paths></activityDefinition>
		<activityDefinition id="2" type="END"/>`)

	// when
	pd, err := engine.ImportProcessDefinition(t.Context(), "imported", data)

	// then
	require.NoError(t, err)
	assert.Equal(t, "imported", pd.Id)
	pi, err := engine.CreateProcessInstance(t.Context(), "imported", "x", "")
	require.NoError(t, err)

	err = engine.DeleteProcessDefinition(t.Context(), "imported")
	assert.ErrorIs(t, err, ErrProcessDefinitionInUse)

	require.NoError(t, engine.DeleteProcessInstance(t.Context(), pi.Key))
	require.NoError(t, engine.DeleteProcessDefinition(t.Context(), "imported"))
	_, err = engine.GetProcessDefinition(t.Context(), "imported")
	assert.ErrorIs(t, err, ErrProcessDefinitionNotFound)
	_, err = engine.GetProcessInstance(t.Context(), pi.Key)
	assert.ErrorIs(t, err, ErrProcessInstanceNotFound)
}

func Test_import_rejects_invalid_documents(t *testing.T) {
	engine, dir := newTestEngine(t)

	_, err := engine.ImportProcessDefinition(t.Context(), "a_b", definitionDocument(`<activityDefinition id="1" type="END"/>`))
	assert.ErrorIs(t, err, ErrInvalidProcessDefinitionId)

	_, err = engine.ImportProcessDefinition(t.Context(), "broken", []byte("<processDefinition"))
	requireMalformed(t, err)
	_, statErr := os.Stat(dir + "/process/definitions/broken.xml")
	assert.True(t, os.IsNotExist(statErr))
}

func Test_evicted_definitions_are_read_again(t *testing.T) {
	engine, _ := newTestEngine(t, WithDefinitionCache(1, 0))

	for _, id := range []string{"conditional", "parallel", "conditional", "1"} {
		pd, err := engine.GetProcessDefinition(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, id, pd.Id)
	}
	assert.Equal(t, 1, engine.definitions.Len())
}

func Test_instances_are_restored_from_storage(t *testing.T) {
	// given
	store := inmemory.NewStorage()
	engine, dir := newTestEngine(t, WithStorage(store))
	pi, err := engine.CreateProcessInstance(t.Context(), "conditional", "change", "")
	require.NoError(t, err)
	request := attachment("swap line card")
	request.SharedInformation = []runtime.StringPair{{Key: "site", Value: "north"}}
	pi = commit(t, engine, pi.Key, "1", request)
	pi = commit(t, engine, pi.Key, "2", decision(true))
	before, err := engine.GetArtifactForActivity(t.Context(), pi.Key, "1")
	require.NoError(t, err)

	// when
	restored, err := NewEngine(t.Context(), WithProcessEnginePath(dir), WithStorage(store))
	require.NoError(t, err)
	require.NoError(t, restored.Start(t.Context()))

	// then
	instance, err := restored.GetProcessInstance(t.Context(), pi.Key)
	require.NoError(t, err)
	assert.Equal(t, "3", instance.CurrentActivityId)
	after, err := restored.GetArtifactForActivity(t.Context(), pi.Key, "1")
	require.NoError(t, err)
	assert.Equal(t, before.Id, after.Id)
	assert.Equal(t, before.Content, after.Content)
	assert.Equal(t, before.SharedInformation, after.SharedInformation)
	assert.True(t, before.CommitDate.Equal(after.CommitDate))

	next, err := restored.GetNextActivityForProcessInstance(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Equal(t, "5", next.Id)
}

func Test_update_and_list_instances(t *testing.T) {
	engine, _ := newTestEngine(t)
	first, err := engine.CreateProcessInstance(t.Context(), "1", "first", "")
	require.NoError(t, err)
	second, err := engine.CreateProcessInstance(t.Context(), "1", "second", "")
	require.NoError(t, err)
	_, err = engine.CreateProcessInstance(t.Context(), "parallel", "other", "")
	require.NoError(t, err)

	updated, err := engine.UpdateProcessInstance(t.Context(), first.Key, "renamed", "with description")
	assert.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	instances, err := engine.GetProcessInstances(t.Context(), "1")
	assert.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, first.Key, instances[0].Key)
	assert.Equal(t, "with description", instances[0].Description)
	assert.Equal(t, second.Key, instances[1].Key)

	all, err := engine.GetProcessInstances(t.Context(), "")
	assert.NoError(t, err)
	assert.Len(t, all, 3)
}

func Test_concurrent_commits_advance_once(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "parallel", "site", "")
	require.NoError(t, err)

	// when
	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CommitActivity(t.Context(), pi.Key, "1", nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// then
	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var notCurrent *ActivityNotCurrentError
		assert.True(t, errors.As(err, &notCurrent))
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, engine.runningInstances.size())
}

func Test_stored_instance_of_missing_definition_blocks_its_import_deletion(t *testing.T) {
	// given
	dir := t.TempDir()
	require.NoError(t, os.CopyFS(dir, os.DirFS("testdata")))
	store := inmemory.NewStorage()
	require.NoError(t, store.SaveProcessInstance(t.Context(), runtime.ProcessInstance{
		Key:                 42,
		ProcessDefinitionId: "gone",
		CurrentActivityId:   "1",
		State:               runtime.ProcessInstanceStateActive,
	}))
	engine, err := NewEngine(t.Context(), WithProcessEnginePath(dir), WithStorage(store))
	require.NoError(t, err)

	// when
	err = engine.Start(t.Context())

	// then
	assert.ErrorIs(t, err, ErrProcessDefinitionNotFound)
	_, err = engine.GetProcessInstance(t.Context(), 42)
	assert.ErrorIs(t, err, ErrProcessInstanceNotFound)

	_, err = engine.ImportProcessDefinition(t.Context(), "gone", definitionDocument(`
		<activityDefinition id="1" type="START"><paths><path>2</path></paths></activityDefinition>
		<activityDefinition id="2" type="END"/>`))
	require.NoError(t, err)
	assert.ErrorIs(t, engine.DeleteProcessDefinition(t.Context(), "gone"), ErrProcessDefinitionInUse)

	require.NoError(t, engine.DeleteProcessInstance(t.Context(), 42))
	assert.NoError(t, engine.DeleteProcessDefinition(t.Context(), "gone"))
	assert.ErrorIs(t, engine.DeleteProcessInstance(t.Context(), 42), ErrProcessInstanceNotFound)
}

func Test_update_of_conditional_ahead_of_the_cursor_does_not_move_it(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "conditional", "change", "")
	require.NoError(t, err)

	// when
	_, err = engine.UpdateActivity(t.Context(), pi.Key, "2", *decision(true))
	require.NoError(t, err)
	pi, err = engine.UpdateActivity(t.Context(), pi.Key, "2", *decision(false))

	// then
	require.NoError(t, err)
	assert.Equal(t, "1", pi.CurrentActivityId)

	pi = commit(t, engine, pi.Key, "1", attachment("swap line card"))
	assert.Equal(t, "2", pi.CurrentActivityId)
	pi, err = engine.UpdateActivity(t.Context(), pi.Key, "2", *decision(true))
	require.NoError(t, err)
	assert.Equal(t, "2", pi.CurrentActivityId)
	approval, err := engine.GetArtifactForActivity(t.Context(), pi.Key, "2")
	require.NoError(t, err)
	assert.True(t, approval.CommitDate.IsZero())
}

func Test_branch_artifact_submitted_before_the_fork_is_not_interrupted(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "parallel", "site 17", "")
	require.NoError(t, err)
	_, err = engine.UpdateActivity(t.Context(), pi.Key, "3", *attachment("power ok"))
	require.NoError(t, err)

	// when
	pi = commit(t, engine, pi.Key, "1", nil)

	// then
	path, err := engine.GetProcessInstanceActivitiesPath(t.Context(), pi.Key)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, activityIds(path))
	power, err := engine.GetArtifactForActivity(t.Context(), pi.Key, "3")
	require.NoError(t, err)
	_, interrupted := power.SharedValue(InterruptedShareKey)
	assert.False(t, interrupted)
	assert.NotContains(t, string(pi.ArtifactsContent), InterruptedShareKey)
}

func Test_changed_conditional_reopens_completed_instance(t *testing.T) {
	// given
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "conditional", "change", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", attachment("swap line card"))
	pi = commit(t, engine, pi.Key, "2", decision(true))
	pi = commit(t, engine, pi.Key, "3", attachment("card swapped"))
	pi = commit(t, engine, pi.Key, "5", nil)
	require.Equal(t, runtime.ProcessInstanceStateCompleted, pi.State)

	// when
	pi, err = engine.UpdateActivity(t.Context(), pi.Key, "2", *decision(false))

	// then
	require.NoError(t, err)
	assert.Equal(t, "2", pi.CurrentActivityId)
	assert.Equal(t, runtime.ProcessInstanceStateActive, pi.State)
	change, err := engine.GetArtifactForActivity(t.Context(), pi.Key, "3")
	require.NoError(t, err)
	_, interrupted := change.SharedValue(InterruptedShareKey)
	assert.True(t, interrupted)

	pi = commit(t, engine, pi.Key, "2", decision(false))
	assert.Equal(t, "4", pi.CurrentActivityId)
	pi = commit(t, engine, pi.Key, "4", attachment("customer informed"))
	pi = commit(t, engine, pi.Key, "5", nil)
	assert.Equal(t, runtime.ProcessInstanceStateCompleted, pi.State)
	assert.Equal(t, 0, engine.Status().ActiveInstances)
}

func Test_update_of_completed_instance_without_change_keeps_it_completed(t *testing.T) {
	engine, _ := newTestEngine(t)
	pi, err := engine.CreateProcessInstance(t.Context(), "conditional", "change", "")
	require.NoError(t, err)
	pi = commit(t, engine, pi.Key, "1", attachment("swap line card"))
	pi = commit(t, engine, pi.Key, "2", decision(false))
	pi = commit(t, engine, pi.Key, "4", attachment("customer informed"))
	pi = commit(t, engine, pi.Key, "5", nil)

	pi, err = engine.UpdateActivity(t.Context(), pi.Key, "4", *attachment("customer informed twice"))

	require.NoError(t, err)
	assert.Equal(t, runtime.ProcessInstanceStateCompleted, pi.State)
	assert.Equal(t, "5", pi.CurrentActivityId)
}

func Test_deleted_definition_has_no_instances(t *testing.T) {
	engine, _ := newTestEngine(t)
	data := definitionDocument(`
		<activityDefinition id="1" type="START"><paths><path>2</path></paths></activityDefinition>
		<activityDefinition id="2" type="END"/>`)

	for i := 0; i < 20; i++ {
		_, err := engine.ImportProcessDefinition(t.Context(), "racy", data)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var createErr, deleteErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, createErr = engine.CreateProcessInstance(t.Context(), "racy", "x", "")
		}()
		go func() {
			defer wg.Done()
			deleteErr = engine.DeleteProcessDefinition(t.Context(), "racy")
		}()
		wg.Wait()

		instances, err := engine.GetProcessInstances(t.Context(), "racy")
		require.NoError(t, err)
		if deleteErr == nil {
			assert.ErrorIs(t, createErr, ErrProcessDefinitionNotFound)
			assert.Empty(t, instances)
			continue
		}
		assert.ErrorIs(t, deleteErr, ErrProcessDefinitionInUse)
		require.NoError(t, createErr)
		require.Len(t, instances, 1)
		require.NoError(t, engine.DeleteProcessInstance(t.Context(), instances[0].Key))
		require.NoError(t, engine.DeleteProcessDefinition(t.Context(), "racy"))
	}
}
