package process

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	otelPkg "github.com/indigo423/kuwaiba-sub029/pkg/otel"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func copyArtifacts(artifacts map[string]runtime.Artifact) map[string]runtime.Artifact {
	res := make(map[string]runtime.Artifact, len(artifacts))
	for id, a := range artifacts {
		res[id] = a.Clone()
	}
	return res
}

// instance returns a copy of the registered instance and its artifacts.
func (engine *Engine) instance(key int64) (runtime.ProcessInstance, map[string]runtime.Artifact, error) {
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	pi, ok := engine.instances[key]
	if !ok {
		return runtime.ProcessInstance{}, nil, engine.processInstanceNotFound(key)
	}
	return pi, copyArtifacts(engine.artifacts[key]), nil
}

// instanceWithDefinition returns the instance, its artifacts and the definition it runs.
func (engine *Engine) instanceWithDefinition(ctx context.Context, key int64) (runtime.ProcessInstance, map[string]runtime.Artifact, *model.ProcessDefinition, error) {
	pi, artifacts, err := engine.instance(key)
	if err != nil {
		return pi, nil, nil, err
	}
	entry, err := engine.definition(ctx, pi.ProcessDefinitionId)
	if err != nil {
		return pi, nil, nil, err
	}
	return pi, artifacts, entry.definition, nil
}

// publish tags interrupted artifacts, renders the snapshot, persists the instance and replaces
// the registered state. Nothing is replaced when persisting fails.
func (engine *Engine) publish(ctx context.Context, pd *model.ProcessDefinition, pi runtime.ProcessInstance, artifacts map[string]runtime.Artifact) (runtime.ProcessInstance, error) {
	var previousPath []*model.ActivityDefinition
	engine.mu.RLock()
	if previous, ok := engine.instances[pi.Key]; ok {
		previousPath = engine.activitiesPath(pd, previous.CurrentActivityId, engine.artifacts[pi.Key])
	}
	engine.mu.RUnlock()
	markInterrupted(pd, previousPath, engine.activitiesPath(pd, pi.CurrentActivityId, artifacts), artifacts)
	snapshot, err := writeSnapshot(artifacts)
	if err != nil {
		return pi, err
	}
	pi.ArtifactsContent = snapshot
	pi.UpdatedAt = time.Now()
	if err := engine.persistence.SaveProcessInstance(ctx, pi); err != nil {
		return pi, fmt.Errorf("failed to save process instance %d: %w", pi.Key, err)
	}

	engine.mu.Lock()
	engine.instances[pi.Key] = pi
	engine.artifacts[pi.Key] = artifacts
	engine.mu.Unlock()
	return pi, nil
}

// CreateProcessInstance starts a process instance at the start activity of the definition.
func (engine *Engine) CreateProcessInstance(ctx context.Context, processDefinitionId string, name string, description string) (instance runtime.ProcessInstance, err error) {
	ctx, span := engine.startSpan(ctx, fmt.Sprintf("create-instance:%s", processDefinitionId),
		attribute.String(otelPkg.AttributeProcessDefinitionId, processDefinitionId),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	engine.definitionsMu.RLock()
	defer engine.definitionsMu.RUnlock()
	entry, err := engine.definition(ctx, processDefinitionId)
	if err != nil {
		return runtime.ProcessInstance{}, err
	}
	pd := entry.definition
	if !pd.Enabled {
		return runtime.ProcessInstance{}, engine.engineError(ErrProcessDefinitionDisabled, "process.errors.process-definition-disabled", processDefinitionId)
	}

	now := time.Now()
	pi := runtime.ProcessInstance{
		Key:                 engine.generateKey(),
		Name:                name,
		Description:         description,
		ProcessDefinitionId: processDefinitionId,
		CurrentActivityId:   pd.StartActivityId,
		State:               runtime.ProcessInstanceStateActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	span.SetAttributes(attribute.Int64(otelPkg.AttributeProcessInstanceKey, pi.Key))

	pi, err = engine.publish(ctx, pd, pi, map[string]runtime.Artifact{})
	if err != nil {
		return runtime.ProcessInstance{}, err
	}
	engine.metrics.ProcessesStarted.Add(ctx, 1)
	engine.metrics.ProcessesRunning.Add(ctx, 1)
	engine.logger.Debug("created process instance", "key", pi.Key, "processDefinitionId", processDefinitionId)
	return pi, nil
}

func (engine *Engine) GetProcessInstance(ctx context.Context, key int64) (runtime.ProcessInstance, error) {
	pi, _, err := engine.instance(key)
	return pi, err
}

// GetProcessInstances returns the instances of the definition ordered by creation, all instances
// for an empty definition id.
func (engine *Engine) GetProcessInstances(ctx context.Context, processDefinitionId string) ([]runtime.ProcessInstance, error) {
	engine.mu.RLock()
	res := make([]runtime.ProcessInstance, 0, len(engine.instances))
	for _, pi := range engine.instances {
		if processDefinitionId == "" || pi.ProcessDefinitionId == processDefinitionId {
			res = append(res, pi)
		}
	}
	engine.mu.RUnlock()
	slices.SortFunc(res, func(a, b runtime.ProcessInstance) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return res, nil
}

// UpdateProcessInstance changes the name and the description of the instance.
func (engine *Engine) UpdateProcessInstance(ctx context.Context, key int64, name string, description string) (runtime.ProcessInstance, error) {
	engine.runningInstances.lockInstance(key)
	defer engine.runningInstances.unlockInstance(key)

	pi, artifacts, pd, err := engine.instanceWithDefinition(ctx, key)
	if err != nil {
		return runtime.ProcessInstance{}, err
	}
	pi.Name = name
	pi.Description = description
	return engine.publish(ctx, pd, pi, artifacts)
}

func (engine *Engine) DeleteProcessInstance(ctx context.Context, key int64) (err error) {
	ctx, span := engine.startSpan(ctx, fmt.Sprintf("delete-instance:%d", key),
		attribute.Int64(otelPkg.AttributeProcessInstanceKey, key),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	engine.runningInstances.lockInstance(key)
	defer engine.runningInstances.unlockInstance(key)

	pi, _, err := engine.instance(key)
	registered := err == nil
	if !registered {
		// an instance whose definition can not be loaded is stored but never registered
		if _, findErr := engine.persistence.FindProcessInstanceByKey(ctx, key); findErr != nil {
			return err
		}
	}
	if err := engine.persistence.DeleteProcessInstance(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete process instance %d: %w", key, err)
	}
	if !registered {
		return nil
	}
	engine.mu.Lock()
	delete(engine.instances, key)
	delete(engine.artifacts, key)
	engine.mu.Unlock()
	if pi.State == runtime.ProcessInstanceStateActive {
		engine.metrics.ProcessesRunning.Add(ctx, -1)
	}
	return nil
}

// GetArtifactForActivity returns the artifact submitted for the activity.
func (engine *Engine) GetArtifactForActivity(ctx context.Context, key int64, activityId string) (runtime.Artifact, error) {
	pi, artifacts, pd, err := engine.instanceWithDefinition(ctx, key)
	if err != nil {
		return runtime.Artifact{}, err
	}
	activity := pd.Activity(activityId)
	if activity == nil {
		return runtime.Artifact{}, engine.activityDefinitionNotFound(pi.ProcessDefinitionId, activityId)
	}
	if activity.ArtifactDefinition == nil {
		return runtime.Artifact{}, engine.artifactNotFound(key, activityId)
	}
	artifact, ok := artifacts[activity.ArtifactDefinition.Id]
	if !ok {
		return runtime.Artifact{}, engine.artifactNotFound(key, activityId)
	}
	return artifact, nil
}

// GetCurrentActivity returns the activity the cursor of the instance points at.
func (engine *Engine) GetCurrentActivity(ctx context.Context, key int64) (*model.ActivityDefinition, error) {
	pi, _, pd, err := engine.instanceWithDefinition(ctx, key)
	if err != nil {
		return nil, err
	}
	activity := pd.Activity(pi.CurrentActivityId)
	if activity == nil {
		return nil, engine.activityDefinitionNotFound(pi.ProcessDefinitionId, pi.CurrentActivityId)
	}
	return activity, nil
}

// GetNextActivityForProcessInstance returns the activity that follows the current one,
// the end activity once the instance reached it.
func (engine *Engine) GetNextActivityForProcessInstance(ctx context.Context, key int64) (*model.ActivityDefinition, error) {
	pi, artifacts, pd, err := engine.instanceWithDefinition(ctx, key)
	if err != nil {
		return nil, err
	}
	current := pd.Activity(pi.CurrentActivityId)
	if current == nil {
		return nil, engine.activityDefinitionNotFound(pi.ProcessDefinitionId, pi.CurrentActivityId)
	}
	return engine.nextActivity(pd, current, artifacts)
}

// GetNextActivityToParallelActivity returns the join merging the paths of the fork.
func (engine *Engine) GetNextActivityToParallelActivity(ctx context.Context, processDefinitionId string, forkActivityId string) (*model.ActivityDefinition, error) {
	entry, err := engine.definition(ctx, processDefinitionId)
	if err != nil {
		return nil, err
	}
	fork := entry.definition.Activity(forkActivityId)
	if fork == nil {
		return nil, engine.activityDefinitionNotFound(processDefinitionId, forkActivityId)
	}
	if !fork.IsFork() {
		return nil, engine.engineError(ErrJoinNotFound, "process.errors.join-not-found", forkActivityId)
	}
	return engine.joinForFork(entry.definition, fork)
}

// GetProcessInstanceActivitiesPath returns the activities the instance went through up to its
// current activity.
func (engine *Engine) GetProcessInstanceActivitiesPath(ctx context.Context, key int64) ([]*model.ActivityDefinition, error) {
	pi, artifacts, pd, err := engine.instanceWithDefinition(ctx, key)
	if err != nil {
		return nil, err
	}
	return engine.activitiesPath(pd, pi.CurrentActivityId, artifacts), nil
}

// prepareArtifact binds the submitted artifact to its definition, a resubmission keeps the id
// and the creation date of the previous artifact.
func (engine *Engine) prepareArtifact(ad *model.ArtifactDefinition, submitted runtime.Artifact, previous runtime.Artifact, hasPrevious bool, now time.Time) runtime.Artifact {
	artifact := submitted.Clone()
	artifact.ArtifactDefinitionId = ad.Id
	if artifact.Name == "" {
		artifact.Name = ad.Name
	}
	if hasPrevious {
		artifact.Id = previous.Id
		artifact.CreationDate = previous.CreationDate
	}
	if artifact.Id == 0 {
		artifact.Id = engine.generateKey()
	}
	if artifact.CreationDate.IsZero() {
		artifact.CreationDate = now
	}
	return artifact
}

// UpdateActivity stores the artifact of any activity of the instance without moving the cursor.
//
// When a committed conditional activity the instance already went past gets a different value, the
// cursor is rewound to that activity so the branch is taken again. A completed instance becomes
// active again in that case.
func (engine *Engine) UpdateActivity(ctx context.Context, key int64, activityId string, artifact runtime.Artifact) (instance runtime.ProcessInstance, err error) {
	ctx, span := engine.startSpan(ctx, fmt.Sprintf("update-activity:%s", activityId),
		attribute.Int64(otelPkg.AttributeProcessInstanceKey, key),
		attribute.String(otelPkg.AttributeActivityId, activityId),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	engine.runningInstances.lockInstance(key)
	defer engine.runningInstances.unlockInstance(key)

	pi, artifacts, pd, err := engine.instanceWithDefinition(ctx, key)
	if err != nil {
		return runtime.ProcessInstance{}, err
	}
	activity := pd.Activity(activityId)
	if activity == nil {
		return runtime.ProcessInstance{}, engine.activityDefinitionNotFound(pi.ProcessDefinitionId, activityId)
	}
	ad := activity.ArtifactDefinition
	if ad == nil {
		return runtime.ProcessInstance{}, engine.engineError(ErrNoArtifactDefinition, "process.errors.no-artifact-definition", activityId)
	}
	span.SetAttributes(attribute.String(otelPkg.AttributeArtifactDefinitionId, ad.Id))

	previous, hasPrevious := artifacts[ad.Id]
	// while a committed conditional lies behind the cursor its value is the committed one
	rewind := activity.Kind() == model.KindConditional && hasPrevious && !previous.CommitDate.IsZero() &&
		engine.passed(pd, pi, artifacts, activityId)
	updated := engine.prepareArtifact(ad, artifact, previous, hasPrevious, time.Now())
	updated.CommitDate = previous.CommitDate
	artifacts[ad.Id] = updated

	reopened := false
	if rewind && conditionalValue(previous.Content) != conditionalValue(updated.Content) {
		engine.logger.Debug("conditional value changed, rewinding process instance", "key", key, "activityId", activityId, "from", pi.CurrentActivityId)
		pi.CurrentActivityId = activityId
		if pi.State == runtime.ProcessInstanceStateCompleted {
			pi.State = runtime.ProcessInstanceStateActive
			reopened = true
		}
	}

	pi, err = engine.publish(ctx, pd, pi, artifacts)
	if err != nil {
		return runtime.ProcessInstance{}, err
	}
	engine.metrics.ActivitiesUpdated.Add(ctx, 1)
	if reopened {
		engine.metrics.ProcessesRunning.Add(ctx, 1)
	}
	return pi, nil
}

// passed reports whether the activity lies on the path of the instance before its current activity.
func (engine *Engine) passed(pd *model.ProcessDefinition, pi runtime.ProcessInstance, artifacts map[string]runtime.Artifact, activityId string) bool {
	if activityId == pi.CurrentActivityId {
		return false
	}
	return slices.ContainsFunc(engine.activitiesPath(pd, pi.CurrentActivityId, artifacts), func(a *model.ActivityDefinition) bool {
		return a.Id == activityId
	})
}

// CommitActivity stores the artifact of the current activity and moves the cursor to the next activity.
//
// The activity has to be the current activity of the instance, otherwise an ActivityNotCurrentError is
// returned and nothing changes. Committing an end activity completes the instance.
func (engine *Engine) CommitActivity(ctx context.Context, key int64, activityId string, artifact *runtime.Artifact) (instance runtime.ProcessInstance, err error) {
	ctx, span := engine.startSpan(ctx, fmt.Sprintf("commit-activity:%s", activityId),
		attribute.Int64(otelPkg.AttributeProcessInstanceKey, key),
		attribute.String(otelPkg.AttributeActivityId, activityId),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	engine.runningInstances.lockInstance(key)
	defer engine.runningInstances.unlockInstance(key)

	pi, artifacts, pd, err := engine.instanceWithDefinition(ctx, key)
	if err != nil {
		return runtime.ProcessInstance{}, err
	}
	if pi.State == runtime.ProcessInstanceStateCompleted {
		return runtime.ProcessInstance{}, engine.engineError(ErrProcessInstanceCompleted, "process.errors.process-instance-completed", key)
	}
	if activityId != pi.CurrentActivityId {
		return runtime.ProcessInstance{}, &ActivityNotCurrentError{
			ProcessInstanceKey: key,
			ActivityId:         activityId,
			CurrentActivityId:  pi.CurrentActivityId,
			Msg:                engine.translator.Translate("process.errors.activity-not-current", activityId, key, pi.CurrentActivityId),
		}
	}
	activity := pd.Activity(activityId)
	if activity == nil {
		return runtime.ProcessInstance{}, engine.activityDefinitionNotFound(pi.ProcessDefinitionId, activityId)
	}
	span.SetAttributes(
		attribute.String(otelPkg.AttributeActivityName, activity.Name),
		attribute.String(otelPkg.AttributeActivityType, string(activity.Type)),
	)

	if ad := activity.ArtifactDefinition; ad != nil {
		if artifact == nil {
			return runtime.ProcessInstance{}, engine.engineError(ErrArtifactRequired, "process.errors.artifact-required", activityId)
		}
		previous, hasPrevious := artifacts[ad.Id]
		now := time.Now()
		committed := engine.prepareArtifact(ad, *artifact, previous, hasPrevious, now)
		committed.CommitDate = now
		if err := engine.checkConditions(ctx, pi, ad, committed); err != nil {
			return runtime.ProcessInstance{}, err
		}
		artifacts[ad.Id] = committed
	} else if artifact != nil {
		engine.logger.Debug("ignoring artifact of an activity without artifact definition", "key", key, "activityId", activityId)
	}

	next, err := engine.nextActivity(pd, activity, artifacts)
	if err != nil {
		return runtime.ProcessInstance{}, err
	}
	span.SetAttributes(attribute.String(otelPkg.AttributeNextActivityId, next.Id))
	pi.CurrentActivityId = next.Id
	completed := activity.IsEnd()
	if completed {
		pi.State = runtime.ProcessInstanceStateCompleted
	}

	pi, err = engine.publish(ctx, pd, pi, artifacts)
	if err != nil {
		return runtime.ProcessInstance{}, err
	}
	engine.metrics.ActivitiesCommitted.Add(ctx, 1)
	if completed {
		engine.metrics.ProcessesCompleted.Add(ctx, 1)
		engine.metrics.ProcessesRunning.Add(ctx, -1)
	}
	return pi, nil
}

// RenderProcessInstance registers a stored instance and rebuilds its artifacts from the snapshot.
// Artifacts whose definition is not part of the process definition are skipped.
func (engine *Engine) RenderProcessInstance(ctx context.Context, pi runtime.ProcessInstance) error {
	entry, err := engine.definition(ctx, pi.ProcessDefinitionId)
	if err != nil {
		return err
	}
	stored, err := readSnapshot(pi.ArtifactsContent)
	if err != nil {
		return fmt.Errorf("failed to render process instance %d: %w", pi.Key, err)
	}
	known := map[string]bool{}
	for _, a := range entry.definition.Activities {
		if a.ArtifactDefinition != nil {
			known[a.ArtifactDefinition.Id] = true
		}
	}
	artifacts := make(map[string]runtime.Artifact, len(stored))
	for _, a := range stored {
		if !known[a.ArtifactDefinitionId] {
			engine.logger.Debug("skipping artifact of unknown artifact definition", "key", pi.Key, "artifactDefinitionId", a.ArtifactDefinitionId)
			continue
		}
		artifacts[a.ArtifactDefinitionId] = a
	}
	if pi.State == "" {
		pi.State = runtime.ProcessInstanceStateActive
	}

	engine.runningInstances.lockInstance(pi.Key)
	defer engine.runningInstances.unlockInstance(pi.Key)
	engine.mu.Lock()
	_, replaced := engine.instances[pi.Key]
	engine.instances[pi.Key] = pi
	engine.artifacts[pi.Key] = artifacts
	engine.mu.Unlock()
	if !replaced && pi.State == runtime.ProcessInstanceStateActive {
		engine.metrics.ProcessesRunning.Add(ctx, 1)
	}
	return nil
}

func (engine *Engine) restoreProcessInstances(ctx context.Context) error {
	instances, err := engine.persistence.FindProcessInstances(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stored process instances: %w", err)
	}
	var errJoin error
	for _, pi := range instances {
		if err := engine.RenderProcessInstance(ctx, pi); err != nil {
			engine.logger.Error("failed to restore process instance", "key", pi.Key, "processDefinitionId", pi.ProcessDefinitionId, "err", err)
			errJoin = errors.Join(errJoin, err)
		}
	}
	return errJoin
}
