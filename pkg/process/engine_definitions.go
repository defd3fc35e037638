package process

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	otelPkg "github.com/indigo423/kuwaiba-sub029/pkg/otel"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func (engine *Engine) loaderOptions() []LoaderOption {
	return []LoaderOption{
		LoadWithProcessEnginePath(engine.processEnginePath),
		LoadWithTranslator(engine.translator),
		LoadWithLogger(engine.logger.Named("loader")),
	}
}

func (engine *Engine) cache(pd *model.ProcessDefinition) cachedDefinition {
	entry := cachedDefinition{
		definition: pd,
		activities: reachableActivities(pd),
	}
	engine.definitions.Add(pd.Id, entry)
	return entry
}

// definition returns the cached definition, a cache miss reads the definition from the repository.
func (engine *Engine) definition(ctx context.Context, id string) (cachedDefinition, error) {
	if entry, ok := engine.definitions.Get(id); ok {
		return entry, nil
	}
	data, err := engine.repository.Read(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProcessDefinitionNotFound) {
			return cachedDefinition{}, engine.processDefinitionNotFound(id, nil)
		}
		return cachedDefinition{}, err
	}
	pd, err := LoadProcessDefinition(id, data, engine.loaderOptions()...)
	if err != nil {
		return cachedDefinition{}, err
	}
	engine.metrics.DefinitionsLoaded.Add(ctx, 1)
	return engine.cache(pd), nil
}

// LoadProcessDefinitions loads every definition of the repository into the cache.
// A document that fails to load is logged and skipped, the errors of all such documents are returned joined.
func (engine *Engine) LoadProcessDefinitions(ctx context.Context) (err error) {
	ctx, span := engine.startSpan(ctx, "load-process-definitions")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	files, err := engine.repository.Scan(ctx)
	if err != nil {
		return err
	}
	var errJoin error
	loaded := 0
	for _, f := range files {
		data, err := engine.repository.Read(ctx, f.Id)
		if err != nil {
			errJoin = errors.Join(errJoin, err)
			continue
		}
		pd, err := LoadProcessDefinition(f.Id, data, engine.loaderOptions()...)
		if err != nil {
			engine.logger.Error("failed to load process definition", "file", f.FileName, "err", err)
			errJoin = errors.Join(errJoin, err)
			continue
		}
		engine.cache(pd)
		loaded++
	}
	engine.metrics.DefinitionsLoaded.Add(ctx, int64(loaded))
	span.SetAttributes(attribute.Int("loaded", loaded))
	engine.logger.Debug("loaded process definitions", "loaded", loaded, "files", len(files))
	return errJoin
}

// ReloadProcessDefinitions drops the cache and loads the repository again.
func (engine *Engine) ReloadProcessDefinitions(ctx context.Context) error {
	engine.definitions.Purge()
	return engine.LoadProcessDefinitions(ctx)
}

func (engine *Engine) validDefinitionId(id string) bool {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) {
		return false
	}
	return DefinitionIdFromFileName(id+definitionFileExtension) == id
}

// ImportProcessDefinition validates the document by loading it, stores it in the repository and
// replaces the cached definition. Running instances see the new definition on their next operation.
func (engine *Engine) ImportProcessDefinition(ctx context.Context, id string, data []byte) (pd *model.ProcessDefinition, err error) {
	ctx, span := engine.startSpan(ctx, fmt.Sprintf("import-process-definition:%s", id),
		attribute.String(otelPkg.AttributeProcessDefinitionId, id),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !engine.validDefinitionId(id) {
		return nil, engine.engineError(ErrInvalidProcessDefinitionId, "process.errors.invalid-definition-id", id)
	}
	pd, err = LoadProcessDefinition(id, data, engine.loaderOptions()...)
	if err != nil {
		return nil, err
	}
	if err := engine.repository.Write(ctx, id, data); err != nil {
		return nil, err
	}
	engine.cache(pd)
	engine.metrics.DefinitionsLoaded.Add(ctx, 1)
	return pd, nil
}

// DeleteProcessDefinition removes a definition no process instance refers to.
func (engine *Engine) DeleteProcessDefinition(ctx context.Context, id string) (err error) {
	ctx, span := engine.startSpan(ctx, fmt.Sprintf("delete-process-definition:%s", id),
		attribute.String(otelPkg.AttributeProcessDefinitionId, id),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	engine.definitionsMu.Lock()
	defer engine.definitionsMu.Unlock()
	engine.mu.RLock()
	inUse := 0
	for _, pi := range engine.instances {
		if pi.ProcessDefinitionId == id {
			inUse++
		}
	}
	engine.mu.RUnlock()
	if inUse == 0 {
		// instances that failed to restore are only in the storage
		stored, err := engine.persistence.FindProcessInstancesByDefinitionId(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read process instances of %s: %w", id, err)
		}
		inUse = len(stored)
	}
	if inUse > 0 {
		return engine.engineError(ErrProcessDefinitionInUse, "process.errors.process-definition-in-use", id, inUse)
	}

	if err := engine.repository.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrProcessDefinitionNotFound) {
			return engine.processDefinitionNotFound(id, nil)
		}
		return err
	}
	engine.definitions.Remove(id)
	return nil
}

// GetProcessDefinition returns the loaded graph of the definition, it must not be modified.
func (engine *Engine) GetProcessDefinition(ctx context.Context, id string) (*model.ProcessDefinition, error) {
	entry, err := engine.definition(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry.definition, nil
}

// GetProcessDefinitions returns every loadable definition of the repository ordered by id.
func (engine *Engine) GetProcessDefinitions(ctx context.Context) ([]*model.ProcessDefinition, error) {
	files, err := engine.repository.Scan(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	res := make([]*model.ProcessDefinition, 0, len(files))
	for _, f := range files {
		if seen[f.Id] {
			continue
		}
		seen[f.Id] = true
		entry, err := engine.definition(ctx, f.Id)
		if err != nil {
			engine.logger.Warn("skipping process definition", "id", f.Id, "err", err)
			continue
		}
		res = append(res, entry.definition)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Id < res[j].Id
	})
	return res, nil
}

// GetProcessDefinitionActivities returns the activities reachable from the start activity in depth first order.
func (engine *Engine) GetProcessDefinitionActivities(ctx context.Context, id string) ([]*model.ActivityDefinition, error) {
	entry, err := engine.definition(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry.activities, nil
}

func (engine *Engine) GetActivityDefinition(ctx context.Context, processDefinitionId string, activityId string) (*model.ActivityDefinition, error) {
	entry, err := engine.definition(ctx, processDefinitionId)
	if err != nil {
		return nil, err
	}
	activity := entry.definition.Activity(activityId)
	if activity == nil {
		return nil, engine.activityDefinitionNotFound(processDefinitionId, activityId)
	}
	return activity, nil
}

func (engine *Engine) GetArtifactDefinitionForActivity(ctx context.Context, processDefinitionId string, activityId string) (*model.ArtifactDefinition, error) {
	activity, err := engine.GetActivityDefinition(ctx, processDefinitionId, activityId)
	if err != nil {
		return nil, err
	}
	if activity.ArtifactDefinition == nil {
		return nil, engine.engineError(ErrNoArtifactDefinition, "process.errors.no-artifact-definition", activityId)
	}
	return activity.ArtifactDefinition, nil
}

// GetActor returns the actor assigned to the activity, nil when the activity is unassigned.
func (engine *Engine) GetActor(ctx context.Context, processDefinitionId string, activityId string) (*model.Actor, error) {
	entry, err := engine.definition(ctx, processDefinitionId)
	if err != nil {
		return nil, err
	}
	activity := entry.definition.Activity(activityId)
	if activity == nil {
		return nil, engine.activityDefinitionNotFound(processDefinitionId, activityId)
	}
	return entry.definition.Actor(activity), nil
}
