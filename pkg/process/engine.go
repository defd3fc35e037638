// Package process is the business process engine.
//
// Process definitions are XML documents kept in a DefinitionRepository. The Engine loads them into
// an id addressed activity graph and drives process instances through that graph: every instance
// has a cursor pointing at its current activity, users submit artifacts for activities and
// committing the current activity moves the cursor along the graph.
package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/indigo423/kuwaiba-sub029/internal/appcontext"
	"github.com/indigo423/kuwaiba-sub029/internal/translation"
	otelPkg "github.com/indigo423/kuwaiba-sub029/pkg/otel"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
	"github.com/indigo423/kuwaiba-sub029/pkg/script"
	"github.com/indigo423/kuwaiba-sub029/pkg/script/feel"
	"github.com/indigo423/kuwaiba-sub029/pkg/script/js"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage/inmemory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDefinitionCacheSize = 256
	defaultScriptPoolMaxSize   = 8
	defaultScriptPoolMinSize   = 1
)

// cachedDefinition is a loaded definition together with its flattened reachable activities.
type cachedDefinition struct {
	definition *model.ProcessDefinition
	activities []*model.ActivityDefinition
}

type Engine struct {
	name              string
	processEnginePath string
	repository        *DefinitionRepository
	persistence       storage.Storage
	translator        translation.Translator
	jsRuntime         script.JsRuntime
	feelRuntime       script.FeelRuntime
	snowflake         *snowflake.Node
	logger            hclog.Logger
	tracer            trace.Tracer
	metrics           *otelPkg.EngineMetrics

	definitionCacheSize int
	definitionCacheTTL  time.Duration
	definitions         *expirable.LRU[string, cachedDefinition]
	// definitionsMu is held for reading while an instance is created and for writing while a
	// definition is deleted
	definitionsMu sync.RWMutex

	// mu guards instances and artifacts, mutations of one instance additionally hold its
	// lock in runningInstances
	mu               sync.RWMutex
	instances        map[int64]runtime.ProcessInstance
	artifacts        map[int64]map[string]runtime.Artifact
	runningInstances *RunningInstancesCache
}

// NewEngine creates a new process engine. Without options it keeps instances in memory
// and reads definitions relative to the working directory.
func NewEngine(ctx context.Context, options ...EngineOption) (*Engine, error) {
	engine := &Engine{
		name:                fmt.Sprintf("Process-Engine-%d", getGlobalSnowflakeIdGenerator().Generate().Int64()),
		processEnginePath:   ".",
		translator:          translation.Default(),
		snowflake:           getGlobalSnowflakeIdGenerator(),
		definitionCacheSize: defaultDefinitionCacheSize,
		instances:           map[int64]runtime.ProcessInstance{},
		artifacts:           map[int64]map[string]runtime.Artifact{},
		runningInstances:    newRunningInstancesCache(),
	}

	for _, option := range options {
		option(engine)
	}

	if engine.persistence == nil {
		engine.persistence = inmemory.NewStorage()
	}
	if engine.jsRuntime == nil {
		engine.jsRuntime = js.NewJsRuntime(ctx, defaultScriptPoolMaxSize, defaultScriptPoolMinSize)
	}
	if engine.feelRuntime == nil {
		engine.feelRuntime = feel.NewFeelRuntime()
	}
	engine.repository = NewDefinitionRepository(engine.processEnginePath)
	engine.definitions = expirable.NewLRU[string, cachedDefinition](engine.definitionCacheSize, nil, engine.definitionCacheTTL)
	engine.logger = hclog.Default().Named(engine.name)
	engine.tracer = otel.GetTracerProvider().Tracer(engine.name)

	metrics, err := otelPkg.NewMetrics(otel.GetMeterProvider().Meter(engine.name))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine metrics: %w", err)
	}
	engine.metrics = metrics
	return engine, nil
}

// startSpan starts an engine span, the correlation id of the request is attached when ctx has one.
func (engine *Engine) startSpan(ctx context.Context, name string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	if correlationId, ok := appcontext.GetCorrelationId(ctx); ok {
		attributes = append(attributes, attribute.String(otelPkg.AttributeCorrelationId, correlationId))
	}
	return engine.tracer.Start(ctx, name, trace.WithAttributes(attributes...))
}

// Name returns the name of the engine, only useful in case you control multiple ones
func (engine *Engine) Name() string {
	return engine.name
}

// Start loads every process definition of the repository and restores the stored process instances.
// Definitions and instances that can not be loaded are logged and skipped, their errors are returned joined.
func (engine *Engine) Start(ctx context.Context) error {
	loadErr := engine.LoadProcessDefinitions(ctx)
	if loadErr != nil {
		engine.logger.Warn("some process definitions could not be loaded", "err", loadErr)
	}
	restoreErr := engine.restoreProcessInstances(ctx)
	if restoreErr != nil {
		engine.logger.Warn("some process instances could not be restored", "err", restoreErr)
	}
	engine.mu.RLock()
	instances := len(engine.instances)
	engine.mu.RUnlock()
	engine.logger.Info("process engine started", "path", engine.processEnginePath, "definitions", engine.definitions.Len(), "instances", instances)
	return errors.Join(loadErr, restoreErr)
}

// EngineStatus is a point in time view of the engine.
type EngineStatus struct {
	Name               string `json:"name"`
	CachedDefinitions  int    `json:"cachedDefinitions"`
	ActiveInstances    int    `json:"activeInstances"`
	CompletedInstances int    `json:"completedInstances"`
	LockedInstances    int    `json:"lockedInstances"`
}

func (engine *Engine) Status() EngineStatus {
	status := EngineStatus{
		Name:              engine.name,
		CachedDefinitions: engine.definitions.Len(),
		LockedInstances:   engine.runningInstances.size(),
	}
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	for _, pi := range engine.instances {
		if pi.State == runtime.ProcessInstanceStateCompleted {
			status.CompletedInstances++
		} else {
			status.ActiveInstances++
		}
	}
	return status
}

func (engine *Engine) Stop() error {
	return engine.persistence.Close()
}

func (engine *Engine) processDefinitionNotFound(id string, err error) error {
	return &NotFoundError{
		Id:  id,
		Msg: engine.translator.Translate("process.errors.process-definition-not-found", id),
		Err: errors.Join(ErrProcessDefinitionNotFound, err),
	}
}

func (engine *Engine) activityDefinitionNotFound(processDefinitionId string, activityId string) error {
	return &NotFoundError{
		Id:  activityId,
		Msg: engine.translator.Translate("process.errors.activity-definition-not-found", activityId, processDefinitionId),
		Err: ErrActivityDefinitionNotFound,
	}
}

func (engine *Engine) processInstanceNotFound(key int64) error {
	return &NotFoundError{
		Id:  fmt.Sprint(key),
		Msg: engine.translator.Translate("process.errors.process-instance-not-found", key),
		Err: ErrProcessInstanceNotFound,
	}
}

func (engine *Engine) artifactNotFound(key int64, activityId string) error {
	return &NotFoundError{
		Id:  activityId,
		Msg: engine.translator.Translate("process.errors.artifact-not-found", activityId, key),
		Err: ErrArtifactNotFound,
	}
}

func (engine *Engine) engineError(err error, key string, args ...any) error {
	return &EngineError{
		Msg: engine.translator.Translate(key, args...),
		Err: err,
	}
}
