package otel

import (
	"errors"

	"go.opentelemetry.io/otel/metric"
)

type EngineMetrics struct {
	ProcessesStarted    metric.Int64Counter
	ProcessesCompleted  metric.Int64Counter
	ProcessesRunning    metric.Int64UpDownCounter
	ActivitiesCommitted metric.Int64Counter
	ActivitiesUpdated   metric.Int64Counter
	DefinitionsLoaded   metric.Int64Counter
	KpiEvaluations      metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*EngineMetrics, error) {
	var errJoin error

	processesStarted, err := meter.Int64Counter("processes_started", metric.WithDescription("Number of process instances created"))
	errJoin = errors.Join(errJoin, err)

	processesCompleted, err := meter.Int64Counter("processes_completed", metric.WithDescription("Number of process instances that reached an end activity"))
	errJoin = errors.Join(errJoin, err)

	processesRunning, err := meter.Int64UpDownCounter("processes_running", metric.WithDescription("Number of process instances currently active"))
	errJoin = errors.Join(errJoin, err)

	activitiesCommitted, err := meter.Int64Counter("activities_committed", metric.WithDescription("Number of committed activities"))
	errJoin = errors.Join(errJoin, err)

	activitiesUpdated, err := meter.Int64Counter("activities_updated", metric.WithDescription("Number of artifact updates that did not advance the instance"))
	errJoin = errors.Join(errJoin, err)

	definitionsLoaded, err := meter.Int64Counter("definitions_loaded", metric.WithDescription("Number of process definitions loaded from the repository"))
	errJoin = errors.Join(errJoin, err)

	kpiEvaluations, err := meter.Int64Counter("kpi_evaluations", metric.WithDescription("Number of evaluated kpis"))
	errJoin = errors.Join(errJoin, err)

	metrics := EngineMetrics{
		ProcessesStarted:    processesStarted,
		ProcessesCompleted:  processesCompleted,
		ProcessesRunning:    processesRunning,
		ActivitiesCommitted: activitiesCommitted,
		ActivitiesUpdated:   activitiesUpdated,
		DefinitionsLoaded:   definitionsLoaded,
		KpiEvaluations:      kpiEvaluations,
	}
	return &metrics, errJoin
}
