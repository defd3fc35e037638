// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package process

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
	"github.com/senseyeio/duration"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// KpiResult is the outcome of one kpi. ComplianceLevel counts down from the number of thresholds
// for the first threshold to 1 for the last one, 0 means no threshold was met or the kpi was not evaluated.
type KpiResult struct {
	Kpi             model.Kpi
	Level           string
	ComplianceLevel int
	// Value is the elapsed time in seconds the kpi was evaluated with.
	Value float64
}

// thresholdValue converts ISO 8601 durations to seconds and numbers to float64, anything else stays a string.
func thresholdValue(v string, reference time.Time) any {
	if strings.HasPrefix(v, "P") {
		if d, err := duration.ParseISO8601(v); err == nil {
			return d.Shift(reference).Sub(reference).Seconds()
		}
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

// evaluateKpis evaluates the bound action of every kpi once per threshold, in declaration order,
// until one threshold is met.
func (engine *Engine) evaluateKpis(ctx context.Context, pd *model.ProcessDefinition, kpis []model.Kpi, scope map[string]any, reference time.Time) ([]KpiResult, error) {
	res := make([]KpiResult, 0, len(kpis))
	for _, kpi := range kpis {
		action, ok := pd.KpiActions[kpi.Action]
		if !ok {
			return nil, fmt.Errorf("kpi %s of process definition %s uses the unknown action %s", kpi.Name, pd.Id, kpi.Action)
		}
		result := KpiResult{Kpi: kpi}
		if v, ok := scope["elapsed"].(float64); ok {
			result.Value = v
		}
		for i, th := range kpi.Thresholds {
			variables := make(map[string]any, len(scope)+1)
			for k, v := range scope {
				variables[k] = v
			}
			variables["threshold"] = thresholdValue(th.Value, reference)
			met, err := engine.feelRuntime.UnaryTest(action.Script, variables)
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate kpi %s at threshold %s: %w", kpi.Name, th.Name, err)
			}
			if met {
				result.Level = th.Name
				result.ComplianceLevel = len(kpi.Thresholds) - i
				break
			}
		}
		engine.metrics.KpiEvaluations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kpi", kpi.Name),
			attribute.String("level", result.Level),
		))
		res = append(res, result)
	}
	return res, nil
}

// EvaluateActivityKpis evaluates the kpis of an activity against the artifact submitted for it.
// The elapsed time runs from the creation of the artifact to its commit, or to now while uncommitted.
// Without an artifact no kpi is evaluated and every result has compliance level 0.
func (engine *Engine) EvaluateActivityKpis(ctx context.Context, key int64, activityId string) ([]KpiResult, error) {
	pi, artifacts, pd, err := engine.instanceWithDefinition(ctx, key)
	if err != nil {
		return nil, err
	}
	activity := pd.Activity(activityId)
	if activity == nil {
		return nil, engine.activityDefinitionNotFound(pi.ProcessDefinitionId, activityId)
	}

	var artifact runtime.Artifact
	ok := false
	if activity.ArtifactDefinition != nil {
		artifact, ok = artifacts[activity.ArtifactDefinition.Id]
	}
	if !ok {
		res := make([]KpiResult, 0, len(activity.Kpis))
		for _, kpi := range activity.Kpis {
			res = append(res, KpiResult{Kpi: kpi})
		}
		return res, nil
	}

	end := time.Now()
	committed := !artifact.CommitDate.IsZero()
	if committed {
		end = artifact.CommitDate
	}
	scope := map[string]any{
		"elapsed":   end.Sub(artifact.CreationDate).Seconds(),
		"activity":  activity.Id,
		"committed": committed,
	}
	return engine.evaluateKpis(ctx, pd, activity.Kpis, scope, artifact.CreationDate)
}

// EvaluateProcessKpis evaluates the process level kpis of the instance. The elapsed time runs from
// the creation of the instance to now, or to its last update once completed.
func (engine *Engine) EvaluateProcessKpis(ctx context.Context, key int64) ([]KpiResult, error) {
	pi, _, pd, err := engine.instanceWithDefinition(ctx, key)
	if err != nil {
		return nil, err
	}
	end := time.Now()
	completed := pi.State == runtime.ProcessInstanceStateCompleted
	if completed {
		end = pi.UpdatedAt
	}
	scope := map[string]any{
		"elapsed":   end.Sub(pi.CreatedAt).Seconds(),
		"activity":  pi.CurrentActivityId,
		"committed": completed,
	}
	return engine.evaluateKpis(ctx, pd, pd.Kpis, scope, pi.CreatedAt)
}
