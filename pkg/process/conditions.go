// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package process

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"strings"

	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
)

// conditionalValue reads the boolean <value> element of a conditional artifact.
// Content without a readable value element is false.
func conditionalValue(content []byte) bool {
	d := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := d.Token()
		if err != nil {
			return false
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "value" {
			continue
		}
		var value string
		if err := d.DecodeElement(&value, &se); err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(value), "true")
	}
}

// activityConditionalValue is the value of the artifact submitted for the activity, false without an artifact.
func activityConditionalValue(activity *model.ActivityDefinition, artifacts map[string]runtime.Artifact) bool {
	if activity.ArtifactDefinition == nil {
		return false
	}
	artifact, ok := artifacts[activity.ArtifactDefinition.Id]
	if !ok {
		return false
	}
	return conditionalValue(artifact.Content)
}

func scriptVariables(instance runtime.ProcessInstance, artifact runtime.Artifact) map[string]any {
	shares := make(map[string]any, len(artifact.SharedInformation))
	for _, p := range artifact.SharedInformation {
		shares[p.Key] = p.Value
	}
	return map[string]any{
		"artifact": map[string]any{
			"name":        artifact.Name,
			"content":     string(artifact.Content),
			"contentType": artifact.ContentType,
			"shares":      shares,
		},
		"instance": map[string]any{
			"key":                 instance.Key,
			"name":                instance.Name,
			"processDefinitionId": instance.ProcessDefinitionId,
			"currentActivityId":   instance.CurrentActivityId,
		},
	}
}

// checkConditions runs the pre and post condition scripts of the artifact definition against the
// submitted artifact. Empty scripts pass.
func (engine *Engine) checkConditions(ctx context.Context, instance runtime.ProcessInstance, ad *model.ArtifactDefinition, artifact runtime.Artifact) error {
	checks := []struct {
		script string
		post   bool
		key    string
	}{
		{ad.PreconditionsScript, false, "process.errors.precondition-not-met"},
		{ad.PostconditionsScript, true, "process.errors.postcondition-not-met"},
	}
	for _, check := range checks {
		if strings.TrimSpace(check.script) == "" {
			continue
		}
		result, err := engine.jsRuntime.RunScript(ctx, check.script, scriptVariables(instance, artifact))
		if err != nil {
			return fmt.Errorf("failed to evaluate conditions of artifact definition %s: %w", ad.Id, err)
		}
		if !truthy(result) {
			return &ConditionNotMetError{
				ArtifactDefinitionId: ad.Id,
				Postcondition:        check.post,
				Msg:                  engine.translator.Translate(check.key, ad.Id),
			}
		}
	}
	return nil
}

// truthy follows the javascript notion of truthiness for exported values
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	default:
		return true
	}
}
