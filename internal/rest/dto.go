package rest

import (
	"time"

	"github.com/indigo423/kuwaiba-sub029/pkg/process"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
)

type PageMetadata struct {
	Page       int `json:"page"`
	Size       int `json:"size"`
	Count      int `json:"count"`
	TotalCount int `json:"totalCount"`
}

type Page[T any] struct {
	Items        []T          `json:"items"`
	PageMetadata PageMetadata `json:"pageMetadata"`
}

type ProcessDefinitionSimple struct {
	Id              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Version         string     `json:"version,omitempty"`
	Enabled         bool       `json:"enabled"`
	CreationDate    *time.Time `json:"creationDate,omitempty"`
	StartActivityId string     `json:"startActivityId"`
}

type ProcessDefinitionDetail struct {
	ProcessDefinitionSimple
	Activities []ActivityDefinition `json:"activities"`
	Kpis       []Kpi                `json:"kpis,omitempty"`
}

type Actor struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type ArtifactDefinition struct {
	Id                string   `json:"id"`
	Name              string   `json:"name,omitempty"`
	Version           string   `json:"version,omitempty"`
	Type              string   `json:"type"`
	SharedInformation []string `json:"sharedInformation,omitempty"`
	HasForm           bool     `json:"hasForm"`
}

type Threshold struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Kpi struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Action      string      `json:"action"`
	Thresholds  []Threshold `json:"thresholds"`
}

type ActivityDefinition struct {
	Id                 string              `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	Type               string              `json:"type"`
	Kind               string              `json:"kind"`
	Color              string              `json:"color,omitempty"`
	Confirm            bool                `json:"confirm"`
	Idling             bool                `json:"idling"`
	Actor              *Actor              `json:"actor,omitempty"`
	ArtifactDefinition *ArtifactDefinition `json:"artifactDefinition,omitempty"`
	Paths              []string            `json:"paths,omitempty"`
	SequenceFlow       string              `json:"sequenceFlow,omitempty"`
	Kpis               []Kpi               `json:"kpis,omitempty"`
}

type CreateProcessInstanceRequest struct {
	ProcessDefinitionId string `json:"processDefinitionId"`
	Name                string `json:"name"`
	Description         string `json:"description"`
}

type UpdateProcessInstanceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ProcessInstance struct {
	Key                 int64     `json:"key"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	ProcessDefinitionId string    `json:"processDefinitionId"`
	CurrentActivityId   string    `json:"currentActivityId"`
	State               string    `json:"state"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Artifact carries its content base64 encoded, as encoding/json does for byte slices.
type Artifact struct {
	Id                   int64             `json:"id,omitempty"`
	Name                 string            `json:"name,omitempty"`
	ContentType          string            `json:"contentType,omitempty"`
	Content              []byte            `json:"content,omitempty"`
	ArtifactDefinitionId string            `json:"artifactDefinitionId,omitempty"`
	CreationDate         *time.Time        `json:"creationDate,omitempty"`
	CommitDate           *time.Time        `json:"commitDate,omitempty"`
	SharedInformation    map[string]string `json:"sharedInformation,omitempty"`
}

type KpiResult struct {
	Name            string  `json:"name"`
	Level           string  `json:"level,omitempty"`
	ComplianceLevel int     `json:"complianceLevel"`
	Value           float64 `json:"value"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toProcessDefinitionSimple(pd *model.ProcessDefinition) ProcessDefinitionSimple {
	return ProcessDefinitionSimple{
		Id:              pd.Id,
		Name:            pd.Name,
		Description:     pd.Description,
		Version:         pd.Version,
		Enabled:         pd.Enabled,
		CreationDate:    timePtr(pd.CreationDate),
		StartActivityId: pd.StartActivityId,
	}
}

func toKpis(kpis []model.Kpi) []Kpi {
	if len(kpis) == 0 {
		return nil
	}
	res := make([]Kpi, 0, len(kpis))
	for _, k := range kpis {
		thresholds := make([]Threshold, 0, len(k.Thresholds))
		for _, th := range k.Thresholds {
			thresholds = append(thresholds, Threshold{Name: th.Name, Value: th.Value})
		}
		res = append(res, Kpi{
			Name:        k.Name,
			Description: k.Description,
			Action:      k.Action,
			Thresholds:  thresholds,
		})
	}
	return res
}

func toActivityDefinition(pd *model.ProcessDefinition, a *model.ActivityDefinition) ActivityDefinition {
	res := ActivityDefinition{
		Id:          a.Id,
		Name:        a.Name,
		Description: a.Description,
		Type:        string(a.Type),
		Kind:        a.Kind().String(),
		Color:       a.Color,
		Confirm:     a.Confirm,
		Idling:      a.Idling,
		Kpis:        toKpis(a.Kpis),
	}
	if actor := pd.Actor(a); actor != nil {
		res.Actor = &Actor{Id: actor.Id, Name: actor.Name, Type: actor.Type}
	}
	if ad := a.ArtifactDefinition; ad != nil {
		res.ArtifactDefinition = &ArtifactDefinition{
			Id:                ad.Id,
			Name:              ad.Name,
			Version:           ad.Version,
			Type:              string(ad.Type),
			SharedInformation: ad.SharedInformation,
			HasForm:           ad.Definition != nil,
		}
	}
	switch a.Kind() {
	case model.KindSimple:
		if a.NextActivityId != "" {
			res.Paths = []string{a.NextActivityId}
		}
	case model.KindConditional:
		res.Paths = a.Successors()
	case model.KindParallel:
		res.Paths = a.Successors()
		if a.Parallel != nil {
			res.SequenceFlow = string(a.Parallel.SequenceFlow)
		}
	}
	return res
}

func toProcessDefinitionDetail(pd *model.ProcessDefinition, activities []*model.ActivityDefinition) ProcessDefinitionDetail {
	res := ProcessDefinitionDetail{
		ProcessDefinitionSimple: toProcessDefinitionSimple(pd),
		Activities:              make([]ActivityDefinition, 0, len(activities)),
		Kpis:                    toKpis(pd.Kpis),
	}
	for _, a := range activities {
		res.Activities = append(res.Activities, toActivityDefinition(pd, a))
	}
	return res
}

func toProcessInstance(pi runtime.ProcessInstance) ProcessInstance {
	return ProcessInstance{
		Key:                 pi.Key,
		Name:                pi.Name,
		Description:         pi.Description,
		ProcessDefinitionId: pi.ProcessDefinitionId,
		CurrentActivityId:   pi.CurrentActivityId,
		State:               string(pi.State),
		CreatedAt:           pi.CreatedAt,
		UpdatedAt:           pi.UpdatedAt,
	}
}

func toArtifact(a runtime.Artifact) Artifact {
	res := Artifact{
		Id:                   a.Id,
		Name:                 a.Name,
		ContentType:          a.ContentType,
		Content:              a.Content,
		ArtifactDefinitionId: a.ArtifactDefinitionId,
		CreationDate:         timePtr(a.CreationDate),
		CommitDate:           timePtr(a.CommitDate),
	}
	if len(a.SharedInformation) > 0 {
		res.SharedInformation = make(map[string]string, len(a.SharedInformation))
		for _, p := range a.SharedInformation {
			res.SharedInformation[p.Key] = p.Value
		}
	}
	return res
}

// fromArtifact keeps only what a client may set, ids and dates are assigned by the engine.
func fromArtifact(a Artifact) runtime.Artifact {
	res := runtime.Artifact{
		Name:        a.Name,
		ContentType: a.ContentType,
		Content:     a.Content,
	}
	for _, k := range sortedKeys(a.SharedInformation) {
		res.SharedInformation = append(res.SharedInformation, runtime.StringPair{Key: k, Value: a.SharedInformation[k]})
	}
	return res
}

func toKpiResults(results []process.KpiResult) []KpiResult {
	res := make([]KpiResult, 0, len(results))
	for _, r := range results {
		res = append(res, KpiResult{
			Name:            r.Kpi.Name,
			Level:           r.Level,
			ComplianceLevel: r.ComplianceLevel,
			Value:           r.Value,
		})
	}
	return res
}
