// Package model holds the static process definition graph.
//
// A ProcessDefinition owns its activities in an arena keyed by activity id. Edges between
// activities are plain ids, never pointers, so a definition can be copied, cached and
// traversed without reference cycles.
package model

import "time"

type ProcessDefinition struct {
	// Id is derived from the name of the file the definition was read from.
	Id          string
	Name        string
	Description string
	Version     string
	Enabled     bool
	// CreationDate is optional, the zero time when the document does not carry it.
	CreationDate time.Time
	// Definition is the raw XML document.
	Definition []byte

	StartActivityId string
	Activities      map[string]*ActivityDefinition
	Actors          map[string]*Actor

	Kpis       []Kpi
	KpiActions map[string]KpiAction
}

// StartActivity returns the activity every process instance starts at.
func (pd *ProcessDefinition) StartActivity() *ActivityDefinition {
	return pd.Activities[pd.StartActivityId]
}

// Activity returns the activity with the given id or nil.
func (pd *ProcessDefinition) Activity(id string) *ActivityDefinition {
	if id == "" {
		return nil
	}
	return pd.Activities[id]
}

// Actor returns the actor assigned to the activity or nil when the activity has none.
func (pd *ProcessDefinition) Actor(activity *ActivityDefinition) *Actor {
	if activity == nil || activity.ActorId == "" {
		return nil
	}
	return pd.Actors[activity.ActorId]
}

// FindActivityByArtifactDefinition returns the activity owning the artifact definition or nil.
func (pd *ProcessDefinition) FindActivityByArtifactDefinition(artifactDefinitionId string) *ActivityDefinition {
	for _, a := range pd.Activities {
		if a.ArtifactDefinition != nil && a.ArtifactDefinition.Id == artifactDefinitionId {
			return a
		}
	}
	return nil
}

// Actor is the role responsible for an activity.
type Actor struct {
	Id   string
	Name string
	Type string
}
