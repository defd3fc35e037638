package process

import (
	"sort"

	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
)

// nextActivity computes the activity following the given one.
//
// Simple activities follow their next activity, end activities return themselves. Conditional
// activities pick their true or false branch by the value of their artifact. A fork returns its join,
// the parallel paths are walked by the caller, and a join returns its first path. A next activity that
// is a fork is resolved to its join as well.
func (engine *Engine) nextActivity(pd *model.ProcessDefinition, activity *model.ActivityDefinition, artifacts map[string]runtime.Artifact) (*model.ActivityDefinition, error) {
	var nextId string
	switch activity.Kind() {
	case model.KindSimple:
		if activity.IsEnd() {
			return activity, nil
		}
		nextId = activity.NextActivityId
	case model.KindConditional:
		if activity.Conditional.Resolved() {
			if activityConditionalValue(activity, artifacts) {
				nextId = activity.Conditional.IfTrueActivityId
			} else {
				nextId = activity.Conditional.IfFalseActivityId
			}
		}
	case model.KindParallel:
		switch {
		case activity.IsFork():
			return engine.joinForFork(pd, activity)
		case activity.IsJoin() && len(activity.Parallel.Paths) > 0:
			nextId = activity.Parallel.Paths[0]
		}
	}

	next := pd.Activity(nextId)
	if next == nil {
		return nil, engine.activityDefinitionNotFound(pd.Id, nextId)
	}
	if next.IsFork() {
		return engine.joinForFork(pd, next)
	}
	return next, nil
}

// joinForFork returns the join whose incoming sequence flow is the fork,
// falling back to the outgoing sequence flow of the fork.
func (engine *Engine) joinForFork(pd *model.ProcessDefinition, fork *model.ActivityDefinition) (*model.ActivityDefinition, error) {
	ids := make([]string, 0, len(pd.Activities))
	for id := range pd.Activities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := pd.Activities[id]
		if a.IsJoin() && a.Parallel.IncomingSequenceFlowId == fork.Id {
			return a, nil
		}
	}
	if join := pd.Activity(fork.Parallel.OutgoingSequenceFlowId); join != nil && join.IsJoin() {
		return join, nil
	}
	return nil, engine.engineError(ErrJoinNotFound, "process.errors.join-not-found", fork.Id)
}

// activitiesPath walks the graph from the start activity the way the instance went so far and
// stops at its current activity.
//
// Conditionals follow the value of their artifact and end the walk when there is none. Forks walk
// every parallel path up to their join and continue after the join. Activities are listed once, which
// cuts loops through conditionals.
func (engine *Engine) activitiesPath(pd *model.ProcessDefinition, cursor string, artifacts map[string]runtime.Artifact) []*model.ActivityDefinition {
	var path []*model.ActivityDefinition
	visited := map[string]bool{}

	// walk returns true once the cursor was reached, stopAt is the join closing the enclosing fork
	var walk func(id string, stopAt string) bool
	walk = func(id string, stopAt string) bool {
		activity := pd.Activity(id)
		if activity == nil || id == stopAt || visited[id] {
			return false
		}
		visited[id] = true
		path = append(path, activity)
		if id == cursor {
			return true
		}

		switch activity.Kind() {
		case model.KindSimple:
			if activity.IsEnd() {
				return false
			}
			return walk(activity.NextActivityId, stopAt)
		case model.KindConditional:
			if !activity.Conditional.Resolved() || activity.ArtifactDefinition == nil {
				return false
			}
			if _, ok := artifacts[activity.ArtifactDefinition.Id]; !ok {
				return false
			}
			if activityConditionalValue(activity, artifacts) {
				return walk(activity.Conditional.IfTrueActivityId, stopAt)
			}
			return walk(activity.Conditional.IfFalseActivityId, stopAt)
		case model.KindParallel:
			if activity.IsFork() {
				join, err := engine.joinForFork(pd, activity)
				if err != nil {
					return false
				}
				for _, p := range activity.Parallel.Paths {
					if walk(p, join.Id) {
						return true
					}
				}
				return walk(join.Id, stopAt)
			}
			if activity.IsJoin() && len(activity.Parallel.Paths) > 0 {
				return walk(activity.Parallel.Paths[0], stopAt)
			}
		}
		return false
	}

	walk(pd.StartActivityId, "")
	return path
}
