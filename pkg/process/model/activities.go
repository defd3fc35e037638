package model

import "strings"

type ActivityType string

const (
	ActivityTypeNormal      ActivityType = "NORMAL"
	ActivityTypeStart       ActivityType = "START"
	ActivityTypeEnd         ActivityType = "END"
	ActivityTypeConditional ActivityType = "CONDITIONAL"
	ActivityTypeParallel    ActivityType = "PARALLEL"
)

// ParseActivityType accepts the type names case-insensitively as well as the numeric codes
// 1 (normal), 2 (start), 3 (end), 4 (conditional) and 5 (parallel).
func ParseActivityType(s string) (ActivityType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NORMAL", "1":
		return ActivityTypeNormal, true
	case "START", "2":
		return ActivityTypeStart, true
	case "END", "3":
		return ActivityTypeEnd, true
	case "CONDITIONAL", "4":
		return ActivityTypeConditional, true
	case "PARALLEL", "5":
		return ActivityTypeParallel, true
	}
	return "", false
}

// ActivityKind is the discriminant of the ActivityDefinition variants.
type ActivityKind int

const (
	KindSimple ActivityKind = iota
	KindConditional
	KindParallel
)

func (k ActivityKind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindConditional:
		return "conditional"
	case KindParallel:
		return "parallel"
	}
	return "unknown"
}

type SequenceFlow string

const (
	SequenceFlowFork SequenceFlow = "FORK"
	SequenceFlowJoin SequenceFlow = "JOIN"
)

// ParseSequenceFlow accepts FORK/JOIN case-insensitively and the numeric codes 1 (fork) and 2 (join).
func ParseSequenceFlow(s string) (SequenceFlow, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FORK", "1":
		return SequenceFlowFork, true
	case "JOIN", "2":
		return SequenceFlowJoin, true
	}
	return "", false
}

// ActivityDefinition is one node of the process graph.
//
// The variant is selected by Kind(): simple activities (normal, start, end) only use NextActivityId,
// conditional activities carry Conditional and parallel activities carry Parallel.
type ActivityDefinition struct {
	Id          string
	Name        string
	Description string
	Type        ActivityType
	Color       string
	// Confirm asks the user for a confirmation before the activity is committed.
	Confirm bool
	// Idling activities wait for an external event and do not require user input.
	Idling bool

	// ActorId references ProcessDefinition.Actors, empty when unassigned.
	ActorId            string
	ArtifactDefinition *ArtifactDefinition
	Kpis               []Kpi

	NextActivityId string
	Conditional    *ConditionalBranch
	Parallel       *ParallelFlow
}

// ConditionalBranch holds the two outcomes of a conditional activity.
// Both ids stay empty when the definition did not declare exactly two paths.
type ConditionalBranch struct {
	IfTrueActivityId  string
	IfFalseActivityId string
}

func (c *ConditionalBranch) Resolved() bool {
	return c != nil && c.IfTrueActivityId != "" && c.IfFalseActivityId != ""
}

// ParallelFlow describes one side of a fork/join pair.
// A fork lists the parallel paths, a join lists the activity that follows the merge.
type ParallelFlow struct {
	SequenceFlow SequenceFlow
	Paths        []string
	// IncomingSequenceFlowId on a join references the fork it merges.
	IncomingSequenceFlowId string
	// OutgoingSequenceFlowId on a fork references the join it is merged by.
	OutgoingSequenceFlowId string
}

func (a *ActivityDefinition) Kind() ActivityKind {
	switch a.Type {
	case ActivityTypeConditional:
		return KindConditional
	case ActivityTypeParallel:
		return KindParallel
	default:
		return KindSimple
	}
}

func (a *ActivityDefinition) IsEnd() bool {
	return a.Type == ActivityTypeEnd
}

func (a *ActivityDefinition) IsFork() bool {
	return a.Kind() == KindParallel && a.Parallel != nil && a.Parallel.SequenceFlow == SequenceFlowFork
}

func (a *ActivityDefinition) IsJoin() bool {
	return a.Kind() == KindParallel && a.Parallel != nil && a.Parallel.SequenceFlow == SequenceFlowJoin
}

// Successors returns the ids of all activities directly reachable from this one.
func (a *ActivityDefinition) Successors() []string {
	var ids []string
	switch a.Kind() {
	case KindSimple:
		if a.NextActivityId != "" {
			ids = append(ids, a.NextActivityId)
		}
	case KindConditional:
		if a.Conditional.Resolved() {
			ids = append(ids, a.Conditional.IfTrueActivityId, a.Conditional.IfFalseActivityId)
		}
	case KindParallel:
		if a.Parallel != nil {
			ids = append(ids, a.Parallel.Paths...)
		}
	}
	return ids
}
