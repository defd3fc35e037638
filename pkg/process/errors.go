// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package process

import (
	"errors"
)

var (
	ErrProcessDefinitionNotFound  = errors.New("process definition not found")
	ErrActivityDefinitionNotFound = errors.New("activity definition not found")
	ErrProcessInstanceNotFound    = errors.New("process instance not found")
	ErrArtifactNotFound           = errors.New("artifact not found")

	ErrProcessDefinitionInUse     = errors.New("process definition in use")
	ErrProcessDefinitionDisabled  = errors.New("process definition disabled")
	ErrInvalidProcessDefinitionId = errors.New("invalid process definition id")
	ErrProcessInstanceCompleted   = errors.New("process instance completed")
	ErrArtifactRequired           = errors.New("artifact required")
	ErrNoArtifactDefinition       = errors.New("activity has no artifact definition")
	ErrJoinNotFound               = errors.New("join activity not found")
)

// EngineError carries a localized message for one of the sentinel errors above.
type EngineError struct {
	Msg string
	Err error
}

func (e *EngineError) Error() string {
	return e.Msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a process definition, activity, instance or artifact is absent.
// Err is one of the not found sentinels.
type NotFoundError struct {
	Id  string
	Msg string
	Err error
}

func (e *NotFoundError) Error() string {
	return e.Msg
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ProcessDefinitionMalformedError aborts the load of a process definition, nothing of the
// definition is kept.
type ProcessDefinitionMalformedError struct {
	ProcessDefinitionId string
	Msg                 string
	Err                 error
}

func (e *ProcessDefinitionMalformedError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ProcessDefinitionMalformedError) Unwrap() error {
	return e.Err
}

// ActivityNotCurrentError is returned by commits of any activity other than the cursor of the instance.
type ActivityNotCurrentError struct {
	ProcessInstanceKey int64
	ActivityId         string
	CurrentActivityId  string
	Msg                string
}

func (e *ActivityNotCurrentError) Error() string {
	return e.Msg
}

// ConditionNotMetError is returned when a pre or post condition script of an artifact
// definition did not evaluate to true.
type ConditionNotMetError struct {
	ArtifactDefinitionId string
	Postcondition        bool
	Msg                  string
}

func (e *ConditionNotMetError) Error() string {
	return e.Msg
}
