package runtime

import (
	"time"
)

type ProcessInstanceState string

const (
	ProcessInstanceStateActive    ProcessInstanceState = "ACTIVE"
	ProcessInstanceStateCompleted ProcessInstanceState = "COMPLETED"
)

// ProcessInstance is one execution of a process definition.
// CurrentActivityId is the cursor driving the execution, ArtifactsContent the XML snapshot
// of every artifact submitted so far.
type ProcessInstance struct {
	Key                 int64                `json:"k"`
	Name                string               `json:"n"`
	Description         string               `json:"d,omitempty"`
	ProcessDefinitionId string               `json:"pd"`
	CurrentActivityId   string               `json:"ca"`
	ArtifactsContent    []byte               `json:"ac,omitempty"`
	State               ProcessInstanceState `json:"s"`
	CreatedAt           time.Time            `json:"c"`
	UpdatedAt           time.Time            `json:"u"`
}

func (pi *ProcessInstance) GetInstanceKey() int64 {
	return pi.Key
}

// GetState returns one of [ Active, Completed ]
func (pi *ProcessInstance) GetState() ProcessInstanceState {
	return pi.State
}

type StringPair struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// Artifact is the data a user submitted for one activity of one process instance.
type Artifact struct {
	Id                   int64
	Name                 string
	ContentType          string
	Content              []byte
	ArtifactDefinitionId string
	CreationDate         time.Time
	// CommitDate is zero until the owning activity was committed.
	CommitDate        time.Time
	SharedInformation []StringPair
}

// SharedValue returns the value of the first shared pair with the given key.
func (a *Artifact) SharedValue(key string) (string, bool) {
	for _, p := range a.SharedInformation {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// SetSharedValue overwrites the pair with the given key or appends a new one.
func (a *Artifact) SetSharedValue(key, value string) {
	for i, p := range a.SharedInformation {
		if p.Key == key {
			a.SharedInformation[i].Value = value
			return
		}
	}
	a.SharedInformation = append(a.SharedInformation, StringPair{Key: key, Value: value})
}

// Clone returns a deep copy, callers receive clones so they can not mutate engine state.
func (a Artifact) Clone() Artifact {
	c := a
	if a.Content != nil {
		c.Content = append([]byte(nil), a.Content...)
	}
	if a.SharedInformation != nil {
		c.SharedInformation = append([]StringPair(nil), a.SharedInformation...)
	}
	return c
}
