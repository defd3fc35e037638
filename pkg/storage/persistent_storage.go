package storage

import (
	"context"
	"errors"

	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
)

var ErrNotFound = errors.New("not found")

// Storage persists process instances together with their artifact snapshots.
// Process definitions are not stored here, they are read from the definition repository.
type Storage interface {
	ProcessInstanceStorageReader
	ProcessInstanceStorageWriter

	GenerateId() int64
	Close() error
}

type ProcessInstanceStorageReader interface {
	FindProcessInstanceByKey(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error)

	// FindProcessInstancesByDefinitionId returns the instances of one process definition ordered by creation time
	FindProcessInstancesByDefinitionId(ctx context.Context, processDefinitionId string) ([]runtime.ProcessInstance, error)

	// FindProcessInstances returns every stored instance ordered by creation time
	FindProcessInstances(ctx context.Context) ([]runtime.ProcessInstance, error)
}

type ProcessInstanceStorageWriter interface {
	// SaveProcessInstance persists the instance
	// and potentially overwrites prior data stored with given process instance key
	SaveProcessInstance(ctx context.Context, processInstance runtime.ProcessInstance) error

	// DeleteProcessInstance removes the instance, ErrNotFound when there is no such instance
	DeleteProcessInstance(ctx context.Context, processInstanceKey int64) error
}
