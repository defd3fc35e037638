package inmemory

import (
	"context"
	"math/rand"
	"slices"
	"sync"

	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage"
)

// Storage keeps process information in memory,
// please use NewStorage to create a new object of this type.
type Storage struct {
	mu               sync.RWMutex
	ProcessInstances map[int64]runtime.ProcessInstance
}

func NewStorage() *Storage {
	return &Storage{
		ProcessInstances: make(map[int64]runtime.ProcessInstance),
	}
}

var _ storage.Storage = &Storage{}

func (mem *Storage) GenerateId() int64 {
	return rand.Int63()
}

func (mem *Storage) Close() error {
	return nil
}

var _ storage.ProcessInstanceStorageReader = &Storage{}

func (mem *Storage) FindProcessInstanceByKey(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res, ok := mem.ProcessInstances[processInstanceKey]
	if !ok {
		return res, storage.ErrNotFound
	}
	return res, nil
}

func (mem *Storage) FindProcessInstancesByDefinitionId(ctx context.Context, processDefinitionId string) ([]runtime.ProcessInstance, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.ProcessInstance, 0)
	for _, pi := range mem.ProcessInstances {
		if pi.ProcessDefinitionId != processDefinitionId {
			continue
		}
		res = append(res, pi)
	}
	sortByCreation(res)
	return res, nil
}

func (mem *Storage) FindProcessInstances(ctx context.Context) ([]runtime.ProcessInstance, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.ProcessInstance, 0, len(mem.ProcessInstances))
	for _, pi := range mem.ProcessInstances {
		res = append(res, pi)
	}
	sortByCreation(res)
	return res, nil
}

var _ storage.ProcessInstanceStorageWriter = &Storage{}

func (mem *Storage) SaveProcessInstance(ctx context.Context, processInstance runtime.ProcessInstance) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	processInstance.ArtifactsContent = slices.Clone(processInstance.ArtifactsContent)
	mem.ProcessInstances[processInstance.Key] = processInstance
	return nil
}

func (mem *Storage) DeleteProcessInstance(ctx context.Context, processInstanceKey int64) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	if _, ok := mem.ProcessInstances[processInstanceKey]; !ok {
		return storage.ErrNotFound
	}
	delete(mem.ProcessInstances, processInstanceKey)
	return nil
}

func sortByCreation(instances []runtime.ProcessInstance) {
	slices.SortFunc(instances, func(a, b runtime.ProcessInstance) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
}
