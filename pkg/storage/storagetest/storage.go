// Package storagetest is the shared test suite every storage.Storage implementation runs.
package storagetest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	stdruntime "runtime"

	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage"
	"github.com/stretchr/testify/assert"
)

type StorageTestFunc func(s storage.Storage, t *testing.T) func(t *testing.T)

type StorageTester struct {
	processInstance runtime.ProcessInstance
}

func (st *StorageTester) GetTests() map[string]StorageTestFunc {
	tests := map[string]StorageTestFunc{}

	// all test functions need to be registered here
	functions := []StorageTestFunc{
		st.TestProcessInstanceStorageWriter,
		st.TestProcessInstanceStorageReader,
		st.TestProcessInstanceOverwrite,
		st.TestProcessInstancesByDefinition,
		st.TestProcessInstanceDelete,
		st.TestProcessInstanceNotFound,
	}

	for _, function := range functions {
		funcName := getFunctionName(function)
		strippedName := funcName[strings.LastIndex(funcName, ".")+1:]
		strippedName = strings.TrimSuffix(strippedName, "-fm")
		tests[strippedName] = function
	}
	return tests
}

func getFunctionName(i any) string {
	return stdruntime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
}

func getProcessInstance(r int64, definitionId string) runtime.ProcessInstance {
	return runtime.ProcessInstance{
		Key:                 r,
		Name:                fmt.Sprintf("instance-%d", r),
		Description:         "created by the storage test suite",
		ProcessDefinitionId: definitionId,
		CurrentActivityId:   "1",
		ArtifactsContent:    []byte(fmt.Sprintf(`<processInstance><artifacts><artifact id="%d"/></artifacts></processInstance>`, r)),
		State:               runtime.ProcessInstanceStateActive,
		CreatedAt:           time.Now().Truncate(time.Millisecond),
		UpdatedAt:           time.Now().Truncate(time.Millisecond),
	}
}

// PrepareTestData will prepare common data for the tests
func (st *StorageTester) PrepareTestData(s storage.Storage, t *testing.T) {
	r := s.GenerateId()

	st.processInstance = getProcessInstance(r, fmt.Sprintf("definition-%d", r))
	err := s.SaveProcessInstance(t.Context(), st.processInstance)
	assert.NoError(t, err)
}

func (st *StorageTester) TestProcessInstanceStorageWriter(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()

		inst := getProcessInstance(r, st.processInstance.ProcessDefinitionId)

		err := s.SaveProcessInstance(t.Context(), inst)
		assert.NoError(t, err)
	}
}

func (st *StorageTester) TestProcessInstanceStorageReader(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		instance, err := s.FindProcessInstanceByKey(t.Context(), st.processInstance.Key)
		assert.NoError(t, err)
		assert.Equal(t, st.processInstance.Key, instance.Key)
		assert.Equal(t, st.processInstance.Name, instance.Name)
		assert.Equal(t, st.processInstance.ProcessDefinitionId, instance.ProcessDefinitionId)
		assert.Equal(t, st.processInstance.CurrentActivityId, instance.CurrentActivityId)
		assert.Equal(t, st.processInstance.ArtifactsContent, instance.ArtifactsContent)
		assert.Equal(t, st.processInstance.State, instance.State)
		assert.True(t, st.processInstance.CreatedAt.Equal(instance.CreatedAt))

		all, err := s.FindProcessInstances(t.Context())
		assert.NoError(t, err)
		assert.NotEmpty(t, all)
	}
}

func (st *StorageTester) TestProcessInstanceOverwrite(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		inst := getProcessInstance(r, fmt.Sprintf("definition-%d", r))
		err := s.SaveProcessInstance(t.Context(), inst)
		assert.NoError(t, err)

		inst.CurrentActivityId = "2"
		inst.State = runtime.ProcessInstanceStateCompleted
		err = s.SaveProcessInstance(t.Context(), inst)
		assert.NoError(t, err)

		instance, err := s.FindProcessInstanceByKey(t.Context(), r)
		assert.NoError(t, err)
		assert.Equal(t, "2", instance.CurrentActivityId)
		assert.Equal(t, runtime.ProcessInstanceStateCompleted, instance.State)

		instances, err := s.FindProcessInstancesByDefinitionId(t.Context(), inst.ProcessDefinitionId)
		assert.NoError(t, err)
		assert.Len(t, instances, 1)
	}
}

func (st *StorageTester) TestProcessInstancesByDefinition(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		definitionId := fmt.Sprintf("definition-%d", s.GenerateId())
		first := getProcessInstance(s.GenerateId(), definitionId)
		second := getProcessInstance(s.GenerateId(), definitionId)
		second.CreatedAt = first.CreatedAt.Add(time.Second)

		assert.NoError(t, s.SaveProcessInstance(t.Context(), second))
		assert.NoError(t, s.SaveProcessInstance(t.Context(), first))

		instances, err := s.FindProcessInstancesByDefinitionId(t.Context(), definitionId)
		assert.NoError(t, err)
		assert.Len(t, instances, 2)
		assert.Equal(t, first.Key, instances[0].Key)
		assert.Equal(t, second.Key, instances[1].Key)

		instances, err = s.FindProcessInstancesByDefinitionId(t.Context(), "no-such-definition")
		assert.NoError(t, err)
		assert.NotNil(t, instances)
		assert.Empty(t, instances)
	}
}

func (st *StorageTester) TestProcessInstanceDelete(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		inst := getProcessInstance(r, st.processInstance.ProcessDefinitionId)
		assert.NoError(t, s.SaveProcessInstance(t.Context(), inst))

		err := s.DeleteProcessInstance(t.Context(), r)
		assert.NoError(t, err)

		_, err = s.FindProcessInstanceByKey(t.Context(), r)
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		err = s.DeleteProcessInstance(t.Context(), r)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	}
}

func (st *StorageTester) TestProcessInstanceNotFound(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		_, err := s.FindProcessInstanceByKey(t.Context(), -1)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}
