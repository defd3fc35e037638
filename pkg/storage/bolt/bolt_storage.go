// Package bolt stores process instances in an embedded bbolt database.
//
// Every instance is a JSON document in the process_instances bucket keyed by its big endian key.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
	"github.com/indigo423/kuwaiba-sub029/pkg/storage"
	bolt "go.etcd.io/bbolt"
)

var processInstancesBucket = []byte("process_instances")

type Storage struct {
	db     *bolt.DB
	logger hclog.Logger
}

var _ storage.Storage = &Storage{}

// Open creates the database file (and its directory) when it does not exist yet.
func Open(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(processInstancesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", processInstancesBucket, err)
	}
	s := &Storage{
		db:     db,
		logger: hclog.Default().Named("bolt-storage"),
	}
	s.logger.Debug("opened process instance database", "path", path)
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) GenerateId() int64 {
	return rand.Int63()
}

func key(processInstanceKey int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(processInstanceKey))
	return b
}

var _ storage.ProcessInstanceStorageReader = &Storage{}

func (s *Storage) FindProcessInstanceByKey(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error) {
	var res runtime.ProcessInstance
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(processInstancesBucket).Get(key(processInstanceKey))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &res)
	})
	return res, err
}

func (s *Storage) FindProcessInstancesByDefinitionId(ctx context.Context, processDefinitionId string) ([]runtime.ProcessInstance, error) {
	return s.scan(func(pi runtime.ProcessInstance) bool {
		return pi.ProcessDefinitionId == processDefinitionId
	})
}

func (s *Storage) FindProcessInstances(ctx context.Context) ([]runtime.ProcessInstance, error) {
	return s.scan(func(runtime.ProcessInstance) bool { return true })
}

func (s *Storage) scan(match func(runtime.ProcessInstance) bool) ([]runtime.ProcessInstance, error) {
	res := make([]runtime.ProcessInstance, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(processInstancesBucket).ForEach(func(k, v []byte) error {
			var pi runtime.ProcessInstance
			if err := json.Unmarshal(v, &pi); err != nil {
				return fmt.Errorf("failed to unmarshal process instance %d: %w", int64(binary.BigEndian.Uint64(k)), err)
			}
			if match(pi) {
				res = append(res, pi)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(res, func(a, b runtime.ProcessInstance) int {
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
	return res, nil
}

var _ storage.ProcessInstanceStorageWriter = &Storage{}

func (s *Storage) SaveProcessInstance(ctx context.Context, processInstance runtime.ProcessInstance) error {
	data, err := json.Marshal(processInstance)
	if err != nil {
		return fmt.Errorf("failed to marshal process instance %d: %w", processInstance.Key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(processInstancesBucket).Put(key(processInstance.Key), data)
	})
}

func (s *Storage) DeleteProcessInstance(ctx context.Context, processInstanceKey int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(processInstancesBucket)
		k := key(processInstanceKey)
		if b.Get(k) == nil {
			return storage.ErrNotFound
		}
		return b.Delete(k)
	})
}
