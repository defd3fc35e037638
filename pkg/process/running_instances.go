// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package process

import (
	"sync"
)

type RunningInstance struct {
	mu *sync.Mutex
	// number of goroutines holding or waiting for mu
	refs int
}

// RunningInstancesCache serializes the mutations of one process instance.
// Entries only live while somebody holds or waits for the instance lock.
type RunningInstancesCache struct {
	processInstances map[int64]*RunningInstance
	mu               *sync.Mutex
}

func newRunningInstancesCache() *RunningInstancesCache {
	return &RunningInstancesCache{
		processInstances: map[int64]*RunningInstance{},
		mu:               &sync.Mutex{},
	}
}

func (c *RunningInstancesCache) lockInstance(processInstanceKey int64) {
	c.mu.Lock()
	ins, ok := c.processInstances[processInstanceKey]
	if !ok {
		ins = &RunningInstance{
			mu: &sync.Mutex{},
		}
		c.processInstances[processInstanceKey] = ins
	}
	ins.refs++
	c.mu.Unlock()

	ins.mu.Lock()
}

func (c *RunningInstancesCache) unlockInstance(processInstanceKey int64) {
	c.mu.Lock()
	ins := c.processInstances[processInstanceKey]
	ins.refs--
	if ins.refs == 0 {
		delete(c.processInstances, processInstanceKey)
	}
	c.mu.Unlock()

	ins.mu.Unlock()
}

// size returns the amount of instances currently locked or waited for
func (c *RunningInstancesCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.processInstances)
}
