package script

import (
	"context"
	"sync"
	"time"
)

// idle runners above the minimum are dropped on every cleanup tick
const cleanupInterval = 10 * time.Minute

type Runner interface {
	Runner()
}

type RunnerFactory interface {
	NewRunner() Runner
}

// RunnerPool hands out script runners, a runner is used by one goroutine at a time.
type RunnerPool struct {
	pool          chan Runner
	runnerFactory RunnerFactory
	active        int
	mu            *sync.Mutex
	maxSize       int // max amount of active runners
	minSize       int // min amount of active runners
}

func NewRunnerPool(ctx context.Context, runnerFactory RunnerFactory, maxSize int, minSize int) *RunnerPool {
	if maxSize < minSize {
		panic("runner pool max size is smaller than runner pool min size")
	}
	if maxSize < 1 {
		maxSize = 1
	}

	p := RunnerPool{
		pool:          make(chan Runner, maxSize),
		runnerFactory: runnerFactory,
		mu:            &sync.Mutex{},
		maxSize:       maxSize,
		minSize:       minSize,
	}

	for i := 0; i < minSize; i++ {
		p.pool <- p.runnerFactory.NewRunner()
		p.active++
	}

	go p.cleanup(ctx)
	return &p
}

func (p *RunnerPool) cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.shrink()
		case <-ctx.Done():
			return
		}
	}
}

// shrink drops idle runners until only minSize remain
func (p *RunnerPool) shrink() {
	for {
		p.mu.Lock()
		if p.active <= p.minSize {
			p.mu.Unlock()
			return
		}
		select {
		case <-p.pool:
			p.active--
			p.mu.Unlock()
		default:
			p.mu.Unlock()
			return
		}
	}
}

func (p *RunnerPool) GetRunnerFromPool() Runner {
	var runner Runner
	select {
	case runner = <-p.pool:
	default:
		p.mu.Lock()
		if p.active < p.maxSize {
			runner = p.runnerFactory.NewRunner()
			p.active++
		}
		p.mu.Unlock()
		if runner == nil {
			runner = <-p.pool
		}
	}
	return runner
}

func (p *RunnerPool) ReturnRunnerToPool(runner Runner) {
	select {
	case p.pool <- runner:
	default:
		// pool is full, drop the runner
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}

// Active returns the amount of runners created and not yet dropped.
func (p *RunnerPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
