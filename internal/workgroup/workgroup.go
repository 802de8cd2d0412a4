// Package workgroup runs fan-out/fan-in task groups on a shared ants pool.
package workgroup

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
)

// Pool schedules tasks on an ants worker pool. A task that cannot get a
// worker runs on its own goroutine instead, so nested groups never starve.
// The zero value and a nil *Pool run every task on its own goroutine.
type Pool struct {
	p *ants.Pool
}

// NewPool creates a pool with the given capacity; size <= 0 means unbounded.
func NewPool(size int) (*Pool, error) {
	p, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("workgroup: new pool: %w", err)
	}
	return &Pool{p: p}, nil
}

// Go runs fn asynchronously.
func (p *Pool) Go(fn func()) {
	if p == nil || p.p == nil {
		go fn()
		return
	}
	if err := p.p.Submit(fn); err != nil {
		go fn()
	}
}

// Running returns the number of busy pool workers.
func (p *Pool) Running() int {
	if p == nil || p.p == nil {
		return 0
	}
	return p.p.Running()
}

func (p *Pool) Release() {
	if p == nil || p.p == nil {
		return
	}
	p.p.Release()
}

// Group joins a set of tasks started with Go.
type Group struct {
	pool *Pool
	wg   sync.WaitGroup

	mu  sync.Mutex
	err error
}

func (p *Pool) Group() *Group {
	return &Group{pool: p}
}

// Go starts fn. A panic inside fn is turned into an error.
func (g *Group) Go(fn func() error) {
	g.wg.Add(1)
	g.pool.Go(func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.append(fmt.Errorf("workgroup: task panicked: %v", r))
			}
		}()
		if err := fn(); err != nil {
			g.append(err)
		}
	})
}

func (g *Group) append(err error) {
	g.mu.Lock()
	g.err = multierr.Append(g.err, err)
	g.mu.Unlock()
}

// Wait blocks until every task returned and combines their errors.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
