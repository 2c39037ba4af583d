package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var (
	ErrTaskExists     = errors.New("task already exists")
	ErrTaskUnknownDep = errors.New("task depends on unknown task")
	ErrTaskCycle      = errors.New("task graph has a cycle")
)

// TaskMiddleware wraps the execution of every task in a graph. It must call
// next exactly once and return its error.
type TaskMiddleware func(ctx context.Context, name string, next func(context.Context) error) error

type task struct {
	name string
	deps []string
	run  func(context.Context) error
}

// TaskGraph runs named tasks concurrently, starting each one only after all
// of its declared dependencies completed successfully. The first error
// cancels every task that has not started yet.
type TaskGraph struct {
	tasks      []task
	index      map[string]int
	middleware []TaskMiddleware
}

// NewTaskGraph returns an empty graph.
func NewTaskGraph() *TaskGraph {
	return &TaskGraph{index: make(map[string]int)}
}

// Add registers a task. Dependencies may be added later but must exist by
// the time Run is called.
func (g *TaskGraph) Add(name string, run func(context.Context) error, deps ...string) error {
	if _, exists := g.index[name]; exists {
		return fmt.Errorf("%w: %q", ErrTaskExists, name)
	}
	g.index[name] = len(g.tasks)
	g.tasks = append(g.tasks, task{name: name, deps: deps, run: run})
	return nil
}

// Use appends a middleware applied around every task.
func (g *TaskGraph) Use(mw TaskMiddleware) {
	if mw != nil {
		g.middleware = append(g.middleware, mw)
	}
}

// Order returns task names in a valid topological order, or an error when a
// dependency is missing or the graph has a cycle.
func (g *TaskGraph) Order() ([]string, error) {
	indegree := make([]int, len(g.tasks))
	dependents := make([][]int, len(g.tasks))
	for i, t := range g.tasks {
		for _, dep := range t.deps {
			j, ok := g.index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %q -> %q", ErrTaskUnknownDep, t.name, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(g.tasks))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]string, 0, len(g.tasks))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, g.tasks[i].name)
		for _, k := range dependents[i] {
			indegree[k]--
			if indegree[k] == 0 {
				queue = append(queue, k)
			}
		}
	}
	if len(order) != len(g.tasks) {
		return nil, ErrTaskCycle
	}
	return order, nil
}

// Run executes the graph and blocks until every task finished or one failed.
func (g *TaskGraph) Run(ctx context.Context) error {
	if _, err := g.Order(); err != nil {
		return err
	}

	done := make([]chan struct{}, len(g.tasks))
	for i := range done {
		done[i] = make(chan struct{})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range g.tasks {
		t := g.tasks[i]
		eg.Go(func() error {
			for _, dep := range t.deps {
				select {
				case <-done[g.index[dep]]:
				case <-egCtx.Done():
					return egCtx.Err()
				}
			}
			if err := egCtx.Err(); err != nil {
				return err
			}
			if err := g.wrap(t)(egCtx); err != nil {
				return fmt.Errorf("task %s: %w", t.name, err)
			}
			close(done[g.index[t.name]])
			return nil
		})
	}
	return eg.Wait()
}

func (g *TaskGraph) wrap(t task) func(context.Context) error {
	run := t.run
	for i := len(g.middleware) - 1; i >= 0; i-- {
		mw := g.middleware[i]
		next := run
		run = func(ctx context.Context) error {
			return mw(ctx, t.name, next)
		}
	}
	return run
}

// defaultChunk is the number of slots per work item when unset.
const defaultChunk = 256

// parallelFor splits [0, n) into chunks and runs fn on them with at most
// workers goroutines. Chunks write disjoint index ranges, so fn needs no
// locking as long as it only writes slots in [lo, hi).
func parallelFor(ctx context.Context, n, workers, chunk int, fn func(lo, hi int)) error {
	if n <= 0 {
		return ctx.Err()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if chunk <= 0 {
		chunk = defaultChunk
	}
	if n <= chunk || workers == 1 {
		fn(0, n)
		return ctx.Err()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		if egCtx.Err() != nil {
			break
		}
		lo, hi := lo, min(lo+chunk, n)
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			fn(lo, hi)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
