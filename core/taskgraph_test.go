package core

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

func noopTask(context.Context) error { return nil }

func TestTaskGraph_OrderRespectsDependencies(t *testing.T) {
	g := NewTaskGraph()
	mustAdd(t, g, "c", noopTask, "a", "b")
	mustAdd(t, g, "a", noopTask)
	mustAdd(t, g, "b", noopTask, "a")

	order, err := g.Order()
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	pos := func(name string) int { return slices.Index(order, name) }
	if !(pos("a") < pos("b") && pos("b") < pos("c")) {
		t.Fatalf("order = %v", order)
	}
}

func TestTaskGraph_Errors(t *testing.T) {
	g := NewTaskGraph()
	mustAdd(t, g, "a", noopTask)
	if err := g.Add("a", noopTask); !errors.Is(err, ErrTaskExists) {
		t.Fatalf("duplicate add err = %v", err)
	}

	g = NewTaskGraph()
	mustAdd(t, g, "a", noopTask, "missing")
	if err := g.Run(context.Background()); !errors.Is(err, ErrTaskUnknownDep) {
		t.Fatalf("unknown dep err = %v", err)
	}

	g = NewTaskGraph()
	mustAdd(t, g, "a", noopTask, "b")
	mustAdd(t, g, "b", noopTask, "a")
	if _, err := g.Order(); !errors.Is(err, ErrTaskCycle) {
		t.Fatalf("cycle err = %v", err)
	}
}

func TestTaskGraph_RunsAfterDependencies(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			seen = append(seen, name)
			mu.Unlock()
			return nil
		}
	}

	g := NewTaskGraph()
	mustAdd(t, g, "load", record("load"))
	mustAdd(t, g, "left", record("left"), "load")
	mustAdd(t, g, "right", record("right"), "load")
	mustAdd(t, g, "join", record("join"), "left", "right")

	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 4 || seen[0] != "load" || seen[3] != "join" {
		t.Fatalf("execution order = %v", seen)
	}
}

func TestTaskGraph_FailureSkipsDependents(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Bool

	g := NewTaskGraph()
	mustAdd(t, g, "fail", func(context.Context) error { return boom })
	mustAdd(t, g, "after", func(context.Context) error {
		ran.Store(true)
		return nil
	}, "fail")

	err := g.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want boom", err)
	}
	if ran.Load() {
		t.Fatalf("dependent of a failed task ran")
	}
}

func TestTaskGraph_Middleware(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	g := NewTaskGraph()
	g.Use(func(ctx context.Context, name string, next func(context.Context) error) error {
		mu.Lock()
		calls = append(calls, "outer:"+name)
		mu.Unlock()
		return next(ctx)
	})
	g.Use(func(ctx context.Context, name string, next func(context.Context) error) error {
		mu.Lock()
		calls = append(calls, "inner:"+name)
		mu.Unlock()
		return next(ctx)
	})
	g.Use(nil)
	mustAdd(t, g, "only", noopTask)

	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{"outer:only", "inner:only"}; !slices.Equal(calls, want) {
		t.Fatalf("middleware calls = %v, want %v", calls, want)
	}
}

func TestParallelFor_CoversEveryIndexOnce(t *testing.T) {
	const n = 10_000
	hits := make([]int32, n)
	err := parallelFor(context.Background(), n, 4, 97, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	})
	if err != nil {
		t.Fatalf("parallelFor: %v", err)
	}
	for i, h := range hits {
		if h != 1 {
			t.Fatalf("index %d visited %d times", i, h)
		}
	}
}

func TestParallelFor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := parallelFor(ctx, 1000, 2, 10, func(lo, hi int) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func mustAdd(t *testing.T, g *TaskGraph, name string, run func(context.Context) error, deps ...string) {
	t.Helper()
	if err := g.Add(name, run, deps...); err != nil {
		t.Fatalf("Add(%s): %v", name, err)
	}
}
