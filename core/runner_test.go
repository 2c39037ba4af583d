package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/rf-link-engine/model"
)

type countingSource struct {
	calls atomic.Int32
	snap  *model.Snapshot
}

func (s *countingSource) Snapshot() *model.Snapshot {
	s.calls.Add(1)
	return s.snap
}

func TestRunner_CoalescesTriggers(t *testing.T) {
	graph := NewLinkGraph()
	src := &countingSource{snap: pairSnapshot(1e6)}
	r := NewRunner(NewEngine(graph), src, nil)

	results := make(chan *PassResult, 4)
	r.OnResult = func(res *PassResult) { results <- res }

	r.Trigger()
	r.Trigger()
	r.Trigger()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case res := <-results:
		if res.Accepted != 1 {
			t.Fatalf("accepted = %d", res.Accepted)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no pass committed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	if n := src.calls.Load(); n != 1 {
		t.Fatalf("snapshots taken = %d, want 1 for a coalesced burst", n)
	}
	if graph.LinkBetween("a", "b") == nil {
		t.Fatalf("link not committed")
	}
}

func TestRunner_Interval(t *testing.T) {
	src := &countingSource{snap: pairSnapshot(1e6)}
	r := NewRunner(NewEngine(NewLinkGraph()), src, nil)
	r.Interval = 5 * time.Millisecond

	results := make(chan *PassResult, 16)
	r.OnResult = func(res *PassResult) {
		select {
		case results <- res:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-results:
		case <-time.After(5 * time.Second):
			t.Fatalf("ticker pass %d never committed", i)
		}
	}
}
