package timectrl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	var ticks atomic.Int32
	tc.AddListener(func(time.Time) { ticks.Add(1) })

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if got := ticks.Load(); got != 3 {
		t.Fatalf("listener called %d times, want 3", got)
	}
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Hour, RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
	if got := tc.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}
}

func TestStepNotifiesListeners(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Minute, Accelerated)

	var seen time.Time
	tc.AddListener(func(now time.Time) { seen = now })

	now := tc.Step()
	if want := start.Add(time.Minute); !now.Equal(want) || !seen.Equal(want) {
		t.Fatalf("Step() = %v, listener saw %v, want %v", now, seen, want)
	}
}

func TestStepListenersAddedDuringNotifyRunNextStep(t *testing.T) {
	tc := NewTimeController(time.Unix(0, 0).UTC(), time.Second, Accelerated)

	late := 0
	added := false
	tc.AddListener(func(time.Time) {
		if !added {
			added = true
			tc.AddListener(func(time.Time) { late++ })
		}
	})

	tc.Step()
	if late != 0 {
		t.Fatalf("listener added mid-step ran in the same step")
	}
	tc.Step()
	if late != 1 {
		t.Fatalf("late listener calls = %d, want 1", late)
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("accelerated") != Accelerated {
		t.Fatalf("accelerated not parsed")
	}
	if ParseMode("bogus") != RealTime {
		t.Fatalf("unknown mode should fall back to RealTime")
	}
}
