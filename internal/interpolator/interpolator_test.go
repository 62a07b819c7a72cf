package interpolator

import (
	"testing"

	"turtlerace/internal/race"
)

func snapAt(tick int64, x float64) race.Snapshot {
	return race.Snapshot{
		Tick: tick,
		Turtles: []race.TurtleState{
			{ID: "a", X: x, CurrentEnergy: 50},
		},
	}
}

func TestRenderEmptyBufferReturnsFalse(t *testing.T) {
	in := New(32, 100)
	if _, ok := in.Render(1000); ok {
		t.Error("expected ok=false for empty buffer")
	}
}

func TestRenderUnderflowFreezesOnOldest(t *testing.T) {
	in := New(32, 100)
	in.Push(1000, snapAt(1, 10))

	frame, ok := in.Render(1000) // render_time = 900, precedes buffer[0]
	if !ok {
		t.Fatal("expected ok=true")
	}
	if frame.Turtles[0].X != 10 {
		t.Errorf("X = %v, want frozen at 10", frame.Turtles[0].X)
	}
}

func TestRenderStallFreezesOnNewest(t *testing.T) {
	in := New(32, 100)
	in.Push(1000, snapAt(1, 10))
	in.Push(1033, snapAt(2, 20))

	frame, ok := in.Render(5000) // far past newest arrival
	if !ok {
		t.Fatal("expected ok=true")
	}
	if frame.Turtles[0].X != 20 {
		t.Errorf("X = %v, want frozen at newest 20", frame.Turtles[0].X)
	}
}

func TestRenderInterpolatesBetweenBracketingSnapshots(t *testing.T) {
	in := New(32, 100)
	in.Push(1000, snapAt(1, 0))
	in.Push(1100, snapAt(2, 100))

	// render_time = now - 100; choose now=1150 => render_time=1050, t=0.5
	frame, ok := in.Render(1150)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if frame.Turtles[0].X != 50 {
		t.Errorf("X = %v, want 50 (midpoint lerp)", frame.Turtles[0].X)
	}
}

func TestPushFlushesBufferOnCourseChange(t *testing.T) {
	in := New(32, 100)
	in.Push(1000, snapAt(10, 500))
	in.Push(1100, snapAt(11, 550))

	in.Push(1200, snapAt(0, 0)) // decreasing tick -> course change

	if len(in.buf) != 1 {
		t.Fatalf("buffer length = %d, want 1 after course-change flush", len(in.buf))
	}
}

func TestPushDropsOldestOnOverflow(t *testing.T) {
	in := New(2, 100)
	in.Push(1000, snapAt(1, 1))
	in.Push(1100, snapAt(2, 2))
	in.Push(1200, snapAt(3, 3))

	if len(in.buf) != 2 {
		t.Fatalf("buffer length = %d, want 2", len(in.buf))
	}
	if in.buf[0].snapshot.Tick != 2 {
		t.Errorf("oldest remaining tick = %d, want 2 (tick 1 dropped)", in.buf[0].snapshot.Tick)
	}
}

func TestRenderNoCounterpartInPrevSnapsToNext(t *testing.T) {
	in := New(32, 100)
	in.Push(1000, race.Snapshot{Tick: 1, Turtles: []race.TurtleState{{ID: "a", X: 10}}})
	in.Push(1100, race.Snapshot{Tick: 2, Turtles: []race.TurtleState{
		{ID: "a", X: 20},
		{ID: "b", X: 99},
	}})

	frame, ok := in.Render(1150)
	if !ok {
		t.Fatal("expected ok=true")
	}
	var bView *TurtleView
	for i := range frame.Turtles {
		if frame.Turtles[i].ID == "b" {
			bView = &frame.Turtles[i]
		}
	}
	if bView == nil {
		t.Fatal("turtle b missing from frame")
	}
	if bView.X != 99 {
		t.Errorf("b.X = %v, want snapped to next's 99 (no prev counterpart)", bView.X)
	}
}
