package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"turtlerace/internal/config"
	"turtlerace/internal/race"
)

type stubRoster struct {
	specs []race.TurtleSpec
	err   error
}

func (s *stubRoster) LoadRoster(ctx context.Context) ([]race.TurtleSpec, error) {
	return s.specs, s.err
}

type stubSink struct {
	mu       sync.Mutex
	recorded bool
	order    []string
}

func (s *stubSink) RecordRaceResult(ctx context.Context, raceID string, finishOrder []string, elapsedMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = true
	s.order = finishOrder
	return nil
}

type stubBus struct {
	mu      sync.Mutex
	snaps   []race.Snapshot
	cleared int
}

func (b *stubBus) Broadcast(snap race.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps = append(b.snaps, snap)
}

func (b *stubBus) ClearSnapshot() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleared++
}

func (b *stubBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snaps)
}

func testOrchestrator(t *testing.T, roster RosterProvider, sink ResultSink, bus Broadcaster) (*Orchestrator, context.CancelFunc) {
	t.Helper()
	cfg := config.DefaultPhysics()
	cfg.TrackLength = 100
	cfg.MaxTicks = 600
	transport := config.DefaultTransport()

	o := New(cfg, transport, roster, sink, bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	return o, cancel
}

func TestStartTransitionsToRunning(t *testing.T) {
	roster := &stubRoster{specs: []race.TurtleSpec{{ID: "a", Speed: 80, MaxEnergy: 1000, Recovery: 10, Swim: 5, Climb: 5}}}
	o, cancel := testOrchestrator(t, roster, &stubSink{}, &stubBus{})
	defer cancel()

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if o.State() != StateRunning {
		t.Errorf("state = %v, want running", o.State())
	}
}

func TestDuplicateStartWhileRunningIsIdempotentError(t *testing.T) {
	roster := &stubRoster{specs: []race.TurtleSpec{{ID: "a", Speed: 80, MaxEnergy: 1000, Recovery: 10, Swim: 5, Climb: 5}}}
	o, cancel := testOrchestrator(t, roster, &stubSink{}, &stubBus{})
	defer cancel()

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := o.Start(ctx)
	if err == nil {
		t.Fatalf("second Start: expected a state error, got nil")
	}
	taxErr, ok := err.(*TaxonomyError)
	if !ok || taxErr.Kind != "state" {
		t.Errorf("second Start error = %v, want TaxonomyError{Kind: state}", err)
	}
	if o.State() != StateRunning {
		t.Errorf("state after duplicate start = %v, want still running", o.State())
	}
}

func TestSetSpeedRejectsInvalidValue(t *testing.T) {
	o, cancel := testOrchestrator(t, &stubRoster{}, &stubSink{}, &stubBus{})
	defer cancel()

	err := o.SetSpeed(context.Background(), 3)
	if err == nil {
		t.Fatal("expected bad_request error for speed=3")
	}
	taxErr, ok := err.(*TaxonomyError)
	if !ok || taxErr.Kind != "bad_request" {
		t.Errorf("error = %v, want TaxonomyError{Kind: bad_request}", err)
	}
}

func TestStopFromIdleReportsStateError(t *testing.T) {
	o, cancel := testOrchestrator(t, &stubRoster{}, &stubSink{}, &stubBus{})
	defer cancel()

	err := o.Stop(context.Background())
	if err == nil {
		t.Fatal("expected state error stopping an idle orchestrator")
	}
}

func TestRaceRunsToFinishAndRecordsResult(t *testing.T) {
	roster := &stubRoster{specs: []race.TurtleSpec{
		{ID: "a", Speed: 2000, MaxEnergy: 100000, Recovery: 100, Swim: 10, Climb: 10},
	}}
	sink := &stubSink{}
	bus := &stubBus{}
	o, cancel := testOrchestrator(t, roster, sink, bus)
	defer cancel()

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		done := sink.recorded
		sink.mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if !sink.recorded {
		t.Fatal("result sink was never called within timeout")
	}
	if len(sink.order) != 1 || sink.order[0] != "a" {
		t.Errorf("finish order = %v, want [a]", sink.order)
	}
	if bus.count() == 0 {
		t.Error("expected at least one broadcast snapshot")
	}
}
