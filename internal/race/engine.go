// Package race implements the deterministic per-tick turtle physics (C3)
// and the race engine that drives a full roster through a track (C4). All
// state here is owned exclusively by the orchestrator's driver goroutine;
// nothing in this package is safe for concurrent mutation.
package race

import (
	"sort"

	"turtlerace/internal/terrain"
)

// DefaultResumeThreshold is the fraction of MaxEnergy a resting turtle must
// recover before it resumes moving.
const DefaultResumeThreshold = 0.3

// DefaultMaxTicks is the safety cap that force-finishes a race that has not
// naturally completed, guarding against a misconfigured roster stalling
// forever.
const DefaultMaxTicks = 36000 // 10 minutes at physics_hz=60

// TerrainAheadSegments is how many segments ahead of the leader are
// included in each snapshot.
const TerrainAheadSegments = 3

// finishEvent captures a turtle's pre-clamp overshoot for a single tick, so
// same-tick finishers can be ranked before their X is latched to the track
// length.
type finishEvent struct {
	id        string
	preClampX float64
}

// Engine holds one race's full mutable state: the track, the roster, and
// the running tick count. It is rebuilt via Reset between races; it is
// never safe to share across goroutines without external serialization.
type Engine struct {
	track           *terrain.Track
	resumeThreshold float64
	maxTicks        int64
	physicsHz       int

	turtles []*Turtle
	byID    map[string]*Turtle

	tick        int64
	finishOrder []string
	finished    bool
}

// NewEngine builds an Engine with no roster. Call Reset to load a race.
// physicsHz is the tick rate used to derive elapsed_ms from tick, so
// elapsed_ms stays a pure function of tick regardless of speed_multiplier
// or wall-clock scheduling (spec's determinism property).
func NewEngine(resumeThreshold float64, maxTicks int64, physicsHz int) *Engine {
	if resumeThreshold <= 0 {
		resumeThreshold = DefaultResumeThreshold
	}
	if maxTicks <= 0 {
		maxTicks = DefaultMaxTicks
	}
	if physicsHz <= 0 {
		physicsHz = 60
	}
	return &Engine{resumeThreshold: resumeThreshold, maxTicks: maxTicks, physicsHz: physicsHz}
}

// Reset loads a fresh roster onto a track and zeroes all race state. It is
// the only way to start a new race on an existing Engine.
func (e *Engine) Reset(specs []TurtleSpec, track *terrain.Track) {
	e.track = track
	e.turtles = make([]*Turtle, 0, len(specs))
	e.byID = make(map[string]*Turtle, len(specs))
	for _, spec := range specs {
		t := NewTurtle(spec)
		e.turtles = append(e.turtles, t)
		e.byID[t.ID] = t
	}
	e.tick = 0
	e.finishOrder = nil
	e.finished = false
}

// Tick returns the current tick count.
func (e *Engine) Tick() int64 { return e.tick }

// FinishOrder returns turtle IDs in the order they crossed the finish
// line. The slice is a copy; callers may not mutate engine state through
// it.
func (e *Engine) FinishOrder() []string {
	out := make([]string, len(e.finishOrder))
	copy(out, e.finishOrder)
	return out
}

// Finished reports whether the race has ended, either because every
// turtle crossed the finish line or MaxTicks was reached.
func (e *Engine) Finished() bool { return e.finished }

// Step advances every unfinished turtle by one tick. It is a no-op once
// Finished reports true. Same-tick finishers are ranked by pre-clamp X
// descending, then ID ascending, before being appended to the finish
// order.
func (e *Engine) Step() {
	if e.finished {
		return
	}
	e.tick++

	var events []finishEvent
	for _, t := range e.turtles {
		if t.Finished {
			continue
		}
		seg := e.track.At(t.X)
		didFinish, preClampX := Step(t, seg, e.track.Length(), e.resumeThreshold)
		if didFinish {
			events = append(events, finishEvent{id: t.ID, preClampX: preClampX})
		}
	}

	if len(events) > 0 {
		sort.Slice(events, func(i, j int) bool {
			if events[i].preClampX != events[j].preClampX {
				return events[i].preClampX > events[j].preClampX
			}
			return events[i].id < events[j].id
		})
		for _, ev := range events {
			e.finishOrder = append(e.finishOrder, ev.id)
			e.byID[ev.id].Rank = len(e.finishOrder)
		}
	}

	allFinished := true
	for _, t := range e.turtles {
		if !t.Finished {
			allFinished = false
			break
		}
	}
	if allFinished || e.tick >= e.maxTicks {
		e.finished = true
	}
}

// Snapshot produces an immutable, ID-ordered view of the current race
// state, safe to hand to any number of readers. elapsed_ms is derived from
// tick and physics_hz, not the wall clock: elapsed_ms = tick * 1000 /
// physics_hz, so two snapshots at the same tick carry the same elapsed_ms
// no matter what speed_multiplier drove them there.
func (e *Engine) Snapshot() Snapshot {
	states := make([]TurtleState, len(e.turtles))
	ordered := make([]*Turtle, len(e.turtles))
	copy(ordered, e.turtles)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for i, t := range ordered {
		states[i] = turtleState(t)
	}

	snap := Snapshot{
		Tick:        e.tick,
		ElapsedMs:   e.tick * 1000 / int64(e.physicsHz),
		TrackLength: e.track.Length(),
		Turtles:     states,
		Finished:    e.finished,
	}

	leaderX := 0.0
	for _, t := range e.turtles {
		if t.X > leaderX {
			leaderX = t.X
		}
	}
	snap.TerrainAhead = e.track.After(leaderX, TerrainAheadSegments)

	if len(e.finishOrder) > 0 {
		snap.WinnerID = e.finishOrder[0]
	}

	return snap
}
