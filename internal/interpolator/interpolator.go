// Package interpolator implements the Client Interpolator (C8): a bounded
// ring buffer of received snapshots and the per-frame render-time lerp
// that turns discrete broadcast ticks into smooth motion a fixed delay
// behind the server clock.
//
// The buffer is a simple bounded slice that drops its oldest entry on
// overflow - the concurrency model here is a single reader appending and a
// single frame loop scanning, so no atomics are needed.
package interpolator

import (
	"turtlerace/internal/race"
)

// DefaultRenderDelayMs is the constant lag between the client's render
// clock and the server's clock, giving the interpolator a past interval
// to work within.
const DefaultRenderDelayMs = 100

// entry pairs a snapshot with the monotonic client-clock time it was
// received at.
type entry struct {
	receivedAtMs int64
	snapshot     race.Snapshot
}

// TurtleView is the interpolated, per-frame state of one turtle, ready to
// hand to a renderer.
type TurtleView struct {
	ID            string
	X             float64
	Y             float64
	Angle         float64
	CurrentEnergy float64
	IsResting     bool
	Finished      bool
	Rank          *int
}

// Frame is the interpolator's output for one render call.
type Frame struct {
	Turtles  []TurtleView
	Finished bool
	WinnerID string
}

// Interpolator buffers up to Capacity snapshots and produces smoothed
// per-frame output a fixed RenderDelayMs behind the client clock time
// passed to Render.
type Interpolator struct {
	capacity      int
	renderDelayMs int64
	buf           []entry
	lastRaceTick  int64
}

// New builds an Interpolator with the given buffer bound and render
// delay. capacity and renderDelayMs should come from snapshot_buffer_size
// and render_delay_ms in the configuration table.
func New(capacity int, renderDelayMs int64) *Interpolator {
	if capacity <= 0 {
		capacity = 32
	}
	if renderDelayMs <= 0 {
		renderDelayMs = DefaultRenderDelayMs
	}
	return &Interpolator{
		capacity:      capacity,
		renderDelayMs: renderDelayMs,
		lastRaceTick:  -1,
	}
}

// Push appends a newly received snapshot, flushing the buffer first if
// this is a "course change" - a decreasing tick, signaling a race reset.
// On overflow the oldest buffered entry is dropped.
func (in *Interpolator) Push(receivedAtMs int64, snap race.Snapshot) {
	if snap.Tick < in.lastRaceTick {
		in.buf = in.buf[:0]
	}
	in.lastRaceTick = snap.Tick

	in.buf = append(in.buf, entry{receivedAtMs: receivedAtMs, snapshot: snap})
	if len(in.buf) > in.capacity {
		in.buf = in.buf[len(in.buf)-in.capacity:]
	}
}

// Render computes the interpolated frame for client clock time nowMs.
// It returns false if the buffer is empty (nothing has arrived yet).
func (in *Interpolator) Render(nowMs int64) (Frame, bool) {
	if len(in.buf) == 0 {
		return Frame{}, false
	}

	renderTime := nowMs - in.renderDelayMs

	if renderTime <= in.buf[0].receivedAtMs {
		return frameFromSnapshot(in.buf[0].snapshot), true
	}

	newest := in.buf[len(in.buf)-1]
	if renderTime >= newest.receivedAtMs {
		return frameFromSnapshot(newest.snapshot), true
	}

	for i := 0; i < len(in.buf)-1; i++ {
		prev := in.buf[i]
		next := in.buf[i+1]
		if prev.receivedAtMs <= renderTime && renderTime < next.receivedAtMs {
			return lerpFrame(prev, next, renderTime), true
		}
	}

	return frameFromSnapshot(newest.snapshot), true
}

func lerpFrame(prev, next entry, renderTime int64) Frame {
	span := next.receivedAtMs - prev.receivedAtMs
	t := 0.0
	if span > 0 {
		t = float64(renderTime-prev.receivedAtMs) / float64(span)
	}
	t = clamp01(t)

	prevByID := make(map[string]race.TurtleState, len(prev.snapshot.Turtles))
	for _, ts := range prev.snapshot.Turtles {
		prevByID[ts.ID] = ts
	}

	views := make([]TurtleView, len(next.snapshot.Turtles))
	for i, n := range next.snapshot.Turtles {
		p, ok := prevByID[n.ID]
		if !ok {
			views[i] = turtleViewFrom(n)
			continue
		}
		views[i] = TurtleView{
			ID:            n.ID,
			X:             lerp(p.X, n.X, t),
			Y:             lerp(p.Y, n.Y, t),
			Angle:         lerp(p.Angle, n.Angle, t),
			CurrentEnergy: lerp(p.CurrentEnergy, n.CurrentEnergy, t),
			IsResting:     n.IsResting,
			Finished:      n.Finished,
			Rank:          n.Rank,
		}
	}

	return Frame{Turtles: views, Finished: next.snapshot.Finished, WinnerID: next.snapshot.WinnerID}
}

func frameFromSnapshot(snap race.Snapshot) Frame {
	views := make([]TurtleView, len(snap.Turtles))
	for i, ts := range snap.Turtles {
		views[i] = turtleViewFrom(ts)
	}
	return Frame{Turtles: views, Finished: snap.Finished, WinnerID: snap.WinnerID}
}

func turtleViewFrom(ts race.TurtleState) TurtleView {
	return TurtleView{
		ID:            ts.ID,
		X:             ts.X,
		Y:             ts.Y,
		Angle:         ts.Angle,
		CurrentEnergy: ts.CurrentEnergy,
		IsResting:     ts.IsResting,
		Finished:      ts.Finished,
		Rank:          ts.Rank,
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
