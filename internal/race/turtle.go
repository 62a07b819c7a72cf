package race

import "turtlerace/internal/terrain"

// Tuning constants. Not part of the enumerated config table - these are
// physics constants, not operator-facing knobs. SpeedScale and DrainBase
// are picked so a reference stat-50 turtle finishes a 1500-unit track in
// roughly 30 seconds at physics_hz=60.
const (
	SpeedScale   = 1.0 / 60.0 // distance per tick per speed point on grass
	DrainBase    = 0.05       // energy drained per tick before terrain difficulty
	RecoveryRate = 0.1        // energy recovered per tick per recovery point while resting
)

// TurtleSpec is the input roster entry for a single racer. Stats are
// non-negative; the roster provider is responsible for validating them
// before the race is constructed.
type TurtleSpec struct {
	ID        string
	Name      string
	Genome    string
	Speed     float64
	MaxEnergy float64
	Recovery  float64
	Swim      float64
	Climb     float64
	Lane      float64 // fixed per-race lane offset (Y)
}

// Turtle is the mutable per-tick state of one racer. It is owned
// exclusively by the Race Engine; readers outside the engine only ever see
// immutable TurtleState snapshots.
type Turtle struct {
	ID     string
	Name   string
	Genome string

	X     float64
	Y     float64
	Angle float64

	CurrentEnergy float64
	MaxEnergy     float64
	Speed         float64
	Recovery      float64
	Swim          float64
	Climb         float64

	IsResting bool
	Finished  bool
	Rank      int // 0 means unranked; valid ranks start at 1
}

// NewTurtle builds a fresh, full-energy Turtle from a spec.
func NewTurtle(spec TurtleSpec) *Turtle {
	return &Turtle{
		ID:            spec.ID,
		Name:          spec.Name,
		Genome:        spec.Genome,
		Y:             spec.Lane,
		CurrentEnergy: spec.MaxEnergy,
		MaxEnergy:     spec.MaxEnergy,
		Speed:         spec.Speed,
		Recovery:      spec.Recovery,
		Swim:          spec.Swim,
		Climb:         spec.Climb,
	}
}

// Step advances one turtle by one tick given the terrain segment under it.
// It is a pure function of (turtle, segment, config) - no wall-clock, no
// randomness. It reports whether the turtle crossed the finish line this
// tick, and the pre-clamp X reached (used only for same-tick tie-breaking
// by the engine; the turtle's own X is always clamped to trackLength once
// finished).
func Step(t *Turtle, seg terrain.Segment, trackLength, resumeThreshold float64) (finishedThisTick bool, preClampX float64) {
	if t.Finished {
		return false, t.X
	}

	if t.IsResting {
		t.CurrentEnergy += t.Recovery * RecoveryRate
		if t.CurrentEnergy > t.MaxEnergy {
			t.CurrentEnergy = t.MaxEnergy
		}
		if t.CurrentEnergy >= resumeThreshold*t.MaxEnergy {
			t.IsResting = false
		}
		return false, t.X
	}

	base := terrainSpeed(t, seg.Type)
	dx := base * SpeedScale
	t.X += dx
	preClampX = t.X

	t.CurrentEnergy -= DrainBase * seg.Type.EnergyDifficulty()
	if t.CurrentEnergy <= 0 {
		t.CurrentEnergy = 0
		t.IsResting = true
	}

	if t.X >= trackLength {
		t.X = trackLength
		t.Finished = true
		return true, preClampX
	}

	return false, preClampX
}

// terrainSpeed applies the design-level terrain multipliers. Water and
// rock scale with the turtle's own swim/climb stats (divided by 10); every
// other terrain type uses a fixed multiplier.
func terrainSpeed(t *Turtle, terrainType terrain.Type) float64 {
	switch terrainType {
	case terrain.Water:
		return t.Speed * (t.Swim / 10)
	case terrain.Rock:
		return t.Speed * (t.Climb / 10)
	default:
		return t.Speed * terrainType.SpeedMultiplier()
	}
}
