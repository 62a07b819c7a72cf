package race

import "turtlerace/internal/terrain"

// TurtleState is the immutable, wire-ready view of one turtle at a given
// tick. Rank is a pointer so it can be encoded as JSON null until the
// turtle finishes.
type TurtleState struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Genome        string  `json:"genome"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Angle         float64 `json:"angle"`
	CurrentEnergy float64 `json:"current_energy"`
	IsResting     bool    `json:"is_resting"`
	Finished      bool    `json:"finished"`
	Rank          *int    `json:"rank"`
}

// Snapshot is a complete, read-only picture of race state at a specific
// tick. Once produced it is never mutated; readers may hold onto it
// indefinitely without locking.
type Snapshot struct {
	Tick         int64             `json:"tick"`
	ElapsedMs    int64             `json:"elapsed_ms"`
	TrackLength  float64           `json:"track_length"`
	Turtles      []TurtleState     `json:"turtles"`
	TerrainAhead []terrain.Segment `json:"terrain_ahead"`
	Finished     bool              `json:"finished"`
	WinnerID     string            `json:"winner_id"`
}

func turtleState(t *Turtle) TurtleState {
	state := TurtleState{
		ID:            t.ID,
		Name:          t.Name,
		Genome:        t.Genome,
		X:             t.X,
		Y:             t.Y,
		Angle:         t.Angle,
		CurrentEnergy: t.CurrentEnergy,
		IsResting:     t.IsResting,
		Finished:      t.Finished,
	}
	if t.Rank > 0 {
		rank := t.Rank
		state.Rank = &rank
	}
	return state
}
