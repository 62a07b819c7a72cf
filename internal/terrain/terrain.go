// Package terrain models the immutable segmented track a race is run on.
// A Track is built once per race and never mutated afterward; lookups are
// read-only and safe for concurrent use.
package terrain

import (
	"math/rand"
	"sort"
)

// Type enumerates the terrain kinds a segment can carry.
type Type string

const (
	Grass Type = "grass"
	Water Type = "water"
	Rock  Type = "rock"
	Sand  Type = "sand"
	Mud   Type = "mud"
	Boost Type = "boost"
)

// SpeedMultiplier returns the terrain's multiplier on a turtle's forward
// speed. Water and rock depend on the turtle's own swim/climb stats, so
// those two cases are resolved by the caller (internal/race); for every
// other type the multiplier is fixed.
func (t Type) SpeedMultiplier() float64 {
	switch t {
	case Sand:
		return 0.9
	case Mud:
		return 0.7
	case Boost:
		return 1.3
	default: // Grass, Water, Rock (stat-dependent cases handled by caller)
		return 1.0
	}
}

// EnergyDifficulty returns the terrain's additive drain modifier.
func (t Type) EnergyDifficulty() float64 {
	switch t {
	case Water:
		return 1.3
	case Rock:
		return 1.4
	case Sand:
		return 1.1
	case Mud:
		return 1.5
	case Boost:
		return 0.8
	default: // Grass
		return 1.0
	}
}

// Segment is a half-open span [Start, End) of a single terrain type.
// Segments are contiguous, monotonically increasing, and cover
// [0, track length) once a Track is built.
type Segment struct {
	Start float64
	End   float64
	Type  Type
}

// Length reports the segment's span.
func (s Segment) Length() float64 { return s.End - s.Start }

// Track is an immutable, ordered partition of a course. Build it once via
// NewTrack or Generate; it is never mutated afterward.
type Track struct {
	length   float64
	segments []Segment
}

// NewTrack builds a Track from an explicit, already-ordered list of
// segments. Segments must be contiguous starting at 0 and covering
// [0, length); callers that need a randomly generated partition should use
// Generate instead.
func NewTrack(length float64, segments []Segment) *Track {
	cp := make([]Segment, len(segments))
	copy(cp, segments)
	return &Track{length: length, segments: cp}
}

// Length returns the track's total distance.
func (t *Track) Length() float64 { return t.length }

// Segments returns the full ordered segment list. Callers must not mutate
// the returned slice.
func (t *Track) Segments() []Segment { return t.segments }

// At returns the segment containing distance, in O(log n) via binary
// search over segment starts. Distances at or beyond the track length
// return the last segment.
func (t *Track) At(distance float64) Segment {
	if len(t.segments) == 0 {
		return Segment{Start: 0, End: t.length, Type: Grass}
	}
	if distance >= t.length {
		return t.segments[len(t.segments)-1]
	}
	if distance < 0 {
		distance = 0
	}

	// Binary search for the last segment whose Start <= distance.
	idx := sort.Search(len(t.segments), func(i int) bool {
		return t.segments[i].Start > distance
	})
	if idx == 0 {
		return t.segments[0]
	}
	return t.segments[idx-1]
}

// After returns up to limit contiguous segments starting with the one
// containing distance.
func (t *Track) After(distance float64, limit int) []Segment {
	if limit <= 0 || len(t.segments) == 0 {
		return nil
	}

	start := t.indexAt(distance)
	end := start + limit
	if end > len(t.segments) {
		end = len(t.segments)
	}

	out := make([]Segment, end-start)
	copy(out, t.segments[start:end])
	return out
}

func (t *Track) indexAt(distance float64) int {
	if distance >= t.length {
		return len(t.segments) - 1
	}
	if distance < 0 {
		distance = 0
	}
	idx := sort.Search(len(t.segments), func(i int) bool {
		return t.segments[i].Start > distance
	})
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// GenerateOptions configures the random covering partition produced by
// Generate.
type GenerateOptions struct {
	Length      float64
	Types       []Type
	Weights     []float64 // optional, parallel to Types; uniform if nil
	MinSegment  float64   // lower bound of the sampled segment length
	MaxSegment  float64   // upper bound of the sampled segment length
	Seed        int64
}

// Generate produces a covering partition of [0, Length) with segment
// lengths sampled from [MinSegment, MaxSegment) and types drawn from Types
// (optionally weighted). Deterministic for a fixed Seed.
func Generate(opts GenerateOptions) *Track {
	if len(opts.Types) == 0 {
		opts.Types = []Type{Grass}
	}
	if opts.MinSegment <= 0 {
		opts.MinSegment = 50
	}
	if opts.MaxSegment <= opts.MinSegment {
		opts.MaxSegment = opts.MinSegment * 3
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	weights := opts.Weights
	if len(weights) != len(opts.Types) {
		weights = make([]float64, len(opts.Types))
		for i := range weights {
			weights[i] = 1
		}
	}
	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w
	}

	var segments []Segment
	cursor := 0.0
	for cursor < opts.Length {
		segLen := opts.MinSegment + rng.Float64()*(opts.MaxSegment-opts.MinSegment)
		end := cursor + segLen
		if end > opts.Length {
			end = opts.Length
		}

		segments = append(segments, Segment{
			Start: cursor,
			End:   end,
			Type:  pickType(rng, opts.Types, weights, totalWeight),
		})
		cursor = end
	}

	return NewTrack(opts.Length, segments)
}

func pickType(rng *rand.Rand, types []Type, weights []float64, total float64) Type {
	if total <= 0 {
		return types[0]
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return types[i]
		}
	}
	return types[len(types)-1]
}
