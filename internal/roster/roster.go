// Package roster provides the default in-memory RosterProvider. Spec
// non-goals exclude persistent roster storage and a breeding/genetics
// system, so this provider only ever returns a fixed or randomly seeded
// set of turtles - never a persisted or mutated one.
package roster

import (
	"context"
	"errors"
	"math/rand"

	"turtlerace/internal/genome"
	"turtlerace/internal/race"
)

// ErrUnavailable is returned when no roster can be produced, surfaced by
// the orchestrator as error kind persistence ("roster_unavailable").
var ErrUnavailable = errors.New("roster_unavailable")

// Static is a RosterProvider that always returns the same fixed roster.
// Useful for tests and for deployments with a hand-curated cast.
type Static struct {
	Specs []race.TurtleSpec
}

// LoadRoster returns the configured roster, or ErrUnavailable if empty.
func (s Static) LoadRoster(ctx context.Context) ([]race.TurtleSpec, error) {
	if len(s.Specs) == 0 {
		return nil, ErrUnavailable
	}
	out := make([]race.TurtleSpec, len(s.Specs))
	copy(out, s.Specs)
	return out, nil
}

// Random is a RosterProvider that generates Count turtles with randomized
// stats and genomes, for demo and load-testing purposes. The PRNG is
// reseeded from Seed on every call, so every call with the same Seed
// returns the same roster.
type Random struct {
	Count int
	Seed  int64
}

var namePool = []string{
	"Ace", "Bolt", "Shelldon", "Speedy", "Gritty", "Marigold",
	"Thunder", "Pebble", "Comet", "Sable", "Jasper", "Fern",
}

// LoadRoster synthesizes a fresh roster of Count turtles with stats drawn
// from a deterministic PRNG seeded by Seed.
func (r Random) LoadRoster(ctx context.Context) ([]race.TurtleSpec, error) {
	count := r.Count
	if count <= 0 {
		count = 4
	}

	rng := rand.New(rand.NewSource(r.Seed))
	specs := make([]race.TurtleSpec, count)
	for i := 0; i < count; i++ {
		g := genome.Genome{
			BodyType: rng.Intn(genome.BodyTypeCount),
			Shell:    rng.Intn(genome.ShellTypeCount),
			Pattern:  rng.Intn(genome.PatternCount),
			Color:    randomHexColor(rng),
		}
		specs[i] = race.TurtleSpec{
			ID:        namePool[i%len(namePool)],
			Name:      namePool[i%len(namePool)],
			Genome:    genome.Encode(g),
			Speed:     30 + rng.Float64()*40,
			MaxEnergy: 60 + rng.Float64()*60,
			Recovery:  2 + rng.Float64()*8,
			Swim:      rng.Float64() * 15,
			Climb:     rng.Float64() * 15,
			Lane:      float64(i) * 40,
		}
	}
	return specs, nil
}

func randomHexColor(rng *rand.Rand) string {
	const hexDigits = "0123456789ABCDEF"
	b := make([]byte, 6)
	for i := range b {
		b[i] = hexDigits[rng.Intn(len(hexDigits))]
	}
	return string(b)
}
